// Package textutil holds the small string helpers shared by the backend client,
// the metadata parser and the CLI.
package textutil

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

var (
	yearRegex       = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
	numberRegex     = regexp.MustCompile(`\d+(\.\d+)?`)
)

// CleanText collapses runs of whitespace (including &nbsp;) and trims
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = whitespaceRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ExtractYear returns the first 4-digit year in text, or 0
func ExtractYear(text string) int {
	match := yearRegex.FindString(text)
	if match == "" {
		return 0
	}
	year, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return year
}

// ParseInt parses the first number found in s, returning 0 when there is none
func ParseInt(s string) int {
	s = strings.TrimSpace(s)
	if val, err := strconv.Atoi(s); err == nil {
		return val
	}
	match := numberRegex.FindString(s)
	if match == "" {
		return 0
	}
	val, err := strconv.Atoi(strings.SplitN(match, ".", 2)[0])
	if err != nil {
		return 0
	}
	return val
}

// ParseFloat safely parses a string to float64, returning 0.0 on error
func ParseFloat(s string) float64 {
	val, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0.0
	}
	return val
}

// DefaultString returns the first non-blank string
func DefaultString(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// SplitList splits a "/"-separated credit list ("张三 / 李四") into names
func SplitList(s string) []string {
	parts := strings.Split(s, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = CleanText(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// TruncateWidth shortens s to at most width terminal cells, appending "…".
// CJK characters count as two cells.
func TruncateWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// PadWidth right-pads s with spaces to width terminal cells
func PadWidth(s string, width int) string {
	return runewidth.FillRight(TruncateWidth(s, width), width)
}

// NormalizeURL makes base URLs comparable: scheme and host lowercased, trailing
// slash dropped
func NormalizeURL(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		u.Host = strings.ToLower(u.Host)
		u.Scheme = strings.ToLower(u.Scheme)
		return u.String()
	}
	return raw
}
