package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// bracketed quality/language tags backends append: (1080p) [HD] 【国语】
var tagRegex = regexp.MustCompile(`[\(\[【][^\)\]】]*[\)\]】]`)

// NormalizeTitle folds a title for cross-backend comparison: full-width forms
// are narrowed, bracketed tags dropped, everything lowercased and reduced to
// letters and digits.
func NormalizeTitle(title string) string {
	title = width.Narrow.String(title)
	title = tagRegex.ReplaceAllString(title, " ")
	title = strings.ToLower(title)

	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LevenshteinDistance counts single-rune edits between s1 and s2
func LevenshteinDistance(s1, s2 string) int {
	r1, r2 := []rune(s1), []rune(s2)

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}

// SimilarityScore rates two titles between 0.0 and 1.0 after normalization
func SimilarityScore(title1, title2 string) float64 {
	norm1 := NormalizeTitle(title1)
	norm2 := NormalizeTitle(title2)
	if norm1 == "" || norm2 == "" {
		return 0.0
	}

	maxLen := max(len([]rune(norm1)), len([]rune(norm2)))
	similarity := 1.0 - float64(LevenshteinDistance(norm1, norm2))/float64(maxLen)
	if similarity < 0 {
		return 0
	}
	return similarity
}

// MatchKind describes how a candidate title matched the query
type MatchKind int

const (
	NoMatch MatchKind = iota
	SubstringMatch
	ExactMatch
)

// MatchTitle picks the candidate that best matches query and returns its index
// (or -1). An exact normalized match wins; otherwise a candidate containing the
// query, or contained by it, qualifies. Ties go to the verbatim title, then the
// higher similarity, then the earlier candidate.
func MatchTitle(query string, candidates []string) (int, MatchKind) {
	q := NormalizeTitle(query)
	if q == "" {
		return -1, NoMatch
	}

	best, bestKind, bestScore := -1, NoMatch, -1.0
	for i, candidate := range candidates {
		c := NormalizeTitle(candidate)
		if c == "" {
			continue
		}

		kind := NoMatch
		switch {
		case c == q:
			kind = ExactMatch
		case strings.Contains(c, q) || strings.Contains(q, c):
			kind = SubstringMatch
		}
		if kind == NoMatch {
			continue
		}

		score := SimilarityScore(query, candidate)
		if strings.EqualFold(CleanText(query), CleanText(candidate)) {
			// verbatim title outranks one that only matches once tags are stripped
			score = 1.1
		}
		if kind > bestKind || (kind == bestKind && score > bestScore) {
			best, bestKind, bestScore = i, kind, score
		}
	}

	return best, bestKind
}
