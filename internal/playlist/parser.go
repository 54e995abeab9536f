// Package playlist decodes backend play-list strings into play sources.
//
// A record carries play_from ("lineA$$$lineB") and play_url
// ("第1集$url1#第2集$url2$$$..."); segments pair up by index.
package playlist

import (
	"fmt"
	"strings"

	"github.com/justchokingaround/vodhub/internal/media"
)

const (
	episodeSeparator = "#"
	fieldSeparator   = "$"
	formatMarker     = "m3u8"
)

// NameFunc returns the configured display name of the backend at apiURL, or ""
type NameFunc func(apiURL string) string

// Parse turns records into play sources, keeping only m3u8 lines. Output order
// follows record order, then segment order. Parse has no side effects.
func Parse(records []*media.DetailRecord, names NameFunc) []media.PlaySource {
	var sources []media.PlaySource
	seen := make(map[string]bool)

	for _, rec := range records {
		if rec == nil || rec.PlayFrom == "" || rec.PlayURL == "" {
			continue
		}

		froms := strings.Split(rec.PlayFrom, media.SegmentSeparator)
		urls := strings.Split(rec.PlayURL, media.SegmentSeparator)

		for i, label := range froms {
			if i >= len(urls) {
				break
			}
			segment := urls[i]
			if !isM3U8(label, segment) {
				continue
			}

			episodes := parseEpisodes(segment)
			if len(episodes) == 0 {
				continue
			}

			name := uniqueName(displayName(rec.APIURL, label, names), label, seen)
			seen[name] = true

			sources = append(sources, media.PlaySource{Name: name, Episodes: episodes})
		}
	}

	return sources
}

// uniqueName suffixes name with the raw label, then with a counter, until it
// is not in seen
func uniqueName(name, label string, seen map[string]bool) string {
	if !seen[name] {
		return name
	}
	base := fmt.Sprintf("%s (%s)", name, strings.TrimSpace(label))
	candidate := base
	for n := 2; seen[candidate]; n++ {
		candidate = fmt.Sprintf("%s %d", base, n)
	}
	return candidate
}

func isM3U8(label, segment string) bool {
	return strings.Contains(strings.ToLower(label), formatMarker) ||
		strings.Contains(strings.ToLower(segment), formatMarker)
}

func parseEpisodes(segment string) []media.Episode {
	tokens := strings.Split(segment, episodeSeparator)
	episodes := make([]media.Episode, 0, len(tokens))

	for n, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		var title, url string
		parts := strings.Split(token, fieldSeparator)
		if len(parts) >= 2 {
			title, url = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		} else {
			url = strings.TrimSpace(parts[0])
		}
		if title == "" {
			title = fmt.Sprintf("第 %d 集", n+1)
		}

		url, ok := normalizeURL(url)
		if !ok {
			continue
		}

		episodes = append(episodes, media.Episode{
			Title: title,
			URL:   url,
			Index: len(episodes),
		})
	}

	return episodes
}

func normalizeURL(u string) (string, bool) {
	switch {
	case u == "":
		return "", false
	case strings.HasPrefix(u, "//"):
		return "https:" + u, true
	case strings.HasPrefix(u, "http"):
		return u, true
	default:
		return "", false
	}
}

func displayName(apiURL, label string, names NameFunc) string {
	if names != nil && apiURL != "" {
		if name := strings.TrimSpace(names(apiURL)); name != "" {
			return name
		}
	}
	return strings.TrimSpace(label)
}

// Encode builds a play_url segment (title$url#title$url...) from episodes
func Encode(episodes []media.Episode) string {
	tokens := make([]string, len(episodes))
	for i, ep := range episodes {
		tokens[i] = ep.Title + fieldSeparator + ep.URL
	}
	return strings.Join(tokens, episodeSeparator)
}

// Export folds play sources back into the play_from/play_url pair a backend
// record carries
func Export(sources []media.PlaySource) (playFrom, playURL string) {
	froms := make([]string, len(sources))
	urls := make([]string, len(sources))
	for i, src := range sources {
		froms[i] = src.Name
		urls[i] = Encode(src.Episodes)
	}
	return strings.Join(froms, media.SegmentSeparator), strings.Join(urls, media.SegmentSeparator)
}
