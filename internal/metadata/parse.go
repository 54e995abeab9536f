package metadata

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/justchokingaround/vodhub/internal/media"
	"github.com/justchokingaround/vodhub/internal/textutil"
)

// Everything that knows the subject page markup lives in this file.

var (
	starRegex      = regexp.MustCompile(`allstar(\d+)`)
	subjectIDRegex = regexp.MustCompile(`/subject/(\d+)`)
	bgURLRegex     = regexp.MustCompile(`url\(\s*['"]?([^'")]+)['"]?\s*\)`)
	imdbRegex      = regexp.MustCompile(`tt\d+`)
)

type parseLimits struct {
	reviews int
	cast    int
	related int
}

// parseSubject reads a subject detail page. A page without a title is
// rejected; every other field is optional.
func parseSubject(id string, doc *goquery.Document, limits parseLimits) (*media.DetailRecord, error) {
	title := textutil.CleanText(doc.Find(`span[property="v:itemreviewed"]`).First().Text())
	if title == "" {
		return nil, fmt.Errorf("subject %s: %w", id, ErrMalformed)
	}

	poster := upgradeScheme(doc.Find("#mainpic img").First().AttrOr("src", ""))
	info := doc.Find("#info").First()

	rec := &media.DetailRecord{
		CatalogItem:  media.NewMetadataItem(id, title, poster),
		MetadataID:   id,
		Synopsis:     synopsis(doc),
		Director:     labeledField(info, "导演"),
		Writer:       labeledField(info, "编剧"),
		Cast:         labeledField(info, "主演"),
		Country:      labeledField(info, "制片国家/地区"),
		Language:     labeledField(info, "语言"),
		PublishDate:  textutil.DefaultString(labeledField(info, "上映日期"), labeledField(info, "首播")),
		EpisodeCount: labeledField(info, "集数"),
		Duration:     textutil.DefaultString(labeledField(info, "单集片长"), labeledField(info, "片长")),
		Alias:        labeledField(info, "又名"),
		ExternalID:   imdbRegex.FindString(labeledField(info, "IMDb")),
		Reviews:      parseReviews(doc, limits.reviews),
		CastMembers:  parseCast(doc, limits.cast),
		Related:      parseRelated(doc, limits.related),
	}

	rec.Type = labeledField(info, "类型")
	rec.Score = textutil.CleanText(doc.Find("strong.rating_num").First().Text())
	rec.Year = strings.Trim(textutil.CleanText(doc.Find("#content h1 span.year").First().Text()), "()（）")
	if rec.Year == "" {
		if y := textutil.ExtractYear(rec.PublishDate); y > 0 {
			rec.Year = fmt.Sprint(y)
		}
	}

	return rec, nil
}

// labeledField finds the span.pl labelled label inside #info and returns the
// value that follows it: the adjacent span.attrs when there is one, otherwise
// the sibling nodes up to the next <br> or label.
func labeledField(info *goquery.Selection, label string) string {
	var value string
	info.Find("span.pl").EachWithBreak(func(_ int, pl *goquery.Selection) bool {
		if normalizeLabel(pl.Text()) != label {
			return true
		}
		value = siblingValue(pl.Nodes[0])
		return false
	})
	return value
}

func normalizeLabel(s string) string {
	return strings.TrimRight(textutil.CleanText(s), ":： ")
}

func siblingValue(label *html.Node) string {
	var b strings.Builder
	for n := label.NextSibling; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode {
			if n.Data == "br" || hasClass(n, "pl") {
				break
			}
			if hasClass(n, "attrs") {
				return textutil.CleanText(nodeText(n))
			}
		}
		b.WriteString(nodeText(n))
	}
	value := textutil.CleanText(b.String())
	value = strings.TrimLeft(value, ":： ")
	return strings.TrimSpace(value)
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key == "class" {
			for _, c := range strings.Fields(attr.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

// synopsis prefers the expanded summary over the truncated one and keeps
// paragraph breaks
func synopsis(doc *goquery.Document) string {
	sel := doc.Find("span.all.hidden").First()
	if strings.TrimSpace(sel.Text()) == "" {
		sel = doc.Find(`span[property="v:summary"]`).First()
	}

	var lines []string
	for _, line := range strings.Split(sel.Text(), "\n") {
		if line = textutil.CleanText(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func parseReviews(doc *goquery.Document, limit int) []media.Review {
	var reviews []media.Review
	doc.Find("#hot-comments .comment-item").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(reviews) >= limit {
			return false
		}

		content := textutil.CleanText(s.Find(".short").First().Text())
		if content == "" {
			return true
		}

		timeSel := s.Find(".comment-time").First()
		review := media.Review{
			Author:   textutil.CleanText(s.Find(".comment-info > a").First().Text()),
			Avatar:   upgradeScheme(s.Find(".avatar img").First().AttrOr("src", "")),
			Content:  content,
			Time:     textutil.DefaultString(textutil.CleanText(timeSel.Text()), timeSel.AttrOr("title", "")),
			Votes:    textutil.ParseInt(s.Find(".votes").First().Text()),
			Location: textutil.CleanText(s.Find(".comment-location").First().Text()),
		}

		if class, ok := s.Find(`[class*="allstar"]`).First().Attr("class"); ok {
			if m := starRegex.FindStringSubmatch(class); len(m) == 2 {
				review.Rating = textutil.ParseFloat(m[1]) / 10
			}
		}

		reviews = append(reviews, review)
		return true
	})
	return reviews
}

func parseCast(doc *goquery.Document, limit int) []media.CastMember {
	var cast []media.CastMember
	doc.Find("#celebrities li.celebrity").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(cast) >= limit {
			return false
		}

		nameSel := s.Find(".name").First()
		name := textutil.DefaultString(nameSel.Find("a").AttrOr("title", ""), textutil.CleanText(nameSel.Text()))
		if name == "" {
			return true
		}

		photo := ""
		if m := bgURLRegex.FindStringSubmatch(s.Find(".avatar").AttrOr("style", "")); len(m) == 2 {
			photo = m[1]
		} else {
			photo = s.Find("img").First().AttrOr("src", "")
		}

		cast = append(cast, media.CastMember{
			Name:  name,
			Role:  textutil.CleanText(s.Find(".role").First().Text()),
			Photo: upgradeScheme(photo),
		})
		return true
	})
	return cast
}

func parseRelated(doc *goquery.Document, limit int) []media.RelatedTitle {
	var related []media.RelatedTitle
	doc.Find("#recommendations dl").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(related) >= limit {
			return false
		}

		href := s.Find("a[href]").First().AttrOr("href", "")
		m := subjectIDRegex.FindStringSubmatch(href)
		if len(m) != 2 {
			return true
		}

		img := s.Find("img").First()
		related = append(related, media.RelatedTitle{
			ID:     m[1],
			Name:   textutil.DefaultString(textutil.CleanText(s.Find("dd a").First().Text()), img.AttrOr("alt", "")),
			Poster: upgradeScheme(img.AttrOr("src", "")),
		})
		return true
	})
	return related
}

func upgradeScheme(u string) string {
	u = strings.TrimSpace(u)
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}
