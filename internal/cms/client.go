// Package cms talks to Maccms-style backend index APIs (ac=detail, wd=, ids=).
package cms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/justchokingaround/vodhub/internal/gateway"
	"github.com/justchokingaround/vodhub/internal/media"
	"github.com/justchokingaround/vodhub/internal/textutil"
)

var (
	// ErrNotFound is returned when a backend answers with an empty list
	ErrNotFound = errors.New("no matching title")
	// ErrUnavailable is returned when a backend could not be reached or answered garbage
	ErrUnavailable = errors.New("backend unavailable")
)

// Fetcher performs backend index requests; *gateway.Gateway implements it
type Fetcher interface {
	FetchCMS(ctx context.Context, apiURL string, params url.Values) *gateway.Body
}

// Client queries backend index APIs through the gateway
type Client struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewClient creates a backend index client
func NewClient(fetcher Fetcher, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{fetcher: fetcher, logger: logger}
}

// Detail fetches one title by its backend id
func (c *Client) Detail(ctx context.Context, apiURL, id string) (*media.DetailRecord, error) {
	records, err := c.query(ctx, apiURL, url.Values{"ac": {"detail"}, "ids": {id}})
	if err != nil {
		return nil, fmt.Errorf("detail %s: %w", id, err)
	}

	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
	}
	return &records[0], nil
}

// Search looks titles up by name
func (c *Client) Search(ctx context.Context, apiURL, title string) ([]media.DetailRecord, error) {
	records, err := c.query(ctx, apiURL, url.Values{"ac": {"detail"}, "wd": {title}})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", title, err)
	}
	return records, nil
}

// FindByTitle searches by name and returns the best title match
func (c *Client) FindByTitle(ctx context.Context, apiURL, title string) (*media.DetailRecord, error) {
	records, err := c.Search(ctx, apiURL, title)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Name
	}

	idx, _ := textutil.MatchTitle(title, names)
	if idx < 0 {
		return nil, fmt.Errorf("search %q: %w", title, ErrNotFound)
	}
	return &records[idx], nil
}

func (c *Client) query(ctx context.Context, apiURL string, params url.Values) ([]media.DetailRecord, error) {
	body := c.fetcher.FetchCMS(ctx, apiURL, params)
	if body == nil {
		return nil, ErrUnavailable
	}

	var resp listResponse
	if err := body.Decode(&resp); err != nil {
		c.logger.Debug("backend returned non-JSON payload", "api", apiURL, "error", err)
		return nil, ErrUnavailable
	}
	if len(resp.List) == 0 {
		return nil, ErrNotFound
	}

	records := make([]media.DetailRecord, 0, len(resp.List))
	for _, item := range resp.List {
		if item.ID == "" || strings.TrimSpace(item.Name) == "" {
			continue
		}
		records = append(records, toRecord(apiURL, item))
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

func toRecord(apiURL string, item vodItem) media.DetailRecord {
	rec := media.DetailRecord{
		CatalogItem: media.NewBackendItem(apiURL, item.ID.String(), textutil.CleanText(item.Name), upgradeScheme(item.Pic)),
		Synopsis:    StripHTML(textutil.DefaultString(item.Content, item.Blurb)),
		Director:    textutil.CleanText(item.Director),
		Writer:      textutil.CleanText(item.Writer),
		Cast:        textutil.CleanText(item.Actor),
		Country:     textutil.CleanText(item.Area),
		Language:    textutil.CleanText(item.Lang),
		PublishDate: strings.TrimSpace(item.PubDate),
		Duration:    strings.TrimSpace(item.Duration),
		Alias:       textutil.CleanText(item.Sub),
		PlayFrom:    strings.TrimSpace(item.PlayFrom),
		PlayURL:     strings.TrimSpace(item.PlayURL),
	}

	rec.Type = textutil.CleanText(item.TypeName)
	rec.Remarks = textutil.CleanText(item.Remarks)
	rec.Year = nonZero(item.Year.String())
	rec.Score = nonZero(item.Score.String())
	rec.MetadataID = nonZero(item.DoubanID.String())
	rec.EpisodeCount = nonZero(item.Total.String())

	if !rec.PlaylistConsistent() {
		rec.PlayFrom, rec.PlayURL = alignSegments(rec.PlayFrom, rec.PlayURL)
	}

	return rec
}

// alignSegments trims the longer of play_from/play_url so both carry the same
// number of $$$ segments; a one-sided play-list is dropped entirely
func alignSegments(from, urls string) (string, string) {
	if from == "" || urls == "" {
		return "", ""
	}
	fromParts := strings.Split(from, media.SegmentSeparator)
	urlParts := strings.Split(urls, media.SegmentSeparator)
	n := min(len(fromParts), len(urlParts))
	return strings.Join(fromParts[:n], media.SegmentSeparator), strings.Join(urlParts[:n], media.SegmentSeparator)
}

// StripHTML reduces an HTML fragment to its text
func StripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return textutil.CleanText(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return textutil.CleanText(s)
	}
	return textutil.CleanText(doc.Text())
}

func nonZero(s string) string {
	s = strings.TrimSpace(s)
	switch s {
	case "", "0", "0.0", "0.00":
		return ""
	}
	return s
}

func upgradeScheme(u string) string {
	u = strings.TrimSpace(u)
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}

// Ping checks that apiURL answers the list endpoint with JSON
func (c *Client) Ping(ctx context.Context, apiURL string) error {
	body := c.fetcher.FetchCMS(ctx, apiURL, url.Values{"ac": {"list"}, "pg": {"1"}})
	if body == nil {
		return ErrUnavailable
	}
	var resp listResponse
	if err := body.Decode(&resp); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
