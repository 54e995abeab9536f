// Package metadata resolves canonical title records from the metadata service:
// a JSON suggest endpoint for id discovery and a per-id HTML subject page.
package metadata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/justchokingaround/vodhub/internal/config"
	"github.com/justchokingaround/vodhub/internal/gateway"
	"github.com/justchokingaround/vodhub/internal/kvstore"
	"github.com/justchokingaround/vodhub/internal/media"
)

var (
	// ErrNotFound means the service knows no title for the query
	ErrNotFound = errors.New("metadata not found")
	// ErrUnavailable means the service could not be reached
	ErrUnavailable = errors.New("metadata service unavailable")
	// ErrMalformed means the service answered with something unparseable
	ErrMalformed = errors.New("malformed metadata response")
)

// Fetcher performs outbound requests; *gateway.Gateway implements it
type Fetcher interface {
	FetchWithHeaders(ctx context.Context, target string, headers map[string]string) *gateway.Body
}

// Resolver talks to the metadata service
type Resolver struct {
	fetcher Fetcher
	cfg     config.MetadataConfig
	store   kvstore.Store
	cache   *expirable.LRU[string, *media.DetailRecord]
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Resolver. store backs the hot-list cache and may be nil.
func New(fetcher Fetcher, cfg *config.MetadataConfig, store kvstore.Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	c := *cfg
	if c.CacheSize <= 0 {
		c.CacheSize = 256
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.CatalogTTL <= 0 {
		c.CatalogTTL = 30 * time.Minute
	}
	if c.MaxReviews <= 0 {
		c.MaxReviews = 10
	}
	if c.MaxCast <= 0 {
		c.MaxCast = 15
	}
	if c.MaxRelated <= 0 {
		c.MaxRelated = 12
	}

	return &Resolver{
		fetcher: fetcher,
		cfg:     c,
		store:   store,
		cache:   expirable.NewLRU[string, *media.DetailRecord](c.CacheSize, nil, c.CacheTTL),
		logger:  logger,
		now:     time.Now,
	}
}

func (r *Resolver) headers() map[string]string {
	if r.cfg.Referer == "" {
		return nil
	}
	return map[string]string{"Referer": r.cfg.Referer}
}

// Suggest returns the suggest endpoint's candidates for query
func (r *Resolver) Suggest(ctx context.Context, query string) ([]Suggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	target := r.cfg.SuggestURL + "?q=" + url.QueryEscape(query)
	body := r.fetcher.FetchWithHeaders(ctx, target, r.headers())
	if body == nil {
		return nil, ErrUnavailable
	}

	var suggestions []Suggestion
	if err := body.Decode(&suggestions); err != nil {
		return nil, fmt.Errorf("suggest %q: %w", query, ErrMalformed)
	}

	out := suggestions[:0]
	for _, s := range suggestions {
		if s.ID != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// Resolve returns the full record for a title. With no knownID the first
// suggestion's id is used. The record is either complete or nil with an error.
func (r *Resolver) Resolve(ctx context.Context, title, knownID string) (*media.DetailRecord, error) {
	id := strings.TrimSpace(knownID)
	if id == "" {
		suggestions, err := r.Suggest(ctx, title)
		if err != nil {
			return nil, err
		}
		if len(suggestions) == 0 {
			return nil, fmt.Errorf("resolve %q: %w", title, ErrNotFound)
		}
		id = suggestions[0].ID
	}

	if cached, ok := r.cache.Get(id); ok {
		out := *cached
		return &out, nil
	}

	body := r.fetcher.FetchWithHeaders(ctx, r.cfg.SubjectURL+url.PathEscape(id)+"/", r.headers())
	if body == nil {
		return nil, ErrUnavailable
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body.Raw))
	if err != nil {
		return nil, fmt.Errorf("subject %s: %w", id, ErrMalformed)
	}

	rec, err := parseSubject(id, doc, parseLimits{
		reviews: r.cfg.MaxReviews,
		cast:    r.cfg.MaxCast,
		related: r.cfg.MaxRelated,
	})
	if err != nil {
		r.logger.Debug("failed to parse subject page", "id", id, "error", err)
		return nil, err
	}

	r.cache.Add(id, rec)
	out := *rec
	return &out, nil
}

// SearchImage returns the image of the first suggestion for keyword
func (r *Resolver) SearchImage(ctx context.Context, keyword string) (string, error) {
	suggestions, err := r.Suggest(ctx, keyword)
	if err != nil {
		return "", err
	}
	for _, s := range suggestions {
		if s.Img != "" {
			return upgradeScheme(s.Img), nil
		}
	}
	return "", fmt.Errorf("image %q: %w", keyword, ErrNotFound)
}

// Hot returns a home-page catalog list. Lists are cached in the kv store for
// the catalog TTL; a stale copy is served when the service is unreachable.
func (r *Resolver) Hot(ctx context.Context, kind, tag string, limit int) ([]media.CatalogItem, error) {
	if kind == "" {
		kind = "movie"
	}
	if tag == "" {
		tag = "热门"
	}
	if limit <= 0 {
		limit = 20
	}

	key := fmt.Sprintf("catalog:%s:%s", kind, tag)
	var cached catalogEntry
	hasCached := false
	if r.store != nil {
		ok, err := kvstore.GetJSON(r.store, key, &cached)
		if err != nil {
			r.logger.Debug("ignoring unreadable catalog cache", "key", key, "error", err)
		}
		hasCached = ok && err == nil
	}

	// a list fetched with a page_limit at least as large is complete even when short
	if hasCached && r.now().Sub(time.UnixMilli(cached.FetchedAt)) < r.cfg.CatalogTTL &&
		(cached.Limit >= limit || len(cached.Items) >= limit) {
		return cached.Items[:min(limit, len(cached.Items))], nil
	}

	q := url.Values{}
	q.Set("type", kind)
	q.Set("tag", tag)
	q.Set("page_limit", strconv.Itoa(limit))
	q.Set("page_start", "0")

	items, err := r.fetchHot(ctx, r.cfg.HotURL+"?"+q.Encode())
	if err != nil {
		if hasCached {
			r.logger.Debug("serving stale catalog", "key", key, "error", err)
			return cached.Items[:min(limit, len(cached.Items))], nil
		}
		return nil, err
	}

	if r.store != nil {
		entry := catalogEntry{FetchedAt: r.now().UnixMilli(), Limit: limit, Items: items}
		if err := kvstore.SetJSON(r.store, key, entry); err != nil {
			r.logger.Debug("failed to cache catalog", "key", key, "error", err)
		}
	}
	return items[:min(limit, len(items))], nil
}

func (r *Resolver) fetchHot(ctx context.Context, target string) ([]media.CatalogItem, error) {
	body := r.fetcher.FetchWithHeaders(ctx, target, r.headers())
	if body == nil {
		return nil, ErrUnavailable
	}

	var resp subjectSearchResponse
	if err := body.Decode(&resp); err != nil {
		return nil, ErrMalformed
	}

	items := make([]media.CatalogItem, 0, len(resp.Subjects))
	for _, s := range resp.Subjects {
		if s.ID == "" || s.Title == "" {
			continue
		}
		item := media.NewMetadataItem(s.ID, s.Title, upgradeScheme(s.Cover))
		item.Score = s.Rate
		if s.IsNew {
			item.Remarks = "新"
		}
		items = append(items, item)
	}
	return items, nil
}
