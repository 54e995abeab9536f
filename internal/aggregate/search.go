package aggregate

import (
	"context"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/justchokingaround/vodhub/internal/media"
	"github.com/justchokingaround/vodhub/internal/metadata"
)

// Searcher lists titles on one backend; *cms.Client implements it
type Searcher interface {
	Search(ctx context.Context, apiURL, title string) ([]media.DetailRecord, error)
}

// Suggester lists metadata candidates; *metadata.Resolver implements it
type Suggester interface {
	Suggest(ctx context.Context, query string) ([]metadata.Suggestion, error)
}

// BackendHits are the titles one backend returned
type BackendHits struct {
	Backend string              `json:"backend"`
	APIURL  string              `json:"api_url"`
	Items   []media.CatalogItem `json:"items"`
}

// SearchResult groups search hits by origin
type SearchResult struct {
	Metadata []media.CatalogItem `json:"metadata"`
	Backends []BackendHits       `json:"backends"`
}

// Total counts every hit
func (s *SearchResult) Total() int {
	n := len(s.Metadata)
	for _, b := range s.Backends {
		n += len(b.Items)
	}
	return n
}

// Search queries the metadata service and every active backend concurrently.
// Backends with no hits are left out; failures are logged and skipped.
func (e *Engine) Search(ctx context.Context, query string, searcher Searcher, suggester Suggester) *SearchResult {
	query = strings.TrimSpace(query)
	res := &SearchResult{Metadata: []media.CatalogItem{}, Backends: []BackendHits{}}
	if query == "" {
		return res
	}

	active := e.backends.Active()
	hits := make([]BackendHits, len(active))

	p := pool.New().WithMaxGoroutines(len(active) + 1)
	if suggester != nil {
		p.Go(func() {
			suggestions, err := suggester.Suggest(ctx, query)
			if err != nil {
				e.logger.Debug("metadata search failed", "query", query, "error", err)
				return
			}
			for _, s := range suggestions {
				res.Metadata = append(res.Metadata, s.Item())
			}
		})
	}
	for i, b := range active {
		p.Go(func() {
			records, err := searcher.Search(ctx, b.APIURL, query)
			if err != nil {
				e.logger.Debug("backend search failed", "backend", b.Name, "query", query, "error", err)
				return
			}
			items := make([]media.CatalogItem, len(records))
			for j := range records {
				items[j] = records[j].CatalogItem
			}
			hits[i] = BackendHits{Backend: b.Name, APIURL: b.APIURL, Items: items}
		})
	}
	p.Wait()

	for _, h := range hits {
		if len(h.Items) > 0 {
			res.Backends = append(res.Backends, h)
		}
	}
	return res
}
