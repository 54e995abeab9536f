// Package aggregate assembles one title from every active backend index plus
// the metadata service.
//
// The primary record comes from the backend the caller came from (or the
// first backend that knows the title). Every other active backend is queried
// concurrently by title for alternate play-lists while the canonical metadata
// is resolved alongside. A backend that fails simply contributes nothing.
package aggregate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/justchokingaround/vodhub/internal/media"
	"github.com/justchokingaround/vodhub/internal/playlist"
	"github.com/justchokingaround/vodhub/internal/sources"
	"github.com/justchokingaround/vodhub/internal/textutil"
)

// Backends lists the backends to query; *sources.Registry implements it
type Backends interface {
	Active() []sources.Backend
}

// Index queries one backend; *cms.Client implements it
type Index interface {
	Detail(ctx context.Context, apiURL, id string) (*media.DetailRecord, error)
	FindByTitle(ctx context.Context, apiURL, title string) (*media.DetailRecord, error)
}

// Metadata resolves canonical records; *metadata.Resolver implements it
type Metadata interface {
	Resolve(ctx context.Context, title, knownID string) (*media.DetailRecord, error)
}

// Request identifies the title to aggregate. OriginAPI set means ID is a
// backend id on that backend; a Title without OriginAPI means ID (if any) is
// a metadata id.
type Request struct {
	ID        string `json:"id"`
	OriginAPI string `json:"api,omitempty"`
	Title     string `json:"title,omitempty"`
}

// Result is the aggregated title. Alternatives never include the backend that
// supplied Main.
type Result struct {
	Main         *media.DetailRecord   `json:"main"`
	Alternatives []*media.DetailRecord `json:"alternatives"`
}

// Engine runs aggregations
type Engine struct {
	backends Backends
	index    Index
	meta     Metadata
	logger   *slog.Logger
}

// New creates an Engine. meta may be nil, which makes every result backend-only.
func New(backends Backends, index Index, meta Metadata, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{backends: backends, index: index, meta: meta, logger: logger}
}

// Aggregate returns the merged title or nil when nothing was found anywhere
func (e *Engine) Aggregate(ctx context.Context, req Request) *Result {
	start := time.Now()
	req.ID = strings.TrimSpace(req.ID)
	req.Title = strings.TrimSpace(req.Title)
	active := e.backends.Active()

	primary := e.primaryByID(ctx, req, active)

	title := req.Title
	if title == "" && primary != nil {
		title = primary.Name
	}
	if title == "" {
		e.logger.Debug("nothing to aggregate", "id", req.ID, "api", req.OriginAPI)
		return e.finish(nil, primary, nil)
	}

	metaID := ""
	if req.OriginAPI == "" && req.Title != "" {
		metaID = req.ID
	}
	if primary != nil && primary.MetadataID != "" {
		metaID = primary.MetadataID
	}

	targets := make([]sources.Backend, 0, len(active))
	for _, b := range active {
		if primary != nil && sameAPI(b.APIURL, primary.APIURL) {
			continue
		}
		targets = append(targets, b)
	}

	var meta *media.DetailRecord
	found := make([]*media.DetailRecord, len(targets))

	p := pool.New().WithMaxGoroutines(len(targets) + 1)
	if e.meta != nil {
		p.Go(func() {
			rec, err := e.meta.Resolve(ctx, title, metaID)
			if err != nil {
				e.logger.Debug("metadata unavailable, using backend data only", "title", title, "error", err)
				return
			}
			meta = rec
		})
	}
	for i, b := range targets {
		p.Go(func() {
			rec, err := e.index.FindByTitle(ctx, b.APIURL, title)
			if err != nil {
				e.logger.Debug("backend contributed nothing", "backend", b.Name, "title", title, "error", err)
				return
			}
			found[i] = rec
		})
	}
	p.Wait()

	var alternatives []*media.DetailRecord
	for _, rec := range found {
		if rec == nil {
			continue
		}
		if primary == nil {
			primary = rec
			continue
		}
		alternatives = append(alternatives, rec)
	}

	res := e.finish(meta, primary, alternatives)
	if res != nil {
		e.logger.Debug("aggregated title",
			"title", res.Main.Name,
			"backends", len(targets),
			"alternatives", len(res.Alternatives),
			"duration", time.Since(start))
	}
	return res
}

// primaryByID fetches the hinted backend record, or with an id but no title
// tries every active backend in turn
func (e *Engine) primaryByID(ctx context.Context, req Request, active []sources.Backend) *media.DetailRecord {
	if req.ID == "" {
		return nil
	}

	if req.OriginAPI != "" {
		rec, err := e.index.Detail(ctx, req.OriginAPI, req.ID)
		if err != nil {
			e.logger.Debug("hinted backend has no record", "api", req.OriginAPI, "id", req.ID, "error", err)
			return nil
		}
		return rec
	}

	if req.Title != "" {
		return nil
	}

	for _, b := range active {
		if ctx.Err() != nil {
			return nil
		}
		rec, err := e.index.Detail(ctx, b.APIURL, req.ID)
		if err == nil {
			return rec
		}
	}
	return nil
}

func (e *Engine) finish(meta, primary *media.DetailRecord, alternatives []*media.DetailRecord) *Result {
	main := media.Merge(meta, primary)
	if main == nil {
		return nil
	}
	if alternatives == nil {
		alternatives = []*media.DetailRecord{}
	}
	return &Result{Main: main, Alternatives: alternatives}
}

// Playable parses the play-sources of the main record followed by the alternatives
func Playable(res *Result, names playlist.NameFunc) []media.PlaySource {
	if res == nil {
		return nil
	}
	records := make([]*media.DetailRecord, 0, len(res.Alternatives)+1)
	records = append(records, res.Main)
	records = append(records, res.Alternatives...)
	return playlist.Parse(records, names)
}

func sameAPI(a, b string) bool {
	return textutil.NormalizeURL(a) == textutil.NormalizeURL(b)
}
