package imagepipe

import (
	"context"
	"log/slog"
	"sync"

	"github.com/justchokingaround/vodhub/internal/config"
)

// Prober checks that a URL serves an image; *gateway.Gateway implements it
type Prober interface {
	Probe(ctx context.Context, imageURL string) error
}

// Searcher finds an image for a keyword; *metadata.Resolver implements it
type Searcher interface {
	SearchImage(ctx context.Context, keyword string) (string, error)
}

// Result is the outcome of one resolution
type Result struct {
	URL         string `json:"url"`
	Stage       int    `json:"stage"`
	Attempts    int    `json:"attempts"`
	Searches    int    `json:"searches"`
	Placeholder bool   `json:"placeholder"`
}

// Resolver drives Machines against real probes and searches
type Resolver struct {
	rw       *Rewriter
	prober   Prober
	searcher Searcher
	logger   *slog.Logger
}

// NewResolver creates a Resolver. searcher may be nil, which disables the
// keyword stage.
func NewResolver(cfg *config.ImagesConfig, prober Prober, searcher Searcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		rw:       NewRewriter(cfg),
		prober:   prober,
		searcher: searcher,
		logger:   logger,
	}
}

// Rewriter returns the URL rewriter in use
func (r *Resolver) Rewriter() *Rewriter {
	return r.rw
}

// Resolve runs the whole escalation chain for src. The returned error is only
// ever the context's; every other failure ends at the placeholder.
func (r *Resolver) Resolve(ctx context.Context, src, keyword string) (Result, error) {
	if r.searcher == nil {
		keyword = ""
	}

	m := NewMachine(r.rw)
	cmd := m.SetSource(src, keyword, true)

	for cmd.Kind != None {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		switch cmd.Kind {
		case Load:
			if err := r.prober.Probe(ctx, cmd.URL); err != nil {
				r.logger.Debug("image stage failed", "stage", m.Stage(), "url", cmd.URL, "error", err)
				cmd = m.Handle(Event{Kind: LoadFailed})
				continue
			}
			cmd = m.Handle(Event{Kind: LoadOK})

		case Search:
			found, err := r.searcher.SearchImage(ctx, cmd.Keyword)
			if err != nil {
				r.logger.Debug("image search found nothing", "keyword", cmd.Keyword, "error", err)
				found = ""
			}
			cmd = m.Handle(Event{Kind: SearchResult, URL: found})
		}
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	return Result{
		URL:         m.Current(),
		Stage:       m.Stage(),
		Attempts:    m.Attempts(),
		Searches:    m.Searches(),
		Placeholder: m.Status() == Placeholder,
	}, nil
}

// Instance holds the resolution of one on-screen image. Setting a new source
// aborts the resolution still running for the previous one.
type Instance struct {
	resolver *Resolver

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
	last   Result
	done   bool
}

// NewInstance creates an empty Instance
func (r *Resolver) NewInstance() *Instance {
	return &Instance{resolver: r}
}

// SetSource starts resolving src and returns a channel that receives the
// result once. A superseded run closes its channel without sending.
func (in *Instance) SetSource(ctx context.Context, src, keyword string) <-chan Result {
	in.mu.Lock()
	if in.cancel != nil {
		in.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	in.cancel = cancel
	in.gen++
	gen := in.gen
	in.done = false
	in.mu.Unlock()

	out := make(chan Result, 1)
	go func() {
		defer close(out)
		defer cancel()

		res, err := in.resolver.Resolve(runCtx, src, keyword)
		if err != nil {
			return
		}

		in.mu.Lock()
		defer in.mu.Unlock()
		if gen != in.gen {
			return
		}
		in.last = res
		in.done = true
		out <- res
	}()
	return out
}

// Last returns the most recent completed result
func (in *Instance) Last() (Result, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.last, in.done
}

// Close aborts any running resolution
func (in *Instance) Close() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.cancel != nil {
		in.cancel()
		in.cancel = nil
	}
	in.gen++
}

// Instances keys Instance holders by slot, e.g. one per poster on a page
type Instances struct {
	resolver *Resolver

	mu    sync.Mutex
	slots map[string]*Instance
}

// NewInstances creates an empty slot map
func (r *Resolver) NewInstances() *Instances {
	return &Instances{resolver: r, slots: make(map[string]*Instance)}
}

// Get returns the instance for slot, creating it on first use
func (s *Instances) Get(slot string) *Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.slots[slot]
	if !ok {
		in = s.resolver.NewInstance()
		s.slots[slot] = in
	}
	return in
}

// Len returns the number of slots in use
func (s *Instances) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// CloseAll aborts every instance and forgets the slots
func (s *Instances) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for slot, in := range s.slots {
		in.Close()
		delete(s.slots, slot)
	}
}
