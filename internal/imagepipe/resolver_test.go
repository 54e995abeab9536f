package imagepipe

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justchokingaround/vodhub/internal/config"
)

type fakeProber struct {
	mu    sync.Mutex
	ok    map[string]bool
	calls []string
}

func (p *fakeProber) Probe(ctx context.Context, imageURL string) error {
	p.mu.Lock()
	p.calls = append(p.calls, imageURL)
	p.mu.Unlock()

	if strings.Contains(imageURL, "slow") {
		<-ctx.Done()
		return ctx.Err()
	}
	if p.ok[imageURL] {
		return nil
	}
	return errors.New("not an image")
}

func (p *fakeProber) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type fakeSearcher struct {
	mu     sync.Mutex
	result string
	calls  int
}

func (s *fakeSearcher) SearchImage(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.result == "" {
		return "", errors.New("nothing")
	}
	return s.result, nil
}

func newTestResolver(prober Prober, searcher Searcher) *Resolver {
	cfg := config.Default().Images
	cfg.ProxyTemplates = []string{"https://p1.test/?url={url}", "https://p2.test/?url={url}"}
	return NewResolver(&cfg, prober, searcher, nil)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("bad source without keyword never touches the network", func(t *testing.T) {
		prober := &fakeProber{}
		searcher := &fakeSearcher{}
		res, err := newTestResolver(prober, searcher).Resolve(ctx, "https://cms.test/nopic.gif", "")
		require.NoError(t, err)

		assert.True(t, res.Placeholder)
		assert.Empty(t, res.URL)
		assert.Equal(t, 0, res.Attempts)
		assert.Equal(t, 0, prober.count())
		assert.Equal(t, 0, searcher.calls)
	})

	t.Run("every stage failing searches exactly once", func(t *testing.T) {
		prober := &fakeProber{}
		searcher := &fakeSearcher{}
		res, err := newTestResolver(prober, searcher).Resolve(ctx, "https://img.test/a.jpg", "霸王别姬")
		require.NoError(t, err)

		assert.True(t, res.Placeholder)
		assert.Equal(t, 1, searcher.calls)
		assert.Equal(t, 3, prober.count())
		assert.Equal(t, 1, res.Searches)
	})

	t.Run("proxy stage succeeds", func(t *testing.T) {
		r := newTestResolver(nil, nil)
		proxied := r.Rewriter().Proxy(0, "https://img.test/a.jpg")
		r.prober = &fakeProber{ok: map[string]bool{proxied: true}}

		res, err := r.Resolve(ctx, "https://img.test/a.jpg", "kw")
		require.NoError(t, err)
		assert.False(t, res.Placeholder)
		assert.Equal(t, proxied, res.URL)
		assert.Equal(t, 1, res.Stage)
		assert.Equal(t, 2, res.Attempts)
	})

	t.Run("search result is tried from stage zero", func(t *testing.T) {
		prober := &fakeProber{ok: map[string]bool{"https://img.test/found.jpg": true}}
		searcher := &fakeSearcher{result: "//img.test/found.jpg"}

		res, err := newTestResolver(prober, searcher).Resolve(ctx, "", "kw")
		require.NoError(t, err)
		assert.Equal(t, "https://img.test/found.jpg", res.URL)
		assert.Equal(t, 0, res.Stage)
		assert.Equal(t, 1, res.Attempts)
	})

	t.Run("no searcher means no keyword stage", func(t *testing.T) {
		res, err := newTestResolver(&fakeProber{}, nil).Resolve(ctx, "", "kw")
		require.NoError(t, err)
		assert.True(t, res.Placeholder)
		assert.Equal(t, 0, res.Searches)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := newTestResolver(&fakeProber{}, nil).Resolve(cctx, "https://img.test/a.jpg", "")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestInstanceSupersedes(t *testing.T) {
	prober := &fakeProber{ok: map[string]bool{"https://img.test/fast.jpg": true}}
	in := newTestResolver(prober, nil).NewInstance()
	ctx := context.Background()

	first := in.SetSource(ctx, "https://img.test/slow.jpg", "")
	second := in.SetSource(ctx, "https://img.test/fast.jpg", "")

	select {
	case res, ok := <-first:
		assert.False(t, ok, "superseded run must not deliver %+v", res)
	case <-time.After(2 * time.Second):
		t.Fatal("superseded run was not aborted")
	}

	select {
	case res := <-second:
		assert.Equal(t, "https://img.test/fast.jpg", res.URL)
	case <-time.After(2 * time.Second):
		t.Fatal("no result for current source")
	}

	last, ok := in.Last()
	require.True(t, ok)
	assert.Equal(t, "https://img.test/fast.jpg", last.URL)
}

func TestInstances(t *testing.T) {
	slots := newTestResolver(&fakeProber{}, nil).NewInstances()

	a := slots.Get("poster-1")
	assert.Same(t, a, slots.Get("poster-1"))
	slots.Get("poster-2")
	assert.Equal(t, 2, slots.Len())

	slots.CloseAll()
	assert.Equal(t, 0, slots.Len())
}

func TestPlaceholderDataURL(t *testing.T) {
	assert.True(t, strings.HasPrefix(PlaceholderDataURL(), "data:image/svg+xml;base64,"))
	assert.Contains(t, string(PlaceholderSVG), "<svg")
}
