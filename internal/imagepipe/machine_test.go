package imagepipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justchokingaround/vodhub/internal/config"
)

func testRewriter() *Rewriter {
	cfg := config.Default().Images
	cfg.ProxyTemplates = []string{
		"https://p1.test/?url={url}&output=webp",
		"https://p2.test/?url={url}&output=webp",
		"https://broken.test/no-placeholder",
	}
	return NewRewriter(&cfg)
}

func TestRewriter(t *testing.T) {
	rw := testRewriter()

	assert.Equal(t, 2, rw.Stages())
	assert.Equal(t, "https://p1.test/?url=https%3A%2F%2Fimg.test%2Fa.jpg%3Fx%3D1&output=webp", rw.Proxy(0, "https://img.test/a.jpg?x=1"))

	tests := []struct {
		name string
		src  string
		want string
	}{
		{"protocol relative", "//img.test/a.jpg", "https://img.test/a.jpg"},
		{"size token on public path", "https://img3.doubanio.com/view/photo/s_ratio_poster/public/p1.jpg", "https://img3.doubanio.com/view/photo/m_ratio_poster/public/p1.jpg"},
		{"size token needs public path", "https://img3.doubanio.com/view/s_ratio_poster/private/p1.jpg", "https://img3.doubanio.com/view/s_ratio_poster/private/p1.jpg"},
		{"other host untouched", "https://img.test/view/photo/s_ratio_poster/public/p1.jpg", "https://img.test/view/photo/s_ratio_poster/public/p1.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rw.Normalize(tt.src))
		})
	}

	assert.True(t, rw.IsBad(""))
	assert.True(t, rw.IsBad("https://cms.test/upload/NOPIC.png"))
	assert.True(t, rw.IsBad("https://cms.test/static/default.jpg"))
	assert.False(t, rw.IsBad("https://img.test/a.jpg"))
}

func TestMachineBadSourceWithoutKeyword(t *testing.T) {
	m := NewMachine(testRewriter())

	cmd := m.SetSource("https://cms.test/nopic.jpg", "", true)

	assert.Equal(t, None, cmd.Kind)
	assert.Equal(t, Placeholder, m.Status())
	assert.Equal(t, 0, m.Attempts())
	assert.Equal(t, 0, m.Searches())
	assert.Empty(t, m.Current())
}

func TestMachineBadSourceWithKeyword(t *testing.T) {
	m := NewMachine(testRewriter())

	cmd := m.SetSource("https://cms.test/placeholder.png", "霸王别姬", true)
	assert.Equal(t, Command{Kind: Search, Keyword: "霸王别姬"}, cmd)
	assert.Equal(t, 0, m.Attempts())

	cmd = m.Handle(Event{Kind: SearchResult, URL: "//img.test/found.jpg"})
	assert.Equal(t, Command{Kind: Load, URL: "https://img.test/found.jpg"}, cmd)
	assert.Equal(t, 0, m.Stage())

	assert.Equal(t, None, m.Handle(Event{Kind: LoadOK}).Kind)
	assert.Equal(t, Loaded, m.Status())
	assert.Equal(t, "https://img.test/found.jpg", m.Current())
}

func TestMachineFullEscalation(t *testing.T) {
	rw := testRewriter()
	m := NewMachine(rw)
	src := "https://img.test/a.jpg"

	cmd := m.SetSource(src, "kw", true)
	assert.Equal(t, Command{Kind: Load, URL: src}, cmd)

	cmd = m.Handle(Event{Kind: LoadFailed})
	assert.Equal(t, Command{Kind: Load, URL: rw.Proxy(0, src)}, cmd)
	assert.Equal(t, 1, m.Stage())

	cmd = m.Handle(Event{Kind: LoadFailed})
	assert.Equal(t, Command{Kind: Load, URL: rw.Proxy(1, src)}, cmd)
	assert.Equal(t, 2, m.Stage())

	cmd = m.Handle(Event{Kind: LoadFailed})
	assert.Equal(t, Command{Kind: Search, Keyword: "kw"}, cmd)
	assert.Equal(t, 3, m.Stage())
	assert.Equal(t, Searching, m.Status())

	// the found image fails everywhere too: no second search
	found := "https://img.test/b.jpg"
	cmd = m.Handle(Event{Kind: SearchResult, URL: found})
	assert.Equal(t, Command{Kind: Load, URL: found}, cmd)
	for i := 0; i < rw.Stages(); i++ {
		cmd = m.Handle(Event{Kind: LoadFailed})
		require.Equal(t, Load, cmd.Kind)
	}
	cmd = m.Handle(Event{Kind: LoadFailed})

	assert.Equal(t, None, cmd.Kind)
	assert.Equal(t, Placeholder, m.Status())
	assert.Equal(t, 1, m.Searches())
	assert.Equal(t, 6, m.Attempts())
}

func TestMachineEmptySearchResult(t *testing.T) {
	m := NewMachine(testRewriter())
	m.SetSource("", "kw", true)
	require.Equal(t, Searching, m.Status())

	assert.Equal(t, None, m.Handle(Event{Kind: SearchResult}).Kind)
	assert.Equal(t, Placeholder, m.Status())
}

func TestMachineInView(t *testing.T) {
	m := NewMachine(testRewriter())

	cmd := m.SetSource("https://img.test/a.jpg", "", false)
	assert.Equal(t, None, cmd.Kind)
	assert.Equal(t, Idle, m.Status())

	cmd = m.Handle(Event{Kind: InView})
	assert.Equal(t, Command{Kind: Load, URL: "https://img.test/a.jpg"}, cmd)

	// repeated proximity reports do nothing
	assert.Equal(t, None, m.Handle(Event{Kind: InView}).Kind)
	assert.Equal(t, 1, m.Attempts())
}

func TestMachineIgnoresStrayEvents(t *testing.T) {
	m := NewMachine(testRewriter())

	assert.Equal(t, None, m.Handle(Event{Kind: LoadFailed}).Kind)
	assert.Equal(t, None, m.Handle(Event{Kind: SearchResult, URL: "https://img.test/x.jpg"}).Kind)
	assert.Equal(t, Idle, m.Status())

	m.SetSource("https://img.test/a.jpg", "", true)
	m.Handle(Event{Kind: LoadOK})
	assert.Equal(t, None, m.Handle(Event{Kind: LoadFailed}).Kind)
	assert.Equal(t, Loaded, m.Status())
	assert.Equal(t, 0, m.Stage())
}

func TestMachineNewSourceResets(t *testing.T) {
	m := NewMachine(testRewriter())

	m.SetSource("https://img.test/a.jpg", "kw", true)
	m.Handle(Event{Kind: LoadFailed})
	m.Handle(Event{Kind: LoadFailed})
	m.Handle(Event{Kind: LoadFailed})
	require.Equal(t, Searching, m.Status())

	cmd := m.SetSource("https://img.test/b.jpg", "kw", false)
	assert.Equal(t, Command{Kind: Load, URL: "https://img.test/b.jpg"}, cmd)
	assert.Equal(t, 0, m.Stage())
	assert.Equal(t, 1, m.Attempts())
	assert.Equal(t, 0, m.Searches())

	// the old search answer arrives late and is dropped
	assert.Equal(t, None, m.Handle(Event{Kind: SearchResult, URL: "https://img.test/late.jpg"}).Kind)
	assert.Equal(t, "https://img.test/b.jpg", m.Current())
}
