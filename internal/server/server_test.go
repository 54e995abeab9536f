package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justchokingaround/vodhub/internal/aggregate"
	"github.com/justchokingaround/vodhub/internal/cms"
	"github.com/justchokingaround/vodhub/internal/config"
	"github.com/justchokingaround/vodhub/internal/gateway"
	"github.com/justchokingaround/vodhub/internal/history"
	"github.com/justchokingaround/vodhub/internal/imagepipe"
	"github.com/justchokingaround/vodhub/internal/kvstore"
	"github.com/justchokingaround/vodhub/internal/media"
	"github.com/justchokingaround/vodhub/internal/metadata"
	"github.com/justchokingaround/vodhub/internal/sources"
)

const backendA = `{"code":1,"list":[{"vod_id":42,"vod_name":"霸王别姬","vod_pic":"https://img.test/42.jpg",
"vod_play_from":"lzm3u8","vod_play_url":"第1集$https://v.test/1.m3u8#第2集$https://v.test/2.m3u8","vod_remarks":"HD"}]}`

// pngHeader is enough for content sniffing
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type testEnv struct {
	upstream *httptest.Server
	api      *httptest.Server
	server   *Server
	apiA     string
	apiB     string
}

func newTestEnv(t *testing.T, passphrase string) *testEnv {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch r.URL.Path {
		case "/a/api.php/provide/vod":
			w.Header().Set("Content-Type", "application/json")
			if q.Get("ac") == "list" || q.Get("ids") == "42" || q.Get("wd") == "霸王别姬" {
				_, _ = w.Write([]byte(backendA))
				return
			}
			_, _ = w.Write([]byte(`{"code":1,"list":[]}`))
		case "/b/api.php/provide/vod":
			w.WriteHeader(http.StatusBadGateway)
		case "/j/subject_suggest":
			_, _ = w.Write([]byte(`[]`))
		case "/j/search_subjects":
			_, _ = w.Write([]byte(`{"subjects":[{"id":"1","title":"狂飙","rate":"8.5","cover":"https://img.test/k.jpg"}]}`))
		case "/img/ok.jpg":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(pngHeader)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(upstream.Close)

	cfg := config.Default()
	cfg.Sources.BuiltinName = "默认源"
	cfg.Sources.BuiltinURL = upstream.URL + "/a/api.php/provide/vod"
	cfg.Metadata.SuggestURL = upstream.URL + "/j/subject_suggest"
	cfg.Metadata.SubjectURL = upstream.URL + "/subject/"
	cfg.Metadata.HotURL = upstream.URL + "/j/search_subjects"
	cfg.Images.ProxyTemplates = []string{upstream.URL + "/proxy?url={url}"}

	store := kvstore.NewMemoryStore()
	gw := gateway.New(gateway.Options{})
	registry := sources.New(store, nil, &cfg.Sources, nil)
	client := cms.NewClient(gw, nil)
	resolver := metadata.New(gw, &cfg.Metadata, store, nil)

	s := New(Deps{
		Sources:    registry,
		CMS:        client,
		Metadata:   resolver,
		Engine:     aggregate.New(registry, client, resolver, nil),
		History:    history.NewService(store, cfg.History.MaxEntries),
		Images:     imagepipe.NewResolver(&cfg.Images, gw, resolver, nil),
		Passphrase: passphrase,
	})

	api := httptest.NewServer(s.Handler())
	t.Cleanup(api.Close)

	return &testEnv{
		upstream: upstream,
		api:      api,
		server:   s,
		apiA:     cfg.Sources.BuiltinURL,
		apiB:     upstream.URL + "/b/api.php/provide/vod",
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.api.URL+path, reader)
	require.NoError(t, err)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestAccessKey(t *testing.T) {
	env := newTestEnv(t, "s3cret")

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/sources", nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/sources?key=wrong", nil).StatusCode)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/sources?key=s3cret", nil).StatusCode)

	req, err := http.NewRequest(http.MethodGet, env.api.URL+"/api/sources", nil)
	require.NoError(t, err)
	req.Header.Set(AccessKeyHeader, "s3cret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	env.server.SetPassphrase("")
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/sources", nil).StatusCode)
}

func TestPreflight(t *testing.T) {
	env := newTestEnv(t, "s3cret")

	req, err := http.NewRequest(http.MethodOptions, env.api.URL+"/api/detail", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), AccessKeyHeader)
}

func TestSourcesAPI(t *testing.T) {
	env := newTestEnv(t, "")

	list := decode[[]sources.Backend](t, env.do(t, http.MethodGet, "/api/sources", nil))
	require.Len(t, list, 1)
	assert.Equal(t, sources.BuiltinID, list[0].ID)

	resp := env.do(t, http.MethodPost, "/api/sources", addSourceRequest{Name: "B", APIURL: env.apiB})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	added := decode[sources.Backend](t, resp)
	assert.True(t, added.Active)
	assert.True(t, added.CanDelete)

	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, "/api/sources", addSourceRequest{Name: "B2", APIURL: env.apiB + "/"}).StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/sources", addSourceRequest{Name: "bad", APIURL: "ftp://x"}).StatusCode)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, "/api/sources/"+sources.BuiltinID, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/sources/nope", nil).StatusCode)

	health := decode[[]sources.Status](t, env.do(t, http.MethodGet, "/api/sources/health", nil))
	require.Len(t, health, 2)
	assert.True(t, health[0].Healthy)
	assert.False(t, health[1].Healthy)

	toggled := decode[sources.Backend](t, env.do(t, http.MethodPost, "/api/sources/"+added.ID+"/toggle", nil))
	assert.False(t, toggled.Active)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/sources/"+added.ID, nil).StatusCode)

	env.do(t, http.MethodPost, "/api/sources", addSourceRequest{Name: "B", APIURL: env.apiB})
	reset := decode[[]sources.Backend](t, env.do(t, http.MethodPost, "/api/sources/reset", nil))
	assert.Len(t, reset, 1)

	synced := decode[[]sources.Backend](t, env.do(t, http.MethodPost, "/api/sources/sync", nil))
	assert.Len(t, synced, 1)
}

func TestDetailAPI(t *testing.T) {
	env := newTestEnv(t, "")
	env.do(t, http.MethodPost, "/api/sources", addSourceRequest{Name: "B", APIURL: env.apiB})

	resp := env.do(t, http.MethodGet, "/api/detail?id=42&api="+url.QueryEscape(env.apiA), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[detailResponse](t, resp)
	require.NotNil(t, body.Main)
	assert.Equal(t, "42", body.Main.ID)
	assert.Equal(t, env.apiA, body.Main.APIURL)
	assert.Empty(t, body.Alternatives)
	require.Len(t, body.PlaySources, 1)
	assert.Equal(t, "默认源", body.PlaySources[0].Name)
	assert.Len(t, body.PlaySources[0].Episodes, 2)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/detail?title=nonsense", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/detail", nil).StatusCode)
}

func TestSearchAndHot(t *testing.T) {
	env := newTestEnv(t, "")

	res := decode[aggregate.SearchResult](t, env.do(t, http.MethodGet, "/api/search?q="+url.QueryEscape("霸王别姬"), nil))
	assert.Empty(t, res.Metadata)
	require.Len(t, res.Backends, 1)
	assert.Equal(t, "默认源", res.Backends[0].Backend)
	assert.Equal(t, "霸王别姬", res.Backends[0].Items[0].Name)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/search", nil).StatusCode)

	hot := decode[[]media.CatalogItem](t, env.do(t, http.MethodGet, "/api/hot?kind=tv&limit=5", nil))
	require.Len(t, hot, 1)
	assert.Equal(t, "狂飙", hot[0].Name)
}

func TestHistoryAPI(t *testing.T) {
	env := newTestEnv(t, "")

	entry := history.Entry{CatalogItem: media.NewMetadataItem("1291546", "霸王别姬", ""), EpisodeIndex: 1}
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodPost, "/api/history", entry).StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/history", history.Entry{}).StatusCode)

	entries := decode[[]history.Entry](t, env.do(t, http.MethodGet, "/api/history", nil))
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].EpisodeIndex)

	found := decode[[]history.Entry](t, env.do(t, http.MethodGet, "/api/history?q="+url.QueryEscape("霸王"), nil))
	assert.Len(t, found, 1)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodPut, "/api/progress", progressBody{ID: "1291546", Episode: 1, Seconds: 42.5}).StatusCode)
	progress := decode[progressBody](t, env.do(t, http.MethodGet, "/api/progress?id=1291546&episode=1", nil))
	assert.Equal(t, 42.5, progress.Seconds)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/progress?id=1291546", nil).StatusCode)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodPut, "/api/session/1291546", sessionBody{SourceIndex: 2, EpisodeIndex: 5}).StatusCode)
	session := decode[sessionBody](t, env.do(t, http.MethodGet, "/api/session/1291546", nil))
	assert.Equal(t, sessionBody{SourceIndex: 2, EpisodeIndex: 5}, session)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/history/1291546", nil).StatusCode)
	entries = decode[[]history.Entry](t, env.do(t, http.MethodGet, "/api/history", nil))
	assert.Empty(t, entries)

	env.do(t, http.MethodPost, "/api/history", entry)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/history", nil).StatusCode)
}

func TestImageAPI(t *testing.T) {
	env := newTestEnv(t, "")
	good := env.upstream.URL + "/img/ok.jpg"

	resp := env.do(t, http.MethodGet, "/api/image?url="+url.QueryEscape(good), nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, good, resp.Header.Get("Location"))

	resp = env.do(t, http.MethodGet, "/api/image?url="+url.QueryEscape("https://cms.test/nopic.jpg"), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, imagepipe.PlaceholderContentType, resp.Header.Get("Content-Type"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<svg"))

	res := decode[imagepipe.Result](t, env.do(t, http.MethodGet, "/api/image?format=json&slot=poster-1&url="+url.QueryEscape(env.upstream.URL+"/img/missing.jpg"), nil))
	assert.True(t, res.Placeholder)
	assert.Equal(t, 2, res.Attempts)
}
