package sources

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justchokingaround/vodhub/internal/config"
	"github.com/justchokingaround/vodhub/internal/database"
	"github.com/justchokingaround/vodhub/internal/kvstore"
)

var testSources = &config.SourcesConfig{
	BuiltinName: "默认源",
	BuiltinURL:  "https://builtin.test/api.php/provide/vod",
}

// fakeRemote is an in-memory RemoteStore that can be switched to failing
type fakeRemote struct {
	mu     sync.Mutex
	rows   []RemoteRow
	nextID uint
	fail   bool

	failInsert bool
}

func (f *fakeRemote) List(context.Context) ([]RemoteRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("remote down")
	}
	return append([]RemoteRow(nil), f.rows...), nil
}

func (f *fakeRemote) Insert(_ context.Context, name, apiURL string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail || f.failInsert {
		return errors.New("remote down")
	}
	f.nextID++
	f.rows = append(f.rows, RemoteRow{ID: f.nextID, Name: name, APIURL: apiURL, Active: active})
	return nil
}

func (f *fakeRemote) DeleteByURL(_ context.Context, apiURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("remote down")
	}
	for i, r := range f.rows {
		if r.APIURL == apiURL {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return errors.New("missing")
}

func (f *fakeRemote) SetActive(_ context.Context, apiURL string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].APIURL == apiURL {
			f.rows[i].Active = active
		}
	}
	return nil
}

func TestListDefaults(t *testing.T) {
	r := New(kvstore.NewMemoryStore(), nil, testSources, nil)

	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, BuiltinID, list[0].ID)
	assert.Equal(t, "默认源", list[0].Name)
	assert.False(t, list[0].CanDelete)
	assert.True(t, list[0].Active)
}

func TestListReinsertsBuiltin(t *testing.T) {
	store := kvstore.NewMemoryStore()
	require.NoError(t, kvstore.SetJSON(store, StoreKey, []Backend{
		{ID: "a", Name: "A", APIURL: "https://a.test/api", Active: true, CanDelete: true},
	}))

	list := New(store, nil, testSources, nil).List()
	require.Len(t, list, 2)
	assert.Equal(t, BuiltinID, list[0].ID)
	assert.Equal(t, "a", list[1].ID)
}

func TestAddDeleteToggle(t *testing.T) {
	ctx := context.Background()
	r := New(kvstore.NewMemoryStore(), nil, testSources, nil)

	added, err := r.Add(ctx, "线路二", "https://two.test/api.php/provide/vod")
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.True(t, added.Active)
	assert.True(t, added.CanDelete)
	assert.Len(t, r.List(), 2)
	assert.Equal(t, "线路二", r.NameFor("https://two.test/api.php/provide/vod/"))

	_, err = r.Add(ctx, "dup", "https://TWO.test/api.php/provide/vod")
	assert.ErrorIs(t, err, ErrDuplicateSource)

	_, err = r.Add(ctx, "", "https://x.test")
	assert.ErrorIs(t, err, ErrInvalidBackend)
	_, err = r.Add(ctx, "bad", "ftp://x.test")
	assert.ErrorIs(t, err, ErrInvalidBackend)

	toggled, err := r.Toggle(ctx, added.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Active)
	assert.Len(t, r.Active(), 1)

	assert.ErrorIs(t, r.Delete(ctx, BuiltinID), ErrNotDeletable)
	assert.ErrorIs(t, r.Delete(ctx, "nope"), ErrNotFound)
	require.NoError(t, r.Delete(ctx, added.ID))
	assert.Len(t, r.List(), 1)
}

func TestBuiltinToggleSurvivesReload(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	r := New(store, nil, testSources, nil)

	_, err := r.Toggle(ctx, BuiltinID)
	require.NoError(t, err)

	reloaded := New(store, nil, testSources, nil)
	assert.False(t, reloaded.List()[0].Active)
	assert.Empty(t, reloaded.Active())
}

func TestSync(t *testing.T) {
	ctx := context.Background()

	t.Run("remote truth wins, builtin first", func(t *testing.T) {
		remote := &fakeRemote{}
		remote.rows = []RemoteRow{
			{ID: 7, Name: "远端", APIURL: "https://remote.test/api", Active: true},
			{ID: 8, Name: "dup builtin", APIURL: testSources.BuiltinURL, Active: true},
			{ID: 9, Name: "broken", APIURL: "not a url", Active: true},
		}
		remote.nextID = 9

		r := New(kvstore.NewMemoryStore(), remote, testSources, nil)
		r.Sync(ctx)

		list := r.List()
		require.Len(t, list, 2)
		assert.Equal(t, BuiltinID, list[0].ID)
		assert.Equal(t, "remote-7", list[1].ID)
		assert.True(t, list[1].CanDelete)
	})

	t.Run("add adopts the remote id", func(t *testing.T) {
		remote := &fakeRemote{}
		r := New(kvstore.NewMemoryStore(), remote, testSources, nil)

		added, err := r.Add(ctx, "新线路", "https://new.test/api")
		require.NoError(t, err)
		assert.Equal(t, "remote-1", added.ID)
	})

	t.Run("delete matches the remote row by url", func(t *testing.T) {
		remote := &fakeRemote{}
		store := kvstore.NewMemoryStore()
		require.NoError(t, kvstore.SetJSON(store, StoreKey, []Backend{
			{ID: "local-uuid", Name: "L", APIURL: "https://l.test/api", Active: true, CanDelete: true},
		}))
		remote.rows = []RemoteRow{{ID: 3, Name: "L", APIURL: "https://l.test/api", Active: true}}

		r := New(store, remote, testSources, nil)
		require.NoError(t, r.Delete(ctx, "local-uuid"))
		assert.Empty(t, remote.rows)
	})

	t.Run("failure leaves local state unchanged", func(t *testing.T) {
		store := kvstore.NewMemoryStore()
		r := New(store, nil, testSources, nil)
		_, err := r.Add(ctx, "本地", "https://local.test/api")
		require.NoError(t, err)

		failing := New(store, &fakeRemote{fail: true}, testSources, nil)
		failing.Sync(ctx)
		assert.Len(t, failing.List(), 2)

		added, err := failing.Add(ctx, "another", "https://another.test/api")
		require.NoError(t, err, "remote failure never fails a local mutation")
		assert.Len(t, failing.List(), 3)
		assert.NotContains(t, added.ID, "remote-")
	})

	t.Run("failed insert keeps the local entry", func(t *testing.T) {
		remote := &fakeRemote{failInsert: true}
		r := New(kvstore.NewMemoryStore(), remote, testSources, nil)

		added, err := r.Add(ctx, "新线路", "https://new.test/api")
		require.NoError(t, err)

		list := r.List()
		require.Len(t, list, 2)
		assert.Equal(t, added.ID, list[1].ID)
		assert.Equal(t, "https://new.test/api", list[1].APIURL)

		toggled, err := r.Toggle(ctx, added.ID)
		require.NoError(t, err)
		assert.False(t, toggled.Active)
	})

	t.Run("reset keeps builtin only and leaves remote rows", func(t *testing.T) {
		remote := &fakeRemote{rows: []RemoteRow{{ID: 1, Name: "R", APIURL: "https://r.test/api", Active: true}}, nextID: 1}
		r := New(kvstore.NewMemoryStore(), remote, testSources, nil)
		r.Sync(ctx)
		require.Len(t, r.List(), 2)

		require.NoError(t, r.Reset())
		list := r.List()
		require.Len(t, list, 1)
		assert.Equal(t, BuiltinID, list[0].ID)
		assert.Len(t, remote.rows, 1)
	})
}

func TestGormRemoteStore(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(&config.DatabaseConfig{Path: "file::memory:"})
	require.NoError(t, err)
	defer func() { _ = database.CloseDB(db) }()

	store := NewGormRemoteStore(db)
	require.NoError(t, store.Insert(ctx, "A", "https://a.test/api", true))
	require.NoError(t, store.Insert(ctx, "A again", "https://a.test/api", true), "conflicting url is ignored")
	require.NoError(t, store.Insert(ctx, "B", "https://b.test/api", true))

	rows, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A", rows[0].Name)

	require.NoError(t, store.SetActive(ctx, "https://b.test/api", false))
	require.NoError(t, store.DeleteByURL(ctx, "https://a.test/api"))
	assert.Error(t, store.DeleteByURL(ctx, "https://a.test/api"))

	rows, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Active)

	r := New(kvstore.NewMemoryStore(), store, testSources, nil)
	r.Sync(ctx)
	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, fmt.Sprintf("remote-%d", rows[0].ID), list[1].ID)
}

type fakePinger map[string]error

func (f fakePinger) Ping(_ context.Context, apiURL string) error {
	return f[apiURL]
}

func TestCheckAll(t *testing.T) {
	store := kvstore.NewMemoryStore()
	r := New(store, nil, testSources, nil)
	_, err := r.Add(context.Background(), "down", "https://down.test/api")
	require.NoError(t, err)

	results := r.CheckAll(context.Background(), fakePinger{"https://down.test/api": errors.New("timeout")}, time.Second)
	require.Len(t, results, 2)
	assert.True(t, results[0].Healthy)
	assert.Equal(t, "Online", results[0].Status)
	assert.False(t, results[1].Healthy)
	assert.Equal(t, "timeout", results[1].Error)
	assert.Equal(t, "curl -sS 'https://down.test/api?ac=list&out=json&pg=1'", results[1].CurlCommand)
}

func TestPingURL(t *testing.T) {
	assert.Equal(t, "https://a.test/api.php/provide/vod?ac=list&out=json&pg=1", pingURL("https://a.test/api.php/provide/vod"))
	assert.Equal(t, "https://a.test/api?ac=list&key=k&out=json&pg=1", pingURL(" https://a.test/api?key=k&ac=detail "))
}
