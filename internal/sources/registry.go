// Package sources keeps the set of configured backend index APIs.
//
// The local kv store holds the authoritative list. An optional remote store is
// mirrored best-effort on every mutation and pulled by Sync.
package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/justchokingaround/vodhub/internal/config"
	"github.com/justchokingaround/vodhub/internal/kvstore"
	"github.com/justchokingaround/vodhub/internal/textutil"
)

const (
	// StoreKey is the kv key holding the persisted list
	StoreKey = "backends"
	// BuiltinID identifies the built-in entry
	BuiltinID = "builtin"

	remoteIDPrefix = "remote-"
)

var (
	ErrNotDeletable    = errors.New("backend cannot be deleted")
	ErrNotFound        = errors.New("backend not found")
	ErrInvalidBackend  = errors.New("invalid backend")
	ErrDuplicateSource = errors.New("backend already registered")
)

// Backend is one configured backend index API
type Backend struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	APIURL    string `json:"api_url"`
	Active    bool   `json:"active"`
	CanDelete bool   `json:"can_delete"`
}

// Registry manages the configured backends
type Registry struct {
	mu      sync.Mutex
	store   kvstore.Store
	remote  RemoteStore
	builtin Backend
	logger  *slog.Logger
}

// New creates a registry. remote may be nil, which leaves remote sync inert.
func New(store kvstore.Store, remote RemoteStore, cfg *config.SourcesConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:  store,
		remote: remote,
		builtin: Backend{
			ID:        BuiltinID,
			Name:      cfg.BuiltinName,
			APIURL:    cfg.BuiltinURL,
			Active:    true,
			CanDelete: false,
		},
		logger: logger,
	}
}

// List returns every backend, built-in first
func (r *Registry) List() []Backend {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Active returns the enabled backends in list order
func (r *Registry) Active() []Backend {
	all := r.List()
	active := make([]Backend, 0, len(all))
	for _, b := range all {
		if b.Active {
			active = append(active, b)
		}
	}
	return active
}

// Get returns the backend with the given id
func (r *Registry) Get(id string) (Backend, error) {
	for _, b := range r.List() {
		if b.ID == id {
			return b, nil
		}
	}
	return Backend{}, fmt.Errorf("%s: %w", id, ErrNotFound)
}

// NameFor returns the display name of the backend owning apiURL, or ""
func (r *Registry) NameFor(apiURL string) string {
	key := textutil.NormalizeURL(apiURL)
	for _, b := range r.List() {
		if textutil.NormalizeURL(b.APIURL) == key {
			return b.Name
		}
	}
	return ""
}

// Add registers a new backend, mirrors it to the remote store and re-syncs.
// The local entry is kept as is when the remote insert fails.
func (r *Registry) Add(ctx context.Context, name, apiURL string) (Backend, error) {
	name = strings.TrimSpace(name)
	apiURL = strings.TrimSpace(apiURL)
	if err := validate(name, apiURL); err != nil {
		return Backend{}, err
	}

	entry := Backend{
		ID:        uuid.NewString(),
		Name:      name,
		APIURL:    apiURL,
		Active:    true,
		CanDelete: true,
	}

	r.mu.Lock()
	list := r.load()
	for _, b := range list {
		if textutil.NormalizeURL(b.APIURL) == textutil.NormalizeURL(apiURL) {
			r.mu.Unlock()
			return Backend{}, fmt.Errorf("%s: %w", apiURL, ErrDuplicateSource)
		}
	}
	list = append(list, entry)
	err := r.save(list)
	r.mu.Unlock()
	if err != nil {
		return Backend{}, err
	}

	if r.remote != nil {
		if err := r.remote.Insert(ctx, entry.Name, entry.APIURL, entry.Active); err != nil {
			r.logger.Warn("failed to mirror backend to remote store", "url", entry.APIURL, "error", err)
			return entry, nil
		}
		r.Sync(ctx)
	}

	for _, b := range r.List() {
		if textutil.NormalizeURL(b.APIURL) == textutil.NormalizeURL(apiURL) {
			return b, nil
		}
	}
	return entry, nil
}

// Delete removes a backend locally and, best-effort, the remote row with the same URL
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	list := r.load()
	idx := indexOf(list, id)
	if idx < 0 {
		r.mu.Unlock()
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	target := list[idx]
	if !target.CanDelete || target.ID == BuiltinID {
		r.mu.Unlock()
		return fmt.Errorf("%s: %w", target.Name, ErrNotDeletable)
	}
	list = append(list[:idx], list[idx+1:]...)
	err := r.save(list)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	if r.remote != nil {
		if err := r.remote.DeleteByURL(ctx, target.APIURL); err != nil {
			r.logger.Warn("failed to delete backend from remote store", "url", target.APIURL, "error", err)
		}
	}
	return nil
}

// Toggle flips a backend's active flag
func (r *Registry) Toggle(ctx context.Context, id string) (Backend, error) {
	r.mu.Lock()
	list := r.load()
	idx := indexOf(list, id)
	if idx < 0 {
		r.mu.Unlock()
		return Backend{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	list[idx].Active = !list[idx].Active
	updated := list[idx]
	err := r.save(list)
	r.mu.Unlock()
	if err != nil {
		return Backend{}, err
	}

	if r.remote != nil && updated.ID != BuiltinID {
		if err := r.remote.SetActive(ctx, updated.APIURL, updated.Active); err != nil {
			r.logger.Debug("failed to mirror toggle to remote store", "url", updated.APIURL, "error", err)
		}
	}
	return updated, nil
}

// Sync replaces the local list with the remote rows, built-in first.
// Failures leave local state unchanged and are not reported.
func (r *Registry) Sync(ctx context.Context) {
	if r.remote == nil {
		return
	}

	rows, err := r.remote.List(ctx)
	if err != nil {
		r.logger.Debug("remote backend sync failed", "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	builtin := r.load()[0]
	merged := make([]Backend, 0, len(rows)+1)
	merged = append(merged, builtin)
	seen := map[string]bool{textutil.NormalizeURL(builtin.APIURL): true}
	for _, row := range rows {
		key := textutil.NormalizeURL(row.APIURL)
		if seen[key] || validate(row.Name, row.APIURL) != nil {
			continue
		}
		seen[key] = true
		merged = append(merged, Backend{
			ID:        fmt.Sprintf("%s%d", remoteIDPrefix, row.ID),
			Name:      row.Name,
			APIURL:    row.APIURL,
			Active:    row.Active,
			CanDelete: true,
		})
	}

	if err := r.save(merged); err != nil {
		r.logger.Warn("failed to persist synced backends", "error", err)
	}
}

// Reset restores the built-in-only list locally. Remote rows are left alone.
func (r *Registry) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save([]Backend{r.builtin})
}

// load reads the persisted list; callers hold r.mu
func (r *Registry) load() []Backend {
	var list []Backend
	ok, err := kvstore.GetJSON(r.store, StoreKey, &list)
	if err != nil {
		r.logger.Warn("failed to load backends, using built-in only", "error", err)
	}
	if !ok || err != nil {
		return []Backend{r.builtin}
	}

	out := make([]Backend, 0, len(list)+1)
	var builtin *Backend
	for _, b := range list {
		if b.ID == BuiltinID {
			if builtin == nil {
				kept := r.builtin
				kept.Active = b.Active
				builtin = &kept
			}
			continue
		}
		out = append(out, b)
	}
	if builtin == nil {
		builtin = &r.builtin
	}
	return append([]Backend{*builtin}, out...)
}

func (r *Registry) save(list []Backend) error {
	if err := kvstore.SetJSON(r.store, StoreKey, list); err != nil {
		return fmt.Errorf("failed to save backends: %w", err)
	}
	return nil
}

func indexOf(list []Backend, id string) int {
	for i, b := range list {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func validate(name, apiURL string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidBackend)
	}
	u, err := url.Parse(apiURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q is not an http(s) url", ErrInvalidBackend, apiURL)
	}
	return nil
}
