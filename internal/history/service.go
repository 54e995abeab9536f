// Package history keeps the watch history and per-title session state
// (last play-source, last episode, playback offsets) in the kv store.
package history

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/justchokingaround/vodhub/internal/kvstore"
	"github.com/justchokingaround/vodhub/internal/media"
)

const (
	// StoreKey is the kv key holding the history list
	StoreKey = "history"
	// DefaultMaxEntries caps the list when no limit is configured
	DefaultMaxEntries = 20
)

var ErrInvalidEntry = errors.New("history entry has no id")

// SortOrder defines the sorting order for history items
type SortOrder string

const (
	SortRecentFirst SortOrder = "recent_first"
	SortOldestFirst SortOrder = "oldest_first"
	SortTitleAsc    SortOrder = "title_asc"
	SortTitleDesc   SortOrder = "title_desc"
)

// Entry is one watched title
type Entry struct {
	media.CatalogItem
	EpisodeIndex int       `json:"episode_index"`
	EpisodeName  string    `json:"episode_name,omitempty"`
	SourceIndex  int       `json:"source_index"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FilterOptions narrows a List call
type FilterOptions struct {
	Origin media.Origin // empty for all
	Limit  int          // 0 = no limit
	SortBy SortOrder
}

// Service provides history management functionality
type Service struct {
	mu    sync.Mutex
	store kvstore.Store
	max   int
	now   func() time.Time
}

// NewService creates a history service capped at maxEntries
func NewService(store kvstore.Store, maxEntries int) *Service {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Service{store: store, max: maxEntries, now: time.Now}
}

func (s *Service) load() ([]Entry, error) {
	var entries []Entry
	if _, err := kvstore.GetJSON(s.store, StoreKey, &entries); err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return entries, nil
}

func (s *Service) save(entries []Entry) error {
	if err := kvstore.SetJSON(s.store, StoreKey, entries); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

// Add puts entry at the front. An existing entry with the same id is replaced
// rather than duplicated, and the list is trimmed to the cap.
func (s *Service) Add(entry Entry) error {
	if strings.TrimSpace(entry.ID) == "" {
		return ErrInvalidEntry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	entry.UpdatedAt = s.now()
	out := make([]Entry, 0, len(entries)+1)
	out = append(out, entry)
	for _, e := range entries {
		if e.ID != entry.ID {
			out = append(out, e)
		}
	}
	if len(out) > s.max {
		out = out[:s.max]
	}

	return s.save(out)
}

// List returns the history, most recent first unless filter says otherwise
func (s *Service) List(filter FilterOptions) ([]Entry, error) {
	s.mu.Lock()
	entries, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if filter.Origin != "" {
		kept := entries[:0]
		for _, e := range entries {
			if e.Origin == filter.Origin {
				kept = append(kept, e)
			}
		}
		entries = kept
	}

	switch filter.SortBy {
	case SortOldestFirst:
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].UpdatedAt.Before(entries[j].UpdatedAt) })
	case SortTitleAsc:
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	case SortTitleDesc:
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Name > entries[j].Name })
	}

	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}
	return entries, nil
}

// Get returns the entry for id
func (s *Service) Get(id string) (*Entry, bool, error) {
	entries, err := s.List(FilterOptions{})
	if err != nil {
		return nil, false, err
	}
	for i := range entries {
		if entries[i].ID == id {
			return &entries[i], true, nil
		}
	}
	return nil, false, nil
}

// Remove deletes the entry for id; removing an unknown id is not an error
func (s *Service) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	return s.save(kept)
}

// Clear empties the history. Session state is kept.
func (s *Service) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Delete(StoreKey)
}

// entryNames adapts a history list to fuzzy.Source
type entryNames []Entry

func (e entryNames) String(i int) string { return e[i].Name }
func (e entryNames) Len() int            { return len(e) }

// Search ranks history entries by fuzzy match against their names
func (s *Service) Search(query string) ([]Entry, error) {
	entries, err := s.List(FilterOptions{})
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return entries, nil
	}

	matches := fuzzy.FindFrom(query, entryNames(entries))
	out := make([]Entry, 0, len(matches))
	for _, m := range matches {
		out = append(out, entries[m.Index])
	}
	return out, nil
}

func sourceKey(id string) string  { return "last_source:" + id }
func episodeKey(id string) string { return "last_episode:" + id }
func progressKey(id string, episode int) string {
	return fmt.Sprintf("progress:%s:%d", id, episode)
}

// SetSourceIndex remembers the play-source last used for a title
func (s *Service) SetSourceIndex(id string, index int) error {
	return s.store.Set(sourceKey(id), strconv.Itoa(index))
}

// SourceIndex returns the remembered play-source, 0 when unknown
func (s *Service) SourceIndex(id string) int {
	return s.getInt(sourceKey(id))
}

// SetEpisodeIndex remembers the episode last played for a title
func (s *Service) SetEpisodeIndex(id string, index int) error {
	return s.store.Set(episodeKey(id), strconv.Itoa(index))
}

// EpisodeIndex returns the remembered episode, 0 when unknown
func (s *Service) EpisodeIndex(id string) int {
	return s.getInt(episodeKey(id))
}

// SetProgress stores the playback offset in seconds for one episode
func (s *Service) SetProgress(id string, episode int, seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	return s.store.Set(progressKey(id, episode), strconv.FormatFloat(seconds, 'f', -1, 64))
}

// Progress returns the stored playback offset, 0 when unknown
func (s *Service) Progress(id string, episode int) float64 {
	raw, ok, err := s.store.Get(progressKey(id, episode))
	if err != nil || !ok {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

func (s *Service) getInt(key string) int {
	raw, ok, err := s.store.Get(key)
	if err != nil || !ok {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
