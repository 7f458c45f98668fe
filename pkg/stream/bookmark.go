// Package stream drives incremental extraction: it walks an entity's
// pages, classifies failures, retries with bounded backoff behind a
// circuit breaker, and commits a resume bookmark at page boundaries.
package stream

import (
	"sync"
	"time"

	"github.com/ajitpratap0/comet/pkg/errors"
	"github.com/ajitpratap0/comet/pkg/json"
)

// BookmarkStore persists the last successfully processed replication
// key value per entity. Persistence to durable storage is the caller's
// concern; the store only defines the access contract and wire format.
type BookmarkStore interface {
	// Get returns the bookmark for an entity, or false when none is set.
	Get(entity string) (time.Time, bool)
	// Set records the bookmark for an entity.
	Set(entity string, value time.Time)
}

// MemoryBookmarkStore is a thread-safe in-memory BookmarkStore.
type MemoryBookmarkStore struct {
	mu        sync.RWMutex
	bookmarks map[string]time.Time
}

// NewMemoryBookmarkStore creates an empty store.
func NewMemoryBookmarkStore() *MemoryBookmarkStore {
	return &MemoryBookmarkStore{bookmarks: make(map[string]time.Time)}
}

// Get returns the bookmark for an entity.
func (s *MemoryBookmarkStore) Get(entity string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.bookmarks[entity]
	return t, ok
}

// Set records the bookmark for an entity.
func (s *MemoryBookmarkStore) Set(entity string, value time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookmarks[entity] = value
}

// bookmarkEntry is the per-entity wire representation.
type bookmarkEntry struct {
	ReplicationKeyValue string `json:"replication_key_value"`
}

// Export serializes the store as
// {entity: {replication_key_value: ISO-8601}} for an external state
// store to persist.
func (s *MemoryBookmarkStore) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]bookmarkEntry, len(s.bookmarks))
	for entity, t := range s.bookmarks {
		out[entity] = bookmarkEntry{ReplicationKeyValue: t.UTC().Format(time.RFC3339)}
	}
	return json.Marshal(out)
}

// Import loads previously exported bookmark state, replacing the
// current contents.
func (s *MemoryBookmarkStore) Import(data []byte) error {
	var in map[string]bookmarkEntry
	if err := json.Unmarshal(data, &in); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "malformed bookmark state")
	}

	bookmarks := make(map[string]time.Time, len(in))
	for entity, entry := range in {
		t, err := time.Parse(time.RFC3339, entry.ReplicationKeyValue)
		if err != nil {
			return errors.Wrapf(err, errors.ErrorTypeConfig,
				"malformed bookmark timestamp for entity %q", entity)
		}
		bookmarks[entity] = t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookmarks = bookmarks
	return nil
}
