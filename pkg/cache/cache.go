// Package cache provides a namespaced TTL key-value store for Comet
// metadata. Discovery and schema components share one Manager instance;
// each concern (entities, schemas, metadata) gets its own namespace so
// cache keys never collide and stats stay attributable.
package cache

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/comet/pkg/metrics"
)

// Entry is a cached value with its expiry timestamp. Entries are removed
// on expiry check or capacity eviction, never mutated in place.
type Entry struct {
	Value     interface{}
	ExpiresAt time.Time
}

// Stats holds hit/miss/eviction counters for one namespace.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}

// Namespace is a TTL-bounded key-value store with capacity eviction.
// Concurrent writes to the same key are last-writer-wins; cached
// metadata is immutable within its TTL window so this is safe.
type Namespace struct {
	name     string
	ttl      time.Duration
	capacity int
	logger   *zap.Logger

	mu        sync.RWMutex
	entries   map[string]Entry
	hits      int64
	misses    int64
	evictions int64

	// now is swappable for tests
	now func() time.Time
}

// Manager owns the named caches and their shared TTL/capacity settings.
type Manager struct {
	ttl      time.Duration
	capacity int
	logger   *zap.Logger

	mu         sync.Mutex
	namespaces map[string]*Namespace
}

// NewManager creates a cache manager. capacity bounds entries per
// namespace; 0 means unbounded.
func NewManager(ttl time.Duration, capacity int, logger *zap.Logger) *Manager {
	return &Manager{
		ttl:        ttl,
		capacity:   capacity,
		logger:     logger.With(zap.String("component", "cache")),
		namespaces: make(map[string]*Namespace),
	}
}

// Namespace returns the named cache, creating it on first use.
func (m *Manager) Namespace(name string) *Namespace {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ns, ok := m.namespaces[name]; ok {
		return ns
	}

	ns := &Namespace{
		name:     name,
		ttl:      m.ttl,
		capacity: m.capacity,
		logger:   m.logger.With(zap.String("namespace", name)),
		entries:  make(map[string]Entry),
		now:      time.Now,
	}
	m.namespaces[name] = ns
	return ns
}

// Clear drops every entry in every namespace. Cached entity descriptors
// are invalidated here.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ns := range m.namespaces {
		ns.Clear()
	}
}

// Stats returns per-namespace statistics.
func (m *Manager) Stats() map[string]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Stats, len(m.namespaces))
	for name, ns := range m.namespaces {
		out[name] = ns.Stats()
	}
	return out
}

// Get returns the cached value for key, or false on miss. Expired
// entries are removed during the check.
func (n *Namespace) Get(key string) (interface{}, bool) {
	n.mu.RLock()
	entry, ok := n.entries[key]
	n.mu.RUnlock()

	if !ok {
		n.miss()
		return nil, false
	}

	if n.now().After(entry.ExpiresAt) {
		n.mu.Lock()
		// Re-check under the write lock; another writer may have
		// refreshed the entry meanwhile.
		if current, still := n.entries[key]; still && n.now().After(current.ExpiresAt) {
			delete(n.entries, key)
		}
		n.mu.Unlock()
		n.miss()
		return nil, false
	}

	n.mu.Lock()
	n.hits++
	n.mu.Unlock()
	metrics.CacheHits.WithLabelValues(n.name).Inc()
	return entry.Value, true
}

// Set stores value under key with the namespace TTL. When the namespace
// is at capacity, the entry closest to expiry is evicted first.
func (n *Namespace) Set(key string, value interface{}) {
	n.SetWithTTL(key, value, n.ttl)
}

// SetWithTTL stores value under key with an explicit TTL.
func (n *Namespace) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.entries[key]; !exists && n.capacity > 0 && len(n.entries) >= n.capacity {
		n.evictOldest()
	}

	n.entries[key] = Entry{
		Value:     value,
		ExpiresAt: n.now().Add(ttl),
	}
}

// Delete removes a single key.
func (n *Namespace) Delete(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.entries, key)
}

// Clear removes every entry in the namespace.
func (n *Namespace) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = make(map[string]Entry)
}

// Len returns the current entry count.
func (n *Namespace) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.entries)
}

// Stats returns a snapshot of the namespace counters.
func (n *Namespace) Stats() Stats {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return Stats{
		Hits:      n.hits,
		Misses:    n.misses,
		Evictions: n.evictions,
		Size:      len(n.entries),
	}
}

// evictOldest removes the entry closest to expiry. Callers hold the
// write lock.
func (n *Namespace) evictOldest() {
	var oldestKey string
	var oldestExpiry time.Time

	for key, entry := range n.entries {
		if oldestKey == "" || entry.ExpiresAt.Before(oldestExpiry) {
			oldestKey = key
			oldestExpiry = entry.ExpiresAt
		}
	}

	if oldestKey != "" {
		delete(n.entries, oldestKey)
		n.evictions++
		n.logger.Debug("evicted cache entry",
			zap.String("key", oldestKey),
			zap.Time("expires_at", oldestExpiry))
	}
}

func (n *Namespace) miss() {
	n.mu.Lock()
	n.misses++
	n.mu.Unlock()
	metrics.CacheMisses.WithLabelValues(n.name).Inc()
}
