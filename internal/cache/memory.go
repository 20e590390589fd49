package cache

import (
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultTTL is cache_ttl_seconds' default (spec.md §6).
const DefaultTTL = time.Hour

// DefaultMaxEntries is cache_max_entries' default (spec.md §6).
const DefaultMaxEntries = 10_000

// Memory is an in-process cache backed by hashicorp/golang-lru/v2's
// expirable LRU, which gives capacity-bounded eviction and a single
// absolute TTL applied to every entry in one off-the-shelf structure. This
// generalizes the teacher's memoryCache (internal/registrydata/cache_memory.go),
// which is TTL-only and unbounded in entry count, to the capacity bound
// spec.md §4.9 requires. Values are stored JSON-encoded, exactly as the
// Redis backend stores them, so both backends round-trip through the same
// Cache interface regardless of the concrete type cached.
type Memory struct {
	lru *lru.LRU[string, []byte]
}

// NewMemory constructs a Memory cache holding up to maxEntries records,
// each expiring ttl after insertion. maxEntries <= 0 and ttl <= 0 fall back
// to DefaultMaxEntries/DefaultTTL.
func NewMemory(maxEntries int, ttl time.Duration) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{lru: lru.NewLRU[string, []byte](maxEntries, nil, ttl)}
}

// Get decodes the stored value into dst. A decode failure deletes the
// corrupt entry and reports a miss, matching the Redis backend.
func (m *Memory) Get(key string, dst any) (bool, error) {
	v, ok := m.lru.Get(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(v, dst); err != nil {
		m.lru.Remove(key)
		return false, nil
	}
	return true, nil
}

// Set JSON-encodes value and stores it under key. ttl is accepted for
// interface parity with Redis but the backing LRU applies one absolute TTL
// to every entry, configured at construction.
func (m *Memory) Set(key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.lru.Add(key, b)
	return nil
}

// Invalidate removes key from the cache.
func (m *Memory) Invalidate(key string) error {
	m.lru.Remove(key)
	return nil
}
