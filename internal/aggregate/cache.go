package aggregate

import (
	"sync"
	"time"

	"tenderwatch/internal/domain"
)

// cacheEntry pairs a contract batch with its capture time.
type cacheEntry struct {
	contracts  []domain.NormalizedContract
	capturedAt time.Time
}

// Cache is a TTL-bounded per-source cache of fetched contracts. Entries
// are evicted lazily on read; there is no background sweep. Staleness
// within the TTL is acceptable by design of the callers.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Get returns the cached contracts for key when the entry is younger
// than ttl at now. Stale entries are removed.
func (c *Cache) Get(key string, now time.Time, ttl time.Duration) ([]domain.NormalizedContract, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if ttl <= 0 || now.Sub(e.capturedAt) >= ttl {
		delete(c.entries, key)
		return nil, false
	}

	out := make([]domain.NormalizedContract, len(e.contracts))
	copy(out, e.contracts)
	return out, true
}

// Put stores contracts for key, stamped at now.
func (c *Cache) Put(key string, contracts []domain.NormalizedContract, now time.Time) {
	cp := make([]domain.NormalizedContract, len(contracts))
	copy(cp, contracts)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{contracts: cp, capturedAt: now}
}

// Len returns the number of entries currently held, stale or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
