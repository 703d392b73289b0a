package forecast

import (
	"sync"
	"time"

	"raincheck/internal/types"
)

// ttlCache is a small read-mostly cache with per-entry expiry. Concurrent
// readers are safe; concurrent writers race benignly (last write wins, which
// is acceptable because values are idempotent per key).
type ttlCache[V any] struct {
	mu      sync.RWMutex
	clock   types.Clock
	ttl     time.Duration
	entries map[string]cacheEntry[V]
}

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

func newTTLCache[V any](clock types.Clock, ttl time.Duration) *ttlCache[V] {
	return &ttlCache[V]{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]cacheEntry[V]),
	}
}

// Get returns the cached value for key if present and unexpired.
func (c *ttlCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.clock.Now().After(entry.expiresAt) {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set stores value under key with the cache's TTL.
func (c *ttlCache[V]) Set(key string, value V) {
	c.mu.Lock()
	c.entries[key] = cacheEntry[V]{
		value:     value,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}
