package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryCache is a concurrent in-memory Cache for tests and cacheless
// development runs. Expiry is checked lazily on read; there is no sweeper.
type MemoryCache struct {
	mu    sync.RWMutex
	data  map[string]memoryEntry
	clock func() time.Time
}

// NewMemoryCache returns an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]memoryEntry), clock: time.Now}
}

// NewMemoryCacheWithClock returns a cache reading time from the provided
// clock. Test hook for TTL expiry.
func NewMemoryCacheWithClock(clock func() time.Time) *MemoryCache {
	return &MemoryCache{data: make(map[string]memoryEntry), clock: clock}
}

// Get returns the cached value, treating expired entries as misses.
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok || entry.expired(c.clock()) {
		return "", false, nil
	}
	return entry.value, true, nil
}

// Set stores the value under the key with the given time to live.
func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = c.clock().Add(ttl)
	}
	c.mu.Lock()
	c.data[key] = entry
	c.mu.Unlock()
	return nil
}

// Invalidate removes the key.
func (c *MemoryCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}
