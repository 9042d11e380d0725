// Package cache provides the process-wide expiring key/value cache shared
// across data sources.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// TTLCache is an in-memory cache with lazy expiry on read plus a periodic
// sweep for keys never subsequently read. There is no size bound: key
// cardinality is moderate and time is the only eviction policy.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// New creates an empty TTLCache.
func New() *TTLCache {
	return &TTLCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached value, or (nil, false) on miss. An expired entry is
// deleted and reported as a miss.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock: a writer may have refreshed the key.
		if cur, ok := c.entries[key]; ok && c.now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return e.value, true
}

// Set stores value under key with the given ttl.
func (c *TTLCache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Delete removes key if present.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Cleanup sweeps all expired entries and returns the count removed.
func (c *TTLCache) Cleanup() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the current entry count, expired or not.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
