// Package memory provides an in-process response cache with a fixed TTL.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hireloop/jobradar/internal/jobs"
)

// DefaultTTL matches the 24 hour payload lifetime used for API responses.
const DefaultTTL = 24 * time.Hour

type entry struct {
	listings []jobs.Listing
	created  time.Time
}

// Cache implements jobs.Cache in memory. Entries are immutable once written;
// expired entries are treated as absent and evicted lazily on read.
type Cache struct {
	ttl   time.Duration
	clock jobs.Clock

	mu      sync.RWMutex
	entries map[string]entry
}

// New builds a Cache. A non-positive ttl falls back to DefaultTTL.
func New(ttl time.Duration, clock jobs.Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]entry),
	}
}

// Get returns the cached payload when present and within TTL.
func (c *Cache) Get(_ context.Context, key string) ([]jobs.Listing, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if c.clock.Now().Sub(e.created) >= c.ttl {
		c.mu.Lock()
		// Re-check under the write lock; a fresh Put may have replaced it.
		if cur, still := c.entries[key]; still && c.clock.Now().Sub(cur.created) >= c.ttl {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.listings, true, nil
}

// Put stores the payload. A concurrent writer for the same key simply
// overwrites; both payloads derive from the same idempotent query.
func (c *Cache) Put(_ context.Context, key string, listings []jobs.Listing) error {
	c.mu.Lock()
	c.entries[key] = entry{listings: listings, created: c.clock.Now()}
	c.mu.Unlock()
	return nil
}

// Len reports the number of live entries, counting expired ones not yet
// evicted. Used in tests.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
