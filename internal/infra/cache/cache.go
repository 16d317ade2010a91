// Package cache provides a simple in-memory TTL cache, used for
// memoized net-worth snapshots. Invalidation is explicit and total: a
// mutation deletes the key, the next read recomputes.
package cache

import (
	"sync"
	"time"

	"github.com/Jjjbit/ledger/internal/domain"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// InMemory holds expiring snapshot values behind one RWMutex.
type InMemory[T any] struct {
	mu    sync.RWMutex
	items map[string]entry[T]
	ttl   time.Duration
}

// New creates an empty cache whose entries expire after ttl.
func New[T any](ttl time.Duration) *InMemory[T] {
	c := &InMemory[T]{
		items: make(map[string]entry[T]),
		ttl:   ttl,
	}
	go c.cleanup()
	return c
}

// NewNetWorth builds the cache keyed by user id that holds memoized
// net-worth figures between structural mutations.
func NewNetWorth(ttl time.Duration) *InMemory[domain.NetWorth] {
	return New[domain.NetWorth](ttl)
}

// Get returns the cached value, or false when the key is absent or
// its entry has expired.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || time.Now().After(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores a value under the configured TTL, replacing any previous
// entry for the key.
func (c *InMemory[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[T]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Delete drops the key so the next read recomputes.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// cleanup sweeps expired entries once per TTL interval.
func (c *InMemory[T]) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := time.Now()
		for k, v := range c.items {
			if now.After(v.expiresAt) {
				delete(c.items, k)
			}
		}
		c.mu.Unlock()
	}
}
