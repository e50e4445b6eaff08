// Package cache provides a size-bounded in-memory cache owned by whoever creates it.
package cache

import (
	"sync"
	"time"
)

// DefaultMaxEntries is used when a cache is created with a non-positive size
const DefaultMaxEntries = 64

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is a bounded key/value cache. When full, the entry with the oldest
// store timestamp is evicted first. Reads do not refresh the timestamp.
type Cache[K comparable, V any] struct {
	mu         sync.RWMutex
	data       map[K]entry[V]
	maxEntries int
	now        func() time.Time
}

// New creates a cache holding at most maxEntries values
func New[K comparable, V any](maxEntries int) *Cache[K, V] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache[K, V]{
		data:       make(map[K]entry[V], maxEntries),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get retrieves a cached value
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.data[key]
	return e.value, ok
}

// Set stores a value, evicting the oldest entry if the cache is full
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists && len(c.data) >= c.maxEntries {
		c.evictOldest()
	}
	c.data[key] = entry[V]{value: value, storedAt: c.now()}
}

// Delete removes a key
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Len returns the number of cached entries
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Clear drops every entry
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[K]entry[V], c.maxEntries)
}

// caller holds c.mu
func (c *Cache[K, V]) evictOldest() {
	var (
		oldestKey K
		oldestAt  time.Time
		found     bool
	)
	for key, e := range c.data {
		if !found || e.storedAt.Before(oldestAt) {
			oldestKey, oldestAt, found = key, e.storedAt, true
		}
	}
	if found {
		delete(c.data, oldestKey)
	}
}
