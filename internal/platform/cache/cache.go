// Package cache provides an in-memory TTL cache with LRU eviction.
//
// It backs the network-registry lookups (RDAP, BGPView): those answers
// change rarely, so repeated probes against the same address reuse the
// cached body instead of spending rate budget.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// entry is a cached item plus its LRU bookkeeping.
type entry struct {
	key       string
	value     interface{}
	expiresAt time.Time
	element   *list.Element
}

// MemoryCache is a thread-safe in-memory LRU cache with per-item TTL.
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*entry
	lruList  *list.List
}

// NewMemoryCache creates a cache holding at most capacity items.
// When full, the least recently used item is evicted.
func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = 100
	}

	return &MemoryCache{
		capacity: capacity,
		items:    make(map[string]*entry),
		lruList:  list.New(),
	}
}

// Get retrieves a value. A hit marks the item as recently used;
// an expired item is removed and reported as a miss.
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.items[key]
	if !exists {
		return nil, false
	}

	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.deleteEntry(e)
		return nil, false
	}

	c.lruList.MoveToFront(e.element)
	return e.value, true
}

// Set stores a value with a TTL. A ttl of 0 means no expiry.
func (c *MemoryCache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	if existing, exists := c.items[key]; exists {
		existing.value = value
		existing.expiresAt = expiresAt
		c.lruList.MoveToFront(existing.element)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictLRU()
	}

	e := &entry{
		key:       key,
		value:     value,
		expiresAt: expiresAt,
	}
	e.element = c.lruList.PushFront(e)
	c.items[key] = e
}

// Fetch returns the cached value for key, or calls fn once, caches its
// result with the given TTL and returns it. A failing fn caches nothing,
// so the next Fetch retries the lookup.
func (c *MemoryCache) Fetch(key string, ttl time.Duration, fn func() (interface{}, error)) (interface{}, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := fn()
	if err != nil {
		return nil, err
	}

	c.Set(key, v, ttl)
	return v, nil
}

// Delete removes a value from the cache.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, exists := c.items[key]; exists {
		c.deleteEntry(e)
	}
}

// Clear removes all values from the cache.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*entry)
	c.lruList.Init()
}

// Size returns the current number of items in the cache.
func (c *MemoryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Capacity returns the maximum number of items the cache can hold.
func (c *MemoryCache) Capacity() int {
	return c.capacity
}

// evictLRU removes the least recently used item. Caller holds c.mu.
func (c *MemoryCache) evictLRU() {
	element := c.lruList.Back()
	if element != nil {
		c.deleteEntry(element.Value.(*entry))
	}
}

// deleteEntry removes an entry. Caller holds c.mu.
func (c *MemoryCache) deleteEntry(e *entry) {
	delete(c.items, e.key)
	c.lruList.Remove(e.element)
}
