package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU is a small in-process cache with TTL expiry, used to memoize external
// lookups (token metadata per mint, notable results per handle) within a
// single run. Durable caching lives in the store layer.
type LRU[K comparable, V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	entries map[K]*list.Element
	recency *list.List
	clock   func() time.Time
}

type item[K comparable, V any] struct {
	key      K
	value    V
	deadline time.Time
}

// New creates an LRU holding at most maxSize entries, each valid for ttl.
func New[K comparable, V any](maxSize int, ttl time.Duration) *LRU[K, V] {
	return &LRU[K, V]{
		maxSize: maxSize,
		ttl:     ttl,
		entries: make(map[K]*list.Element, maxSize),
		recency: list.New(),
		clock:   time.Now,
	}
}

// Get returns the cached value and true when present and unexpired.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	it := elem.Value.(*item[K, V])
	if c.clock().After(it.deadline) {
		c.drop(elem)
		return zero, false
	}
	c.recency.MoveToFront(elem)
	return it.value, true
}

// Set inserts or refreshes an entry, evicting the least recently used one
// when the cache is full.
func (c *LRU[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		it := elem.Value.(*item[K, V])
		it.value = value
		it.deadline = c.clock().Add(c.ttl)
		c.recency.MoveToFront(elem)
		return
	}
	if c.recency.Len() >= c.maxSize {
		if oldest := c.recency.Back(); oldest != nil {
			c.drop(oldest)
		}
	}
	elem := c.recency.PushFront(&item[K, V]{key: key, value: value, deadline: c.clock().Add(c.ttl)})
	c.entries[key] = elem
}

// Delete removes an entry if present.
func (c *LRU[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.drop(elem)
	}
}

// Len reports the number of entries, counting expired but unswept ones.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recency.Len()
}

func (c *LRU[K, V]) drop(elem *list.Element) {
	c.recency.Remove(elem)
	delete(c.entries, elem.Value.(*item[K, V]).key)
}
