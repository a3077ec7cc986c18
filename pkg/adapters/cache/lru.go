// Package cache provides the bounded LRU cache shared by the storage engine
// and the dependency index.
package cache

import (
	"container/list"
	"sync"

	"github.com/sukryu/depdex/pkg/types"
)

var _ types.CacheInterface[string, string] = (*LRU[string, string])(nil)

// LRU implements a simple mutex-guarded LRU cache.
// A capacity of zero disables caching: Put becomes a no-op.
type LRU[K comparable, V any] struct {
	capacity int
	mu       sync.Mutex
	items    map[K]*list.Element
	order    *list.List
}

type cacheEntry[K comparable, V any] struct {
	key   K
	value V
}

// NewLRU creates a new LRU holding at most capacity entries.
func NewLRU[K comparable, V any](capacity int) *LRU[K, V] {
	if capacity < 0 {
		capacity = 0
	}
	return &LRU[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element),
		order:    list.New(),
	}
}

// Get retrieves a value from the cache.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*cacheEntry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Put inserts or updates a key-value pair in the cache.
func (c *LRU[K, V]) Put(key K, value V) {
	if c.capacity == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*cacheEntry[K, V]).value = value
		return
	}
	elem := c.order.PushFront(&cacheEntry[K, V]{key: key, value: value})
	c.items[key] = elem
	if c.order.Len() > c.capacity {
		// Remove least recently used element.
		if lru := c.order.Back(); lru != nil {
			c.order.Remove(lru)
			delete(c.items, lru.Value.(*cacheEntry[K, V]).key)
		}
	}
}

// Remove drops key from the cache if present.
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.order.Remove(elem)
		delete(c.items, key)
	}
}

// Length returns the number of cached entries.
func (c *LRU[K, V]) Length() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear removes all entries.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*list.Element)
	c.order.Init()
}
