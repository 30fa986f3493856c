package protocol

import (
	"container/list"
	"sync"
)

// boundedLRU is a thread-safe LRU cache holding at most maxSize entries
type boundedLRU[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*list.Element
	lru     *list.List
	maxSize int
}

type lruEntry[K comparable, V any] struct {
	key   K
	value V
}

func newBoundedLRU[K comparable, V any](maxSize int) *boundedLRU[K, V] {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &boundedLRU[K, V]{
		entries: make(map[K]*list.Element, maxSize),
		lru:     list.New(),
		maxSize: maxSize,
	}
}

// Get returns the value and marks it most recently used
func (c *boundedLRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.lru.MoveToFront(elem)
	return elem.Value.(*lruEntry[K, V]).value, true
}

// Set adds or updates a value, evicting the least recently used entry when full
func (c *boundedLRU[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*lruEntry[K, V]).value = value
		return
	}
	for len(c.entries) >= c.maxSize {
		back := c.lru.Back()
		if back == nil {
			break
		}
		c.lru.Remove(back)
		delete(c.entries, back.Value.(*lruEntry[K, V]).key)
	}
	c.entries[key] = c.lru.PushFront(&lruEntry[K, V]{key: key, value: value})
}

func (c *boundedLRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
