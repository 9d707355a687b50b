package parser

import (
	"container/list"
	"sync"
)

// defaultPackageCacheSize bounds how many parsed files a reader remembers.
const defaultPackageCacheSize = 4096

// packageCache is a least-recently-used cache of parsed package
// declarations keyed by workspace-relative path. Safe for concurrent use.
type packageCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most recently used
}

type packageCacheEntry struct {
	path  string
	value cachedPackage
}

func newPackageCache(capacity int) *packageCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &packageCache{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

func (c *packageCache) get(path string) (cachedPackage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[path]
	if !ok {
		return cachedPackage{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*packageCacheEntry).value, true
}

func (c *packageCache) put(path string, value cachedPackage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[path]; ok {
		c.order.MoveToFront(el)
		el.Value.(*packageCacheEntry).value = value
		return
	}
	if c.order.Len() >= c.capacity {
		if back := c.order.Back(); back != nil {
			c.order.Remove(back)
			delete(c.items, back.Value.(*packageCacheEntry).path)
		}
	}
	c.items[path] = c.order.PushFront(&packageCacheEntry{path: path, value: value})
}

// forget drops path, e.g. after the file was deleted.
func (c *packageCache) forget(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[path]; ok {
		c.order.Remove(el)
		delete(c.items, path)
	}
}

func (c *packageCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
