package indexer

import (
	"container/list"
	"sync"
)

const parentCacheSize = 1024

// parentCache maps relative directory paths to their row ids. Entries are
// evicted first-in first-out once the cache is full; directory walks revisit
// recently created parents far more often than old ones.
type parentCache struct {
	mu    sync.Mutex
	ids   map[string]int64
	order *list.List
	limit int
}

func newParentCache(limit int) *parentCache {
	if limit <= 0 {
		limit = parentCacheSize
	}
	return &parentCache{
		ids:   make(map[string]int64, limit),
		order: list.New(),
		limit: limit,
	}
}

func (c *parentCache) get(relPath string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.ids[relPath]
	return id, ok
}

func (c *parentCache) put(relPath string, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.ids[relPath]; ok {
		c.ids[relPath] = id
		return
	}
	if c.order.Len() >= c.limit {
		oldest := c.order.Front()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.ids, oldest.Value.(string))
		}
	}
	c.order.PushBack(relPath)
	c.ids[relPath] = id
}

func (c *parentCache) invalidate(relPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.ids[relPath]; !ok {
		return
	}
	delete(c.ids, relPath)
	for e := c.order.Front(); e != nil; e = e.Next() {
		if e.Value.(string) == relPath {
			c.order.Remove(e)
			break
		}
	}
}

func (c *parentCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = make(map[string]int64, c.limit)
	c.order.Init()
}
