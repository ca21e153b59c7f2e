package store

import (
	"sync"

	"github.com/couchcryptid/tow-etl-service/internal/domain"
)

// summaryKey identifies a summary by station and the station generation it
// was derived from. A new reading bumps the generation, so stale entries are
// never returned and simply age out.
type summaryKey struct {
	stationID  string
	generation uint64
}

// summaryCache is a thread-safe LRU of derived station summaries.
type summaryCache struct {
	capacity int
	mu       sync.Mutex
	items    map[summaryKey]*cacheNode
	newest   *cacheNode
	oldest   *cacheNode
}

type cacheNode struct {
	key     summaryKey
	summary domain.StationSummary
	newer   *cacheNode
	older   *cacheNode
}

func newSummaryCache(capacity int) *summaryCache {
	return &summaryCache{
		capacity: capacity,
		items:    make(map[summaryKey]*cacheNode),
	}
}

func (c *summaryCache) get(key summaryKey) (domain.StationSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.items[key]
	if !ok {
		return domain.StationSummary{}, false
	}
	c.touch(n)
	return n.summary, true
}

func (c *summaryCache) put(key summaryKey, summary domain.StationSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.items[key]; ok {
		n.summary = summary
		c.touch(n)
		return
	}

	n := &cacheNode{key: key, summary: summary}
	c.items[key] = n
	c.pushNewest(n)

	if len(c.items) > c.capacity {
		c.dropOldest()
	}
}

func (c *summaryCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *summaryCache) touch(n *cacheNode) {
	if n == c.newest {
		return
	}
	c.unlink(n)
	c.pushNewest(n)
}

func (c *summaryCache) pushNewest(n *cacheNode) {
	n.older = c.newest
	n.newer = nil
	if c.newest != nil {
		c.newest.newer = n
	}
	c.newest = n
	if c.oldest == nil {
		c.oldest = n
	}
}

func (c *summaryCache) unlink(n *cacheNode) {
	if n.newer != nil {
		n.newer.older = n.older
	} else {
		c.newest = n.older
	}
	if n.older != nil {
		n.older.newer = n.newer
	} else {
		c.oldest = n.newer
	}
}

func (c *summaryCache) dropOldest() {
	if c.oldest == nil {
		return
	}
	delete(c.items, c.oldest.key)
	c.unlink(c.oldest)
}
