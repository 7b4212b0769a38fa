package vegvisir

import (
	"container/list"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// cacheKey identifies a query by the blake2b-256 digest of its text.
// Parameters are not part of the key; a plan is parameter-independent.
type cacheKey [32]byte

func keyFor(query string) cacheKey {
	return blake2b.Sum256([]byte(query))
}

// planCache is a bounded LRU of compiled plans.
type planCache struct {
	mu    sync.Mutex
	max   int
	order *list.List // front is most recently used
	items map[cacheKey]*list.Element
}

type cacheEntry struct {
	key  cacheKey
	plan *compiledPlan
}

func newPlanCache(max int) *planCache {
	return &planCache{
		max:   max,
		order: list.New(),
		items: make(map[cacheKey]*list.Element),
	}
}

func (c *planCache) get(key cacheKey) (*compiledPlan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).plan, true
}

func (c *planCache) put(key cacheKey, cp *compiledPlan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).plan = cp
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&cacheEntry{key: key, plan: cp})
	if c.order.Len() > c.max {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

func (c *planCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
