package overpass

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/hailwatch/internal/domain"
	"github.com/couchcryptid/hailwatch/internal/observability"
)

// CachedEstimator wraps a RoofEstimator with an in-memory LRU cache keyed on
// rounded coordinates and radius.
type CachedEstimator struct {
	inner   domain.RoofEstimator
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedEstimator creates a cache decorator around an estimator.
func NewCachedEstimator(inner domain.RoofEstimator, maxEntries int, metrics *observability.Metrics) *CachedEstimator {
	return &CachedEstimator{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedEstimator) EstimateBuildingCount(ctx context.Context, lat, lon float64, radiusMeters int) (int, error) {
	key := fmt.Sprintf("%.5f,%.5f|%d", lat, lon, radiusMeters)
	if n, ok := c.cache.get(key); ok {
		c.metrics.RoofCache.WithLabelValues("hit").Inc()
		return n, nil
	}
	c.metrics.RoofCache.WithLabelValues("miss").Inc()

	n, err := c.inner.EstimateBuildingCount(ctx, lat, lon, radiusMeters)
	if err != nil {
		return n, err
	}
	c.cache.put(key, n)
	return n, nil
}

// lruCache holds roof counts, evicting the least recently read key once
// capacity is exceeded. Front of order is the most recent.
type lruCache struct {
	capacity int

	mu    sync.Mutex
	order *list.List
	index map[string]*list.Element
}

type roofCount struct {
	key   string
	count int
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: max(capacity, 1),
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity),
	}
}

func (c *lruCache) get(key string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return 0, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*roofCount).count, true
}

func (c *lruCache) put(key string, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		el.Value.(*roofCount).count = count
		c.order.MoveToFront(el)
		return
	}

	c.index[key] = c.order.PushFront(&roofCount{key: key, count: count})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.index, oldest.Value.(*roofCount).key)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
