package openmeteo

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/commerce-quality-etl/internal/domain"
)

// Fetcher is anything that returns daily weather for a location.
type Fetcher interface {
	Fetch(ctx context.Context, lat, lon float64, days int) (domain.Dataset, error)
}

// CachedFetcher wraps a Fetcher with an in-memory LRU cache whose entries
// expire after ttl. Daily history only changes once a day, so repeated runs in
// serve mode can share a response.
type CachedFetcher struct {
	inner Fetcher
	ttl   time.Duration
	cache *lruCache
}

// NewCachedFetcher creates a cache decorator around a fetcher.
func NewCachedFetcher(inner Fetcher, maxEntries int, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{
		inner: inner,
		ttl:   ttl,
		cache: newLRUCache(maxEntries),
	}
}

func (c *CachedFetcher) Fetch(ctx context.Context, lat, lon float64, days int) (domain.Dataset, error) {
	key := fmt.Sprintf("%.4f,%.4f|%d", lat, lon, days)
	now := domain.Now()
	if ds, ok := c.cache.get(key, now); ok {
		return ds, nil
	}
	ds, err := c.inner.Fetch(ctx, lat, lon, days)
	if err != nil {
		return ds, err
	}
	// Empty responses are not cached so a lagging provider is retried next run.
	if ds.Len() > 0 {
		c.cache.put(key, ds, now.Add(c.ttl))
	}
	return ds, nil
}

// lruCache holds weather responses by key, dropping the least recently used
// entry past capacity. Expired entries are removed when read.
type lruCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front is most recently used
	index    map[string]*list.Element
}

type cacheEntry struct {
	key     string
	ds      domain.Dataset
	expires time.Time
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: max(1, capacity),
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

func (c *lruCache) get(key string, now time.Time) (domain.Dataset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return domain.Dataset{}, false
	}
	e := el.Value.(*cacheEntry)
	if !now.Before(e.expires) {
		c.order.Remove(el)
		delete(c.index, key)
		return domain.Dataset{}, false
	}
	c.order.MoveToFront(el)
	return e.ds, true
}

func (c *lruCache) put(key string, ds domain.Dataset, expires time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		e := el.Value.(*cacheEntry)
		e.ds, e.expires = ds, expires
		c.order.MoveToFront(el)
		return
	}
	c.index[key] = c.order.PushFront(&cacheEntry{key: key, ds: ds, expires: expires})

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.index, oldest.Value.(*cacheEntry).key)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
