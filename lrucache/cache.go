/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package lrucache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"
)

type cacheEntry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

func (e *cacheEntry[K, V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// LRUCache is a bounded in-memory cache with LRU eviction and per-entry TTL.
// The TTL of an entry is counted from the moment it was added and is not refreshed by reads.
type LRUCache[K comparable, V any] struct {
	maxEntries int
	defaultTTL time.Duration
	now        func() time.Time

	mu      sync.Mutex
	lruList *list.List
	cache   map[K]*list.Element

	loads singleFlightGroup[K, V]

	metricsCollector MetricsCollector
}

// Options represents options for the cache.
type Options struct {
	// DefaultTTL is used by Add and GetOrAdd. Zero means entries never expire.
	// Expired entries are dropped when accessed, when room is needed for a new entry,
	// or by RunPeriodicCleanup.
	DefaultTTL time.Duration

	// Now replaces time.Now. Mostly useful in tests.
	Now func() time.Time
}

// New creates a new LRUCache with the provided maximum number of entries and metrics collector.
func New[K comparable, V any](maxEntries int, metricsCollector MetricsCollector) (*LRUCache[K, V], error) {
	return NewWithOpts[K, V](maxEntries, metricsCollector, Options{})
}

// NewWithOpts creates a new LRUCache.
// Metrics collector may be nil, in this case metrics are disabled.
func NewWithOpts[K comparable, V any](maxEntries int, metricsCollector MetricsCollector, opts Options) (*LRUCache[K, V], error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("maxEntries must be greater than 0")
	}
	if opts.DefaultTTL < 0 {
		return nil, fmt.Errorf("defaultTTL must be greater or equal to 0 (no expiration)")
	}
	if metricsCollector == nil {
		metricsCollector = disabledMetrics{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &LRUCache[K, V]{
		maxEntries:       maxEntries,
		defaultTTL:       opts.DefaultTTL,
		now:              opts.Now,
		lruList:          list.New(),
		cache:            make(map[K]*list.Element),
		metricsCollector: metricsCollector,
	}, nil
}

// Get returns a live value by key and marks it as recently used.
func (c *LRUCache[K, V]) Get(key K) (value V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(key, c.now())
}

// Add puts a value with the default TTL, replacing any existing one.
func (c *LRUCache[K, V]) Add(key K, value V) {
	c.AddWithTTL(key, value, c.defaultTTL)
}

// AddWithTTL puts a value with the provided TTL, replacing any existing one.
// The least recently used entry is evicted when the cache is full.
func (c *LRUCache[K, V]) AddWithTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, ok := c.cache[key]; ok {
		c.lruList.MoveToFront(elem)
		elem.Value = &cacheEntry[K, V]{key: key, value: value, expiresAt: expiresAt(now, ttl)}
		return
	}
	c.addNew(key, value, expiresAt(now, ttl), now)
}

// GetOrAdd returns the live value for the key or stores the one produced by valueProvider.
func (c *LRUCache[K, V]) GetOrAdd(key K, valueProvider func() V) (value V, exists bool) {
	return c.GetOrAddWithTTL(key, valueProvider, c.defaultTTL)
}

// GetOrAddWithTTL is like GetOrAdd but the new entry gets the provided TTL.
// Lookup and insertion happen under one lock, so concurrent callers for the same key
// always end up with the same value.
func (c *LRUCache[K, V]) GetOrAddWithTTL(key K, valueProvider func() V, ttl time.Duration) (value V, exists bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if value, exists = c.get(key, now); exists {
		return value, true
	}
	value = valueProvider()
	c.addNew(key, value, expiresAt(now, ttl), now)
	return value, false
}

// GetOrLoad returns the live value for the key or calls load to produce it.
// Concurrent loads of the same key are collapsed into one call.
// Errors are returned to every waiting caller and are not cached. If load panics,
// its caller re-panics and the waiting callers get *PanicError.
func (c *LRUCache[K, V]) GetOrLoad(key K, load func(K) (V, error)) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}
	return c.loads.Do(key, func() (V, error) {
		if value, ok := c.Get(key); ok {
			return value, nil
		}
		value, err := load(key)
		if err != nil {
			return value, err
		}
		c.Add(key, value)
		return value, nil
	})
}

// Remove deletes the entry by key.
func (c *LRUCache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.cache[key]
	if !ok {
		return false
	}
	c.lruList.Remove(elem)
	delete(c.cache, key)
	c.metricsCollector.SetAmount(len(c.cache))
	return true
}

// Purge clears the cache. Removed entries are not counted as evictions.
func (c *LRUCache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[K]*list.Element)
	c.lruList.Init()
	c.metricsCollector.SetAmount(0)
}

// Len returns the number of stored entries, including expired ones not yet cleaned up.
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Keys returns keys of live entries from the most to the least recently used.
func (c *LRUCache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	keys := make([]K, 0, len(c.cache))
	for elem := c.lruList.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*cacheEntry[K, V])
		if !entry.expired(now) {
			keys = append(keys, entry.key)
		}
	}
	return keys
}

// DeleteExpired removes all expired entries and returns how many were removed.
func (c *LRUCache[K, V]) DeleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, elem := range c.cache {
		if elem.Value.(*cacheEntry[K, V]).expired(now) {
			c.lruList.Remove(elem)
			delete(c.cache, key)
			removed++
		}
	}
	if removed > 0 {
		c.metricsCollector.AddExpirations(removed)
	}
	c.metricsCollector.SetAmount(len(c.cache))
	return removed
}

// RunPeriodicCleanup calls DeleteExpired every cleanupInterval until ctx is done.
func (c *LRUCache[K, V]) RunPeriodicCleanup(ctx context.Context, cleanupInterval time.Duration) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.DeleteExpired()
		}
	}
}

func (c *LRUCache[K, V]) get(key K, now time.Time) (value V, ok bool) {
	elem, hit := c.cache[key]
	if !hit {
		c.metricsCollector.IncMisses()
		return value, false
	}
	entry := elem.Value.(*cacheEntry[K, V])
	if entry.expired(now) {
		c.lruList.Remove(elem)
		delete(c.cache, key)
		c.metricsCollector.AddExpirations(1)
		c.metricsCollector.SetAmount(len(c.cache))
		c.metricsCollector.IncMisses()
		return value, false
	}
	c.lruList.MoveToFront(elem)
	c.metricsCollector.IncHits()
	return entry.value, true
}

func (c *LRUCache[K, V]) addNew(key K, value V, expiresAt time.Time, now time.Time) {
	if len(c.cache) >= c.maxEntries {
		c.makeRoom(now)
	}
	c.cache[key] = c.lruList.PushFront(&cacheEntry[K, V]{key: key, value: value, expiresAt: expiresAt})
	c.metricsCollector.SetAmount(len(c.cache))
}

// makeRoom frees one slot. An expired entry near the LRU end is preferred over a live one.
func (c *LRUCache[K, V]) makeRoom(now time.Time) {
	const expiredScanDepth = 8
	elem := c.lruList.Back()
	for i := 0; elem != nil && i < expiredScanDepth; i++ {
		if elem.Value.(*cacheEntry[K, V]).expired(now) {
			c.removeElement(elem)
			c.metricsCollector.AddExpirations(1)
			return
		}
		elem = elem.Prev()
	}
	if back := c.lruList.Back(); back != nil {
		c.removeElement(back)
		c.metricsCollector.AddEvictions(1)
	}
}

func (c *LRUCache[K, V]) removeElement(elem *list.Element) {
	c.lruList.Remove(elem)
	delete(c.cache, elem.Value.(*cacheEntry[K, V]).key)
}

func expiresAt(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
