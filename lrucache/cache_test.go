/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package lrucache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestNewWithOpts(t *testing.T) {
	_, err := New[string, int](0, nil)
	require.EqualError(t, err, "maxEntries must be greater than 0")

	_, err = NewWithOpts[string, int](10, nil, Options{DefaultTTL: -time.Second})
	require.EqualError(t, err, "defaultTTL must be greater or equal to 0 (no expiration)")
}

func TestLRUCache_Eviction(t *testing.T) {
	metrics := NewPrometheusMetrics()
	cache, err := New[string, string](2, metrics)
	require.NoError(t, err)

	cache.Add("post:intro", "Intro")
	cache.Add("post:pricing", "Pricing")

	// Touch the first key so the second one becomes the LRU victim.
	_, ok := cache.Get("post:intro")
	require.True(t, ok)

	cache.Add("post:agents", "Agents")
	require.Equal(t, 2, cache.Len())

	_, ok = cache.Get("post:pricing")
	require.False(t, ok)
	val, ok := cache.Get("post:agents")
	require.True(t, ok)
	require.Equal(t, "Agents", val)
	require.Equal(t, []string{"post:agents", "post:intro"}, cache.Keys())

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.HitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MissesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EvictionsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.EntriesAmount))
}

func TestLRUCache_TTL(t *testing.T) {
	clock := newFakeClock()
	metrics := NewPrometheusMetrics()
	cache, err := NewWithOpts[string, int](10, metrics, Options{DefaultTTL: time.Minute, Now: clock.Now})
	require.NoError(t, err)

	cache.Add("a", 1)
	cache.AddWithTTL("b", 2, 0)

	clock.Advance(59 * time.Second)
	_, ok := cache.Get("a")
	require.True(t, ok, "reads must not extend TTL")

	clock.Advance(time.Second)
	_, ok = cache.Get("a")
	require.False(t, ok)
	val, ok := cache.Get("b")
	require.True(t, ok)
	require.Equal(t, 2, val)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ExpirationsTotal))
}

func TestLRUCache_GetOrAddWithTTL(t *testing.T) {
	clock := newFakeClock()
	cache, err := NewWithOpts[string, *int](10, nil, Options{Now: clock.Now})
	require.NoError(t, err)

	calls := 0
	provider := func() *int {
		calls++
		v := calls
		return &v
	}

	first, exists := cache.GetOrAddWithTTL("k", provider, time.Second)
	require.False(t, exists)
	second, exists := cache.GetOrAddWithTTL("k", provider, time.Hour)
	require.True(t, exists)
	require.Same(t, first, second)

	// TTL is fixed at creation, the second call did not prolong it.
	clock.Advance(time.Second)
	third, exists := cache.GetOrAddWithTTL("k", provider, time.Second)
	require.False(t, exists)
	require.Equal(t, 2, *third)
}

func TestLRUCache_ExpiredEntryPreferredOverLiveVictim(t *testing.T) {
	clock := newFakeClock()
	metrics := NewPrometheusMetrics()
	cache, err := NewWithOpts[string, int](2, metrics, Options{Now: clock.Now})
	require.NoError(t, err)

	cache.AddWithTTL("live", 1, time.Hour)
	cache.AddWithTTL("short", 2, time.Second)
	_, _ = cache.Get("short")
	clock.Advance(2 * time.Second)

	cache.Add("new", 3)
	_, ok := cache.Get("live")
	require.True(t, ok)
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.EvictionsTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ExpirationsTotal))
}

func TestLRUCache_DeleteExpired(t *testing.T) {
	clock := newFakeClock()
	cache, err := NewWithOpts[int, int](10, nil, Options{DefaultTTL: time.Minute, Now: clock.Now})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		cache.Add(i, i)
	}
	cache.AddWithTTL(100, 100, time.Hour)
	clock.Advance(time.Minute)

	require.Equal(t, 5, cache.DeleteExpired())
	require.Equal(t, 1, cache.Len())
	require.True(t, cache.Remove(100))
	require.False(t, cache.Remove(100))
}

func TestLRUCache_GetOrLoad(t *testing.T) {
	cache, err := New[string, string](10, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	loads := 0
	release := make(chan struct{})
	load := func(key string) (string, error) {
		mu.Lock()
		loads++
		mu.Unlock()
		<-release
		return "post " + key, nil
	}

	const workers = 10
	var wg sync.WaitGroup
	results := make([]string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = cache.GetOrLoad("hello-world", load)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, res := range results {
		require.Equal(t, "post hello-world", res)
	}
	require.Equal(t, 1, loads)
	_, ok := cache.Get("hello-world")
	require.True(t, ok)

	loadErr := errors.New("read failed")
	_, err = cache.GetOrLoad("broken", func(string) (string, error) { return "", loadErr })
	require.ErrorIs(t, err, loadErr)
	_, ok = cache.Get("broken")
	require.False(t, ok)
}

func TestLRUCache_Purge(t *testing.T) {
	cache, err := New[string, int](3, nil)
	require.NoError(t, err)
	cache.Add("a", 1)
	cache.Add("b", 2)
	cache.Purge()
	require.Equal(t, 0, cache.Len())
	require.Empty(t, cache.Keys())
}
