/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/RussellLuo/slidingwindow"

	"github.com/ssiautomations/website/lrucache"
)

// SlidingWindowLimiter throttles with a sliding window counter per client.
// Windows of idle clients expire from the LRU store after two window durations.
type SlidingWindowLimiter struct {
	rate    Rate
	windows *lrucache.LRUCache[string, *slidingwindow.Limiter]
	now     func() time.Time
}

// NewSlidingWindowLimiter creates a SlidingWindowLimiter that tracks at most maxKeys clients.
func NewSlidingWindowLimiter(rate Rate, maxKeys int) (*SlidingWindowLimiter, error) {
	if rate.Count <= 0 || rate.Duration <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %s", rate)
	}
	windows, err := lrucache.NewWithOpts[string, *slidingwindow.Limiter](maxKeys, nil,
		lrucache.Options{DefaultTTL: 2 * rate.Duration})
	if err != nil {
		return nil, fmt.Errorf("new LRU store for windows: %w", err)
	}
	return &SlidingWindowLimiter{rate: rate, windows: windows, now: time.Now}, nil
}

func (l *SlidingWindowLimiter) newWindow() *slidingwindow.Limiter {
	lim, _ := slidingwindow.NewLimiter(l.rate.Duration, int64(l.rate.Count),
		func() (slidingwindow.Window, slidingwindow.StopFunc) {
			return slidingwindow.NewLocalWindow()
		})
	return lim
}

// Allow implements Limiter.
func (l *SlidingWindowLimiter) Allow(_ context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	lim, _ := l.windows.GetOrAdd(key, l.newWindow)
	if lim.Allow() {
		return true, 0, nil
	}
	now := l.now()
	return false, now.Truncate(l.rate.Duration).Add(l.rate.Duration).Sub(now), nil
}

// TrackedKeys returns the number of clients with a live window.
func (l *SlidingWindowLimiter) TrackedKeys() int {
	return l.windows.Len()
}
