/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package throttle

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rate describes the frequency of requests.
type Rate struct {
	Count    int
	Duration time.Duration
}

// String formats the rate as "<count>/<unit>" when the duration is a whole unit.
func (r Rate) String() string {
	for _, u := range rateUnits {
		if r.Duration == u.dur {
			return fmt.Sprintf("%d/%s", r.Count, u.name)
		}
	}
	return fmt.Sprintf("%d/%s", r.Count, r.Duration)
}

var rateUnits = []struct {
	name string
	dur  time.Duration
}{
	{"s", time.Second},
	{"m", time.Minute},
	{"h", time.Hour},
}

// ParseRate parses strings like "60/m", "5/s" or "1000/h".
func ParseRate(s string) (Rate, error) {
	countStr, unit, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Rate{}, fmt.Errorf("rate %q must have <count>/<unit> format", s)
	}
	count, err := strconv.Atoi(strings.TrimSpace(countStr))
	if err != nil || count <= 0 {
		return Rate{}, fmt.Errorf("rate %q must have a positive count", s)
	}
	unit = strings.TrimSpace(unit)
	for _, u := range rateUnits {
		if unit == u.name {
			return Rate{Count: count, Duration: u.dur}, nil
		}
	}
	return Rate{}, fmt.Errorf("rate %q has unknown unit %q, should be one of s, m, h", s, unit)
}

// Limiter decides whether a request identified by key may proceed now.
// When it may not, retryAfter tells when the next request is expected to pass.
type Limiter interface {
	Allow(ctx context.Context, key string) (allow bool, retryAfter time.Duration, err error)
}

// New creates a Limiter for the configured algorithm.
func New(cfg *Config) (Limiter, error) {
	switch cfg.Alg {
	case AlgSlidingWindow:
		return NewSlidingWindowLimiter(cfg.Rate, cfg.MaxKeys)
	case AlgLeakyBucket, "":
		return NewLeakyBucketLimiter(cfg.Rate, cfg.Burst, cfg.MaxKeys)
	}
	return nil, fmt.Errorf("unknown throttle algorithm %q", cfg.Alg)
}
