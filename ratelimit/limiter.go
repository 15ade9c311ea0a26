/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/atomic"

	"github.com/ssiautomations/website/lrucache"
)

// ErrRateLimitExceeded is returned by Check when the identity has used up its quota for the current window.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// ErrInvalidCheck is returned by Check when it's called with an empty identity or a non-positive limit.
var ErrInvalidCheck = errors.New("invalid rate limit check")

// IsRateLimitExceeded reports whether err is (or wraps) ErrRateLimitExceeded.
func IsRateLimitExceeded(err error) bool {
	return errors.Is(err, ErrRateLimitExceeded)
}

const identitySeparator = ":"

// Identity composes an identity from an action name and optional caller-specific parts.
// Identity("contact", "203.0.113.7") returns "contact:203.0.113.7".
func Identity(action string, parts ...string) string {
	if len(parts) == 0 {
		return action
	}
	return action + identitySeparator + strings.Join(parts, identitySeparator)
}

func actionOf(identity string) string {
	if i := strings.Index(identity, identitySeparator); i >= 0 {
		return identity[:i]
	}
	return identity
}

// Option configures optional Limiter dependencies.
type Option func(*limiterOptions)

type limiterOptions struct {
	metrics      MetricsCollector
	cacheMetrics lrucache.MetricsCollector
	now          func() time.Time
}

// WithMetricsCollector sets a collector for admitted and rejected attempts.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *limiterOptions) { o.metrics = mc }
}

// WithCacheMetricsCollector sets a collector for the underlying counter cache.
func WithCacheMetricsCollector(mc lrucache.MetricsCollector) Option {
	return func(o *limiterOptions) { o.cacheMetrics = mc }
}

// WithClock replaces time.Now for window expiration.
func WithClock(now func() time.Time) Option {
	return func(o *limiterOptions) { o.now = now }
}

// Limiter counts attempts per identity within a fixed window.
// It's safe for concurrent use. One instance is meant to be shared by all protected handlers.
type Limiter struct {
	window       time.Duration
	identityMode IdentityMode
	counters     *lrucache.LRUCache[string, *atomic.Int64]
	metrics      MetricsCollector
}

// New creates a Limiter. Non-positive window or capacity is rejected.
func New(cfg *Config, opts ...Option) (*Limiter, error) {
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %s", cfg.Window)
	}
	if cfg.MaxTrackedIdentities <= 0 {
		return nil, fmt.Errorf("max tracked identities must be positive, got %d", cfg.MaxTrackedIdentities)
	}

	var o limiterOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = disabledMetrics{}
	}

	counters, err := lrucache.NewWithOpts[string, *atomic.Int64](
		cfg.MaxTrackedIdentities, o.cacheMetrics, lrucache.Options{DefaultTTL: cfg.Window, Now: o.now})
	if err != nil {
		return nil, fmt.Errorf("new counters cache: %w", err)
	}

	identityMode := cfg.IdentityMode
	if identityMode == "" {
		identityMode = IdentityModePerCaller
	}

	return &Limiter{window: cfg.Window, identityMode: identityMode, counters: counters, metrics: o.metrics}, nil
}

// Check records an attempt for the identity and decides whether it's admitted.
// It returns ErrRateLimitExceeded when the attempt count within the current window reaches limit.
// Rejected attempts are counted too, so retrying during the window never frees the quota.
func (l *Limiter) Check(identity string, limit int) error {
	if identity == "" {
		return fmt.Errorf("%w: identity is empty", ErrInvalidCheck)
	}
	if limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidCheck, limit)
	}

	counter, _ := l.counters.GetOrAdd(identity, newCounter)
	if counter.Inc() >= int64(limit) {
		l.metrics.IncRejected(actionOf(identity))
		return ErrRateLimitExceeded
	}
	l.metrics.IncAdmitted(actionOf(identity))
	return nil
}

// IdentityFor returns the identity for the action according to the configured identity mode.
// In the global mode the client key is ignored and all callers share one quota per action.
func (l *Limiter) IdentityFor(action, clientKey string) string {
	if l.identityMode == IdentityModeGlobal || clientKey == "" {
		return Identity(action)
	}
	return Identity(action, clientKey)
}

// Window returns the length of the counting window.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Len returns the number of currently tracked identities.
func (l *Limiter) Len() int {
	return l.counters.Len()
}

// RunPeriodicCleanup drops counters of finished windows until ctx is done.
// It matches the service.WorkerFunc signature.
func (l *Limiter) RunPeriodicCleanup(ctx context.Context, interval time.Duration) error {
	l.counters.RunPeriodicCleanup(ctx, interval)
	return nil
}

func newCounter() *atomic.Int64 {
	return atomic.NewInt64(0)
}
