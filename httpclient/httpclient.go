/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ssiautomations/website/log"
)

// Opts provides options for NewWithOpts.
type Opts struct {
	// RequestType labels logs and metrics of the client ("gotrue", "mail_api").
	RequestType string

	UserAgent string

	// Tokens, if set, adds bearer authorization to every request.
	Tokens TokenProvider

	// APIKeyHeader additionally sends the token in this header.
	APIKeyHeader string

	// Delegate is the innermost transport. A clone of http.DefaultTransport is used by default.
	Delegate http.RoundTripper

	LoggerProvider func(ctx context.Context) log.FieldLogger

	// Collector receives request durations when metrics are enabled.
	Collector MetricsCollector
}

// New creates a client configured by cfg.
func New(cfg *Config) (*http.Client, error) {
	return NewWithOpts(cfg, Opts{})
}

// NewWithOpts creates a client whose transport chain (outermost first) is:
// retries, request id propagation, user agent, authorization, rate limiting, metrics, logging.
// Every retry attempt goes through rate limiting, metrics and logging on its own.
func NewWithOpts(cfg *Config, opts Opts) (*http.Client, error) {
	var err error
	var rt http.RoundTripper = opts.Delegate
	if rt == nil {
		rt = http.DefaultTransport.(*http.Transport).Clone()
	}

	if cfg.Log.Mode != LoggingModeNone {
		rt = NewLoggingRoundTripperWithOpts(rt, opts.RequestType, LoggingRoundTripperOpts{
			LoggerProvider:       opts.LoggerProvider,
			Mode:                 cfg.Log.Mode,
			SlowRequestThreshold: cfg.Log.SlowRequestThreshold,
		})
	}
	if cfg.Metrics.Enabled && opts.Collector != nil {
		rt = NewMetricsRoundTripper(rt, opts.RequestType, opts.Collector)
	}
	if cfg.RateLimits.Enabled {
		if rt, err = NewRateLimitingRoundTripperWithOpts(rt, cfg.RateLimits.Limit, RateLimitingRoundTripperOpts{
			Burst:       cfg.RateLimits.Burst,
			WaitTimeout: cfg.RateLimits.WaitTimeout,
		}); err != nil {
			return nil, fmt.Errorf("create rate limiting round tripper: %w", err)
		}
	}
	if opts.Tokens != nil {
		rt = NewAuthRoundTripperWithOpts(rt, opts.Tokens, AuthRoundTripperOpts{APIKeyHeader: opts.APIKeyHeader})
	}
	if opts.UserAgent != "" {
		rt = NewUserAgentRoundTripper(rt, opts.UserAgent)
	}
	rt = NewRequestIDRoundTripper(rt)
	if cfg.Retries.Enabled {
		if rt, err = NewRetryableRoundTripperWithOpts(rt, RetryableRoundTripperOpts{
			LoggerProvider:   opts.LoggerProvider,
			MaxRetryAttempts: cfg.Retries.MaxAttempts,
			BackoffPolicy:    cfg.Retries.BackoffPolicy(),
		}); err != nil {
			return nil, fmt.Errorf("create retryable round tripper: %w", err)
		}
	}

	return &http.Client{Transport: rt, Timeout: cfg.Timeout}, nil
}

// MustWithOpts is like NewWithOpts but panics on error.
func MustWithOpts(cfg *Config, opts Opts) *http.Client {
	client, err := NewWithOpts(cfg, opts)
	if err != nil {
		panic(err)
	}
	return client
}
