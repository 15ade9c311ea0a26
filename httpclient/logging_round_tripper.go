/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ssiautomations/website/httpserver/middleware"
	"github.com/ssiautomations/website/log"
)

// LoggingMode determines which outgoing requests are logged.
type LoggingMode string

// Logging modes.
const (
	LoggingModeNone   LoggingMode = "none"
	LoggingModeAll    LoggingMode = "all"
	LoggingModeFailed LoggingMode = "failed"
)

// IsValid checks if the logging mode is known.
func (lm LoggingMode) IsValid() bool {
	switch lm {
	case LoggingModeNone, LoggingModeAll, LoggingModeFailed:
		return true
	}
	return false
}

// LoggingRoundTripperOpts represents options for LoggingRoundTripper.
type LoggingRoundTripperOpts struct {
	// LoggerProvider returns a context-specific logger.
	// The request-scoped logger from middleware is used by default, so entries carry request_id.
	LoggerProvider func(ctx context.Context) log.FieldLogger

	Mode LoggingMode

	// SlowRequestThreshold marks requests taking longer as slow. They are logged at warn level.
	SlowRequestThreshold time.Duration
}

// LoggingRoundTripper logs outgoing requests with their outcome and duration.
type LoggingRoundTripper struct {
	Delegate    http.RoundTripper
	RequestType string
	opts        LoggingRoundTripperOpts
}

// NewLoggingRoundTripper creates a new LoggingRoundTripper logging all requests.
func NewLoggingRoundTripper(delegate http.RoundTripper, requestType string) *LoggingRoundTripper {
	return NewLoggingRoundTripperWithOpts(delegate, requestType, LoggingRoundTripperOpts{})
}

// NewLoggingRoundTripperWithOpts creates a new LoggingRoundTripper with options.
func NewLoggingRoundTripperWithOpts(
	delegate http.RoundTripper, requestType string, opts LoggingRoundTripperOpts,
) *LoggingRoundTripper {
	if opts.Mode == "" {
		opts.Mode = LoggingModeAll
	}
	if opts.LoggerProvider == nil {
		opts.LoggerProvider = middleware.LoggerOrDisabled
	}
	return &LoggingRoundTripper{Delegate: delegate, RequestType: requestType, opts: opts}
}

// RoundTrip implements http.RoundTripper.
func (rt *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if rt.opts.Mode == LoggingModeNone {
		return rt.Delegate.RoundTrip(req)
	}

	start := time.Now()
	resp, err := rt.Delegate.RoundTrip(req)
	elapsed := time.Since(start)

	failed := err != nil || resp.StatusCode >= http.StatusBadRequest
	slow := rt.opts.SlowRequestThreshold > 0 && elapsed >= rt.opts.SlowRequestThreshold
	if rt.opts.Mode == LoggingModeFailed && !failed && !slow {
		return resp, err
	}

	fields := []log.Field{
		log.String("client_type", requestType(req.Context(), rt.RequestType)),
		log.String("method", req.Method),
		log.String("url", req.URL.Redacted()),
		log.Int64("duration_ms", elapsed.Milliseconds()),
	}
	logger := rt.opts.LoggerProvider(req.Context())
	msg := fmt.Sprintf("client http request %s %s", req.Method, req.URL.Redacted())
	switch {
	case err != nil:
		logger.Error(msg+" failed", append(fields, log.Error(err))...)
	case resp.StatusCode >= http.StatusInternalServerError || slow:
		logger.Warn(msg+" done", append(fields, log.Int("status", resp.StatusCode), log.Bool("slow", slow))...)
	default:
		logger.Info(msg+" done", append(fields, log.Int("status", resp.StatusCode))...)
	}
	return resp, err
}
