/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ssiautomations/website/httpserver/middleware"
	"github.com/ssiautomations/website/log"
	"github.com/ssiautomations/website/retry"
)

// Default parameter values for RetryableRoundTripper.
const (
	DefaultMaxRetryAttempts   = 3
	DefaultRetryInitialDelay  = 500 * time.Millisecond
	DefaultRetryMaxRetryAfter = 30 * time.Second
)

// RetryAttemptNumberHeader carries the serial number of the retry attempt.
const RetryAttemptNumberHeader = "X-Retry-Attempt"

// CheckRetryFunc decides whether a request should be repeated after an attempt.
type CheckRetryFunc func(req *http.Request, resp *http.Response, roundTripErr error) bool

// RetryableRoundTripperOpts represents options for RetryableRoundTripper.
type RetryableRoundTripperOpts struct {
	LoggerProvider func(ctx context.Context) log.FieldLogger

	// MaxRetryAttempts excludes the first attempt. Zero means DefaultMaxRetryAttempts.
	MaxRetryAttempts int

	CheckRetry CheckRetryFunc

	// BackoffPolicy computes delays when the response has no usable Retry-After header.
	BackoffPolicy retry.Policy

	// MaxRetryAfter caps delays taken from Retry-After. Longer ones stop retrying.
	MaxRetryAfter time.Duration
}

// RetryableRoundTripper repeats failed requests with backoff.
// The request body is buffered (or re-obtained through GetBody) so it can be sent again.
type RetryableRoundTripper struct {
	Delegate http.RoundTripper
	opts     RetryableRoundTripperOpts
}

// NewRetryableRoundTripper creates a RetryableRoundTripper with default options.
func NewRetryableRoundTripper(delegate http.RoundTripper) (*RetryableRoundTripper, error) {
	return NewRetryableRoundTripperWithOpts(delegate, RetryableRoundTripperOpts{})
}

// NewRetryableRoundTripperWithOpts creates a RetryableRoundTripper.
func NewRetryableRoundTripperWithOpts(
	delegate http.RoundTripper, opts RetryableRoundTripperOpts,
) (*RetryableRoundTripper, error) {
	if opts.MaxRetryAttempts < 0 {
		return nil, fmt.Errorf("max retry attempts must not be negative")
	}
	if opts.MaxRetryAttempts == 0 {
		opts.MaxRetryAttempts = DefaultMaxRetryAttempts
	}
	if opts.LoggerProvider == nil {
		opts.LoggerProvider = middleware.LoggerOrDisabled
	}
	if opts.CheckRetry == nil {
		opts.CheckRetry = DefaultCheckRetry
	}
	if opts.BackoffPolicy == nil {
		opts.BackoffPolicy = retry.NewExponentialBackoffPolicy(DefaultRetryInitialDelay, 0)
	}
	if opts.MaxRetryAfter == 0 {
		opts.MaxRetryAfter = DefaultRetryMaxRetryAfter
	}
	return &RetryableRoundTripper{Delegate: delegate, opts: opts}, nil
}

// RoundTrip implements http.RoundTripper.
func (rt *RetryableRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	logger := rt.opts.LoggerProvider(ctx)

	req = req.Clone(ctx) // Per RoundTripper contract.
	rewind, err := makeBodyRewindable(req)
	if err != nil {
		return nil, &RetryableRoundTripperError{Inner: err}
	}

	bo := rt.opts.BackoffPolicy.NewBackOff()
	for attempt := 0; ; attempt++ {
		attemptReq := req
		if attempt > 0 {
			attemptReq = req.Clone(ctx) // Per RoundTripper contract.
			attemptReq.Header.Set(RetryAttemptNumberHeader, strconv.Itoa(attempt))
			if rewindErr := rewind(attemptReq); rewindErr != nil {
				return nil, &RetryableRoundTripperError{Inner: rewindErr}
			}
		}

		resp, rtErr := rt.Delegate.RoundTrip(attemptReq)
		if !rt.opts.CheckRetry(attemptReq, resp, rtErr) {
			return resp, rtErr
		}
		if attempt >= rt.opts.MaxRetryAttempts {
			logger.Warn("max retry attempts exceeded",
				log.Int("attempts", attempt+1), log.String("url", req.URL.Redacted()))
			return resp, rtErr
		}

		delay, ok := retryAfter(resp)
		if ok && delay > rt.opts.MaxRetryAfter {
			return resp, rtErr
		}
		if !ok {
			if delay = bo.NextBackOff(); delay == backoff.Stop {
				return resp, rtErr
			}
		}
		if resp != nil {
			drainResponseBody(resp, logger)
		}

		logger.Debug("retrying client http request",
			log.Int("attempt", attempt+1), log.Duration("delay", delay), log.String("url", req.URL.Redacted()))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// DefaultCheckRetry retries connection failures that happened before the request reached the server
// for any method. 429 and 5xx responses (except 501) and other transport errors are retried only
// for idempotent requests.
func DefaultCheckRetry(req *http.Request, resp *http.Response, roundTripErr error) bool {
	if req.Context().Err() != nil {
		return false
	}
	if roundTripErr != nil {
		var opErr *net.OpError
		if errors.As(roundTripErr, &opErr) && opErr.Op == "dial" {
			return true
		}
		return isIdempotent(req) && (errors.Is(roundTripErr, io.EOF) || errors.Is(roundTripErr, io.ErrUnexpectedEOF))
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return isIdempotent(req)
	}
	return resp.StatusCode >= http.StatusInternalServerError && resp.StatusCode != http.StatusNotImplemented &&
		isIdempotent(req)
}

func isIdempotent(req *http.Request) bool {
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return GetIdempotentHintFromContext(req.Context())
}

// RetryableRoundTripperError is returned when the request can't be prepared for retries.
type RetryableRoundTripperError struct {
	Inner error
}

func (e *RetryableRoundTripperError) Error() string {
	return fmt.Sprintf("retryable round trip: %s", e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *RetryableRoundTripperError) Unwrap() error {
	return e.Inner
}

func makeBodyRewindable(req *http.Request) (func(*http.Request) error, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return func(*http.Request) error { return nil }, nil
	}
	if req.GetBody != nil {
		return func(r *http.Request) error {
			body, err := r.GetBody()
			if err != nil {
				return fmt.Errorf("get body for retry: %w", err)
			}
			r.Body = body
			return nil
		}, nil
	}

	buf, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(buf))
	return func(r *http.Request) error {
		r.Body = io.NopCloser(bytes.NewReader(buf))
		return nil
	}, nil
}

// retryAfter parses Retry-After given in seconds or as an HTTP date.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

func drainResponseBody(resp *http.Response, logger log.FieldLogger) {
	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16)); err != nil {
		logger.Warn("failed to discard response body between retry attempts", log.Error(err))
	}
	if err := resp.Body.Close(); err != nil {
		logger.Warn("failed to close response body between retry attempts", log.Error(err))
	}
}
