/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ssiautomations/website/internal/throttle"
	"github.com/ssiautomations/website/log"
	"github.com/ssiautomations/website/restapi"
)

// ThrottleOpts represents options for Throttle middleware.
type ThrottleOpts struct {
	// GetKey returns the throttling key of the request. ClientIP is used by default.
	GetKey func(r *http.Request) string
	// Rejected, if set, is incremented for every throttled request.
	Rejected prometheus.Counter
}

// Throttle answers 429 with Retry-After when the limiter does not allow the request.
// Limiter failures are logged and the request passes.
func Throttle(limiter throttle.Limiter, errDomain string, opts ThrottleOpts) func(next http.Handler) http.Handler {
	if opts.GetKey == nil {
		opts.GetKey = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			key := opts.GetKey(r)
			allow, retryAfter, err := limiter.Allow(r.Context(), key)
			logger := GetLoggerFromContext(r.Context())
			if err != nil {
				if logger != nil {
					logger.Error("throttling failed, request passes", log.Error(err))
				}
				next.ServeHTTP(rw, r)
				return
			}
			if !allow {
				if opts.Rejected != nil {
					opts.Rejected.Inc()
				}
				if logger != nil {
					logger.Warn("request throttled", log.String("throttle_key", key), log.Duration("retry_after", retryAfter))
				}
				restapi.RespondTooManyRequests(rw, errDomain, "Too many requests. Please slow down.", retryAfter, logger)
				return
			}
			next.ServeHTTP(rw, r)
		})
	}
}
