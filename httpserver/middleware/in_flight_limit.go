/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ssiautomations/website/log"
	"github.com/ssiautomations/website/restapi"
)

// InFlightLimitOpts represents options for InFlightLimit middleware.
type InFlightLimitOpts struct {
	// BacklogTimeout is how long a request may wait for a free slot before it is rejected.
	BacklogTimeout time.Duration
	// RetryAfter is sent in the Retry-After header of rejected requests.
	RetryAfter        time.Duration
	ExcludedEndpoints []string
}

// InFlightLimit bounds the number of requests served concurrently.
// Requests that cannot get a slot within the backlog timeout receive 503.
func InFlightLimit(limit int, errDomain string, opts InFlightLimitOpts) (func(next http.Handler) http.Handler, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("in-flight limit must be positive, got %d", limit)
	}
	slots := make(chan struct{}, limit)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			if isExcluded(r.URL.Path, opts.ExcludedEndpoints) {
				next.ServeHTTP(rw, r)
				return
			}
			if !acquireSlot(r, slots, opts.BacklogTimeout) {
				logger := GetLoggerFromContext(r.Context())
				if logger != nil {
					logger.Warn("in-flight requests limit exceeded", log.Int("limit", limit))
				}
				if opts.RetryAfter > 0 {
					rw.Header().Set("Retry-After", fmt.Sprintf("%d", int(opts.RetryAfter.Seconds())))
				}
				restapi.RespondError(rw, http.StatusServiceUnavailable, restapi.NewError(
					errDomain, restapi.ErrCodeServiceUnavailable, restapi.ErrMessageServiceUnavailable), logger)
				return
			}
			defer func() { <-slots }()
			next.ServeHTTP(rw, r)
		})
	}, nil
}

func acquireSlot(r *http.Request, slots chan struct{}, backlogTimeout time.Duration) bool {
	select {
	case slots <- struct{}{}:
		return true
	default:
	}
	if backlogTimeout <= 0 {
		return false
	}
	timer := time.NewTimer(backlogTimeout)
	defer timer.Stop()
	select {
	case slots <- struct{}{}:
		return true
	case <-timer.C:
		return false
	case <-r.Context().Done():
		return false
	}
}
