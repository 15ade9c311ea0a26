/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"
	"time"

	"github.com/ssiautomations/website/log"
	"github.com/ssiautomations/website/ratelimit"
	"github.com/ssiautomations/website/restapi"
)

// AttemptChecker records an attempt of the identity and decides whether it's admitted.
// It's implemented by ratelimit.Limiter.
type AttemptChecker interface {
	Check(identity string, limit int) error
	IdentityFor(action, clientKey string) string
	Window() time.Duration
}

// AttemptLimitOpts represents options for AttemptLimit middleware.
type AttemptLimitOpts struct {
	// Message is returned in the 429 response body. restapi.ErrMessageTooManyRequests is used by default.
	Message string
	// GetKey returns the caller key of the request. ClientIP is used by default.
	GetKey func(r *http.Request) string
}

// AttemptLimit checks every request against the per-action quota before the handler sees it.
// Rejected requests get 429 with Retry-After equal to the limiter window.
func AttemptLimit(
	checker AttemptChecker, action string, limit int, errDomain string, opts AttemptLimitOpts,
) func(next http.Handler) http.Handler {
	if opts.GetKey == nil {
		opts.GetKey = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			identity := checker.IdentityFor(action, opts.GetKey(r))
			err := checker.Check(identity, limit)
			if err == nil {
				next.ServeHTTP(rw, r)
				return
			}
			logger := GetLoggerFromContext(r.Context())
			if ratelimit.IsRateLimitExceeded(err) {
				if logger != nil {
					logger.Warn("attempt limit exceeded",
						log.String("action", action), log.String("identity", identity), log.Int("limit", limit))
				}
				restapi.RespondTooManyRequests(rw, errDomain, opts.Message, checker.Window(), logger)
				return
			}
			if logger != nil {
				logger.Error("attempt limit check failed", log.String("action", action), log.Error(err))
			}
			restapi.RespondInternalError(rw, errDomain, logger)
		})
	}
}
