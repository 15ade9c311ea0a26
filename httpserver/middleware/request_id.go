/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"

	"github.com/rs/xid"
)

// Request ID headers.
const (
	RequestIDHeader         = "X-Request-ID"
	InternalRequestIDHeader = "X-Int-Request-ID"
)

const maxRequestIDLength = 128

// RequestIDOpts represents options for RequestID middleware.
type RequestIDOpts struct {
	GenerateID func() string
}

func newID() string {
	return xid.New().String()
}

// RequestID takes X-Request-ID from the request (or generates one) and always generates an internal id.
// Both go into the request context and into X-Request-ID and X-Int-Request-ID response headers.
func RequestID() func(next http.Handler) http.Handler {
	return RequestIDWithOpts(RequestIDOpts{GenerateID: newID})
}

// RequestIDWithOpts is a more configurable version of RequestID middleware.
func RequestIDWithOpts(opts RequestIDOpts) func(next http.Handler) http.Handler {
	if opts.GenerateID == nil {
		opts.GenerateID = newID
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" || len(requestID) > maxRequestIDLength {
				requestID = opts.GenerateID()
			}
			internalRequestID := opts.GenerateID()

			rw.Header().Set(RequestIDHeader, requestID)
			rw.Header().Set(InternalRequestIDHeader, internalRequestID)

			ctx := NewContextWithInternalRequestID(NewContextWithRequestID(r.Context(), requestID), internalRequestID)
			next.ServeHTTP(rw, r.WithContext(ctx))
		})
	}
}
