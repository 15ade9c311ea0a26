/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"net/http"

	"github.com/ssiautomations/website/httpserver/middleware"
)

// RequestIDRoundTripper propagates the ID of the inbound request that triggered the outgoing one.
type RequestIDRoundTripper struct {
	Delegate http.RoundTripper
}

// NewRequestIDRoundTripper creates a new RequestIDRoundTripper.
func NewRequestIDRoundTripper(delegate http.RoundTripper) *RequestIDRoundTripper {
	return &RequestIDRoundTripper{Delegate: delegate}
}

// RoundTrip implements http.RoundTripper.
func (rt *RequestIDRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	requestID := middleware.GetRequestIDFromContext(req.Context())
	if requestID == "" || req.Header.Get(middleware.RequestIDHeader) != "" {
		return rt.Delegate.RoundTrip(req)
	}
	req = req.Clone(req.Context()) // Per RoundTripper contract.
	req.Header.Set(middleware.RequestIDHeader, requestID)
	return rt.Delegate.RoundTrip(req)
}
