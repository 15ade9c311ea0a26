/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"fmt"
	"net/http"
)

// TokenProvider returns a credential for outgoing requests.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider returning a fixed API key.
type StaticToken string

// Token implements TokenProvider.
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// AuthRoundTripperOpts represents options for AuthRoundTripper.
type AuthRoundTripperOpts struct {
	// APIKeyHeader additionally sends the token in this header (GoTrue expects "apikey").
	APIKeyHeader string
}

// AuthRoundTripper sets "Authorization: Bearer <token>" on requests that don't have it yet.
type AuthRoundTripper struct {
	Delegate http.RoundTripper
	Tokens   TokenProvider
	opts     AuthRoundTripperOpts
}

// NewAuthRoundTripper creates a new AuthRoundTripper.
func NewAuthRoundTripper(delegate http.RoundTripper, tokens TokenProvider) *AuthRoundTripper {
	return NewAuthRoundTripperWithOpts(delegate, tokens, AuthRoundTripperOpts{})
}

// NewAuthRoundTripperWithOpts creates a new AuthRoundTripper with options.
func NewAuthRoundTripperWithOpts(delegate http.RoundTripper, tokens TokenProvider, opts AuthRoundTripperOpts) *AuthRoundTripper {
	return &AuthRoundTripper{Delegate: delegate, Tokens: tokens, opts: opts}
}

// RoundTrip implements http.RoundTripper.
func (rt *AuthRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := rt.Tokens.Token(req.Context())
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close() // Per RoundTripper contract.
		}
		return nil, &AuthRoundTripperError{Inner: err}
	}
	setAuth := req.Header.Get("Authorization") == ""
	setAPIKey := rt.opts.APIKeyHeader != "" && req.Header.Get(rt.opts.APIKeyHeader) == ""
	if !setAuth && !setAPIKey {
		return rt.Delegate.RoundTrip(req)
	}
	req = req.Clone(req.Context()) // Per RoundTripper contract.
	if setAuth {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if setAPIKey {
		req.Header.Set(rt.opts.APIKeyHeader, token)
	}
	return rt.Delegate.RoundTrip(req)
}

// AuthRoundTripperError is returned when the token cannot be obtained.
type AuthRoundTripperError struct {
	Inner error
}

func (e *AuthRoundTripperError) Error() string {
	return fmt.Sprintf("auth round trip: %s", e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *AuthRoundTripperError) Unwrap() error {
	return e.Inner
}
