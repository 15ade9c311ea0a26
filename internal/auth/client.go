/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ssiautomations/website/httpclient"
	"github.com/ssiautomations/website/httpserver/middleware"
	"github.com/ssiautomations/website/restapi"
)

// Provider errors.
var (
	ErrInvalidCode        = errors.New("invalid or expired verification code")
	ErrInvalidCredentials = errors.New("invalid wallet credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
)

// User is the signed-in account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Session is issued by the provider on sign-in and refresh.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Web3Credentials is a signed sign-in message of a wallet.
type Web3Credentials struct {
	Chain     string `json:"chain"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// Provider performs sign-in operations. It's implemented by Client.
type Provider interface {
	SendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (*Session, error)
	SignInWithWeb3(ctx context.Context, creds Web3Credentials) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Client talks to a GoTrue compatible auth provider.
// The HTTP client is expected to add the API key (see httpclient.Opts.APIKeyHeader).
type Client struct {
	baseURL string
	http    *http.Client
}

var _ Provider = (*Client)(nil)

// NewClient creates a new Client.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/") + "/auth/v1", http: httpClient}
}

// SendOTP emails a one-time sign-in code, creating the user if needed.
func (c *Client) SendOTP(ctx context.Context, email string) error {
	return c.post(ctx, "send_otp", "/otp", map[string]interface{}{"email": email, "create_user": true}, nil, "")
}

// VerifyOTP exchanges the emailed code for a session.
func (c *Client) VerifyOTP(ctx context.Context, email, code string) (*Session, error) {
	var session Session
	err := c.post(ctx, "verify_otp", "/verify",
		map[string]string{"type": "email", "email": email, "token": code}, &session, "")
	if err != nil {
		if restapi.IsClientErrorStatus(err) && restapi.StatusCodeOf(err) != http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCode, err)
		}
		return nil, err
	}
	return &session, nil
}

// SignInWithWeb3 exchanges a signed wallet message for a session.
func (c *Client) SignInWithWeb3(ctx context.Context, creds Web3Credentials) (*Session, error) {
	var session Session
	if err := c.post(ctx, "web3_sign_in", "/token?grant_type=web3", creds, &session, ""); err != nil {
		if restapi.IsClientErrorStatus(err) && restapi.StatusCodeOf(err) != http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return nil, err
	}
	return &session, nil
}

// Refresh issues a new session for the refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	var session Session
	err := c.post(ctx, "refresh_token", "/token?grant_type=refresh_token",
		map[string]string{"refresh_token": refreshToken}, &session, "")
	if err != nil {
		if restapi.IsClientErrorStatus(err) {
			return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
		}
		return nil, err
	}
	return &session, nil
}

// SignOut revokes the session of the access token.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	err := c.post(ctx, "sign_out", "/logout", nil, nil, accessToken)
	if restapi.IsClientErrorStatus(err) {
		return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return err
}

func (c *Client) post(ctx context.Context, requestType, path string, body, result interface{}, accessToken string) error {
	ctx = httpclient.NewContextWithRequestType(ctx, requestType)
	req, err := restapi.NewJSONRequest(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("new %s request: %w", requestType, err)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return restapi.DoRequestAndUnmarshalJSON(c.http, req, result, middleware.LoggerOrDisabled(ctx))
}
