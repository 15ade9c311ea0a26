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
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session cookie names.
const (
	AccessTokenCookie  = "sb-access-token"
	RefreshTokenCookie = "sb-refresh-token" // nolint:gosec
)

// ErrTokenExpired is returned for a well-signed access token past its expiry.
var ErrTokenExpired = errors.New("access token expired")

// Claims are the access token claims the site relies on.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenValidator checks provider-issued HS256 access tokens locally.
type TokenValidator struct {
	secret []byte
	now    func() time.Time
}

// NewTokenValidator creates a new TokenValidator.
func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret), now: time.Now}
}

// Validate parses the token and returns its user.
func (v *TokenValidator) Validate(tokenString string) (*User, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("invalid access token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("invalid access token: no subject")
	}
	return &User{ID: claims.Subject, Email: claims.Email}, nil
}

type cookieWriter struct {
	cfg CookiesConfig
}

func (cw cookieWriter) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   cw.cfg.Domain,
		MaxAge:   maxAge,
		Secure:   cw.cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (cw cookieWriter) set(rw http.ResponseWriter, session *Session) {
	maxAge := int(cw.cfg.MaxAge / time.Second)
	http.SetCookie(rw, cw.cookie(AccessTokenCookie, session.AccessToken, maxAge))
	http.SetCookie(rw, cw.cookie(RefreshTokenCookie, session.RefreshToken, maxAge))
}

func (cw cookieWriter) clear(rw http.ResponseWriter) {
	http.SetCookie(rw, cw.cookie(AccessTokenCookie, "", -1))
	http.SetCookie(rw, cw.cookie(RefreshTokenCookie, "", -1))
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

type ctxKey int

const ctxKeyUser ctxKey = iota

// NewContextWithUser creates a new context with the signed-in user.
func NewContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}

// GetUserFromContext extracts the signed-in user from the context. It returns nil for anonymous requests.
func GetUserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(ctxKeyUser).(*User)
	return user
}
