/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package auth

import (
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/ssiautomations/website/httpserver/middleware"
	"github.com/ssiautomations/website/log"
)

// PublicRoutes are pages reachable without a session, together with everything under them.
var PublicRoutes = []string{
	"/", "/login", "/otp", "/about", "/blog", "/contact", "/pricing", "/learn", "/newsletter", "/privacy", "/terms",
}

var publicPrefixes = []string{"/api/", "/healthz", "/metrics"}

var staticAssetExts = map[string]bool{
	".css": true, ".js": true, ".map": true, ".ico": true, ".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".svg": true, ".webp": true, ".avif": true, ".woff": true, ".woff2": true, ".ttf": true,
	".txt": true, ".xml": true, ".json": true, ".webmanifest": true,
}

// IsPublicPath reports whether the path may be served without a session.
func IsPublicPath(p string) bool {
	for _, route := range PublicRoutes {
		if p == route || (route != "/" && strings.HasPrefix(p, route+"/")) {
			return true
		}
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return staticAssetExts[strings.ToLower(path.Ext(p))]
}

// SessionMiddleware resolves the signed-in user from session cookies.
// Expired access tokens are refreshed transparently, anonymous requests to protected pages are redirected to login.
type SessionMiddleware struct {
	validator *TokenValidator
	provider  Provider
	cookies   cookieWriter
	loginPath string
}

// NewSessionMiddleware creates a new SessionMiddleware.
func NewSessionMiddleware(cfg *Config, validator *TokenValidator, provider Provider) *SessionMiddleware {
	return &SessionMiddleware{
		validator: validator,
		provider:  provider,
		cookies:   cookieWriter{cfg: cfg.Cookies},
		loginPath: cfg.LoginPath,
	}
}

// Handler wraps next.
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if user := m.resolveUser(rw, r); user != nil {
			r = r.WithContext(NewContextWithUser(r.Context(), user))
		} else if !IsPublicPath(r.URL.Path) {
			http.Redirect(rw, r, m.loginPath, http.StatusFound)
			return
		}
		next.ServeHTTP(rw, r)
	})
}

func (m *SessionMiddleware) resolveUser(rw http.ResponseWriter, r *http.Request) *User {
	accessToken := cookieValue(r, AccessTokenCookie)
	refreshToken := cookieValue(r, RefreshTokenCookie)
	if accessToken == "" && refreshToken == "" {
		return nil
	}
	logger := middleware.LoggerOrDisabled(r.Context())

	if accessToken != "" {
		user, err := m.validator.Validate(accessToken)
		if err == nil {
			return user
		}
		if !errors.Is(err, ErrTokenExpired) {
			logger.Warn("session rejected", log.Error(err))
			return nil
		}
	}
	if refreshToken == "" {
		return nil
	}

	session, err := m.provider.Refresh(r.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			logger.Info("session refresh rejected", log.Error(err))
			m.cookies.clear(rw)
		} else {
			logger.Error("session refresh failed", log.Error(err))
		}
		return nil
	}
	m.cookies.set(rw, session)
	logger.Debug("session refreshed", log.String("user_id", session.User.ID))
	return &session.User
}
