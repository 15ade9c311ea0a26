/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// RoutePatternGetterFunc returns the route pattern of the request ("/api/v1/blog/{slug}").
type RoutePatternGetterFunc func(r *http.Request) string

// WrapResponseWriterIfNeeded wraps rw unless an outer middleware already did.
func WrapResponseWriterIfNeeded(rw http.ResponseWriter, protoMajor int) chimw.WrapResponseWriter {
	if wrw, ok := rw.(chimw.WrapResponseWriter); ok {
		return wrw
	}
	return chimw.NewWrapResponseWriter(rw, protoMajor)
}

func isExcluded(path string, endpoints []string) bool {
	for _, endpoint := range endpoints {
		if path == endpoint {
			return true
		}
	}
	return false
}
