/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
)

const (
	headerForwardedFor = "X-Forwarded-For"
	headerRealIP       = "X-Real-IP"
)

// ClientIPResolver determines the client address of a request.
// Forwarding headers are honoured only when the direct peer is a trusted proxy.
type ClientIPResolver struct {
	trusted []*net.IPNet
}

// NewClientIPResolver creates a resolver trusting the given proxies (IP addresses or CIDR ranges).
// With no trusted proxies only RemoteAddr is used.
func NewClientIPResolver(trustedProxies []string) (*ClientIPResolver, error) {
	res := &ClientIPResolver{}
	for _, s := range trustedProxies {
		s = strings.TrimSpace(s)
		if !strings.Contains(s, "/") {
			ip := net.ParseIP(s)
			if ip == nil {
				return nil, fmt.Errorf("invalid IP address %q", s)
			}
			bits := 8 * net.IPv4len
			if ip.To4() == nil {
				bits = 8 * net.IPv6len
			}
			s = fmt.Sprintf("%s/%d", s, bits)
		}
		_, ipNet, err := net.ParseCIDR(s)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q", s)
		}
		res.trusted = append(res.trusted, ipNet)
	}
	return res, nil
}

// Resolve returns the client address. X-Forwarded-For is walked right to left skipping trusted hops,
// so addresses written by the client itself are never reached while a trusted proxy is in front of it.
func (res *ClientIPResolver) Resolve(r *http.Request) string {
	client := remoteHost(r.RemoteAddr)
	if !res.isTrusted(client) {
		return client
	}

	hops := forwardedHops(r.Header.Values(headerForwardedFor))
	if len(hops) == 0 {
		if realIP := parseHop(r.Header.Get(headerRealIP)); realIP != "" {
			return realIP
		}
		return client
	}
	for i := len(hops) - 1; i >= 0; i-- {
		hop := parseHop(hops[i])
		if hop == "" {
			// Not an address: stop at the last hop a trusted proxy vouched for.
			return client
		}
		client = hop
		if !res.isTrusted(hop) {
			return hop
		}
	}
	return client
}

func (res *ClientIPResolver) isTrusted(addr string) bool {
	if len(res.trusted) == 0 {
		return false
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, ipNet := range res.trusted {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIPMiddleware stores the address resolved by res in the request context for ClientIP.
func ClientIPMiddleware(res *ClientIPResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(rw, r.WithContext(NewContextWithClientIP(r.Context(), res.Resolve(r))))
		})
	}
}

// NewContextWithClientIP creates a new context with the client address.
func NewContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyClientIP, ip)
}

// ClientIP returns the address stored by ClientIPMiddleware or, without it, the host part of RemoteAddr.
// Forwarding headers are never read here.
func ClientIP(r *http.Request) string {
	if ip := getStringFromContext(r.Context(), ctxKeyClientIP); ip != "" {
		return ip
	}
	return remoteHost(r.RemoteAddr)
}

func remoteHost(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

func forwardedHops(values []string) []string {
	var hops []string
	for _, v := range values {
		hops = append(hops, strings.Split(v, ",")...)
	}
	return hops
}

// parseHop returns the normalized IP of a forwarding hop, or "" if it isn't one.
func parseHop(hop string) string {
	hop = strings.TrimSpace(hop)
	if hop == "" {
		return ""
	}
	if ip := net.ParseIP(hop); ip != nil {
		return ip.String()
	}
	if host, _, err := net.SplitHostPort(hop); err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip.String()
		}
	}
	return ""
}
