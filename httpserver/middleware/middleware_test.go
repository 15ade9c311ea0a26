/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ssiautomations/website/log"
	"github.com/ssiautomations/website/log/logtest"
	"github.com/ssiautomations/website/ratelimit"
	"github.com/ssiautomations/website/testutil"
)

const testErrDomain = "Website"

func TestRequestID(t *testing.T) {
	var gotReqID, gotIntReqID string
	h := RequestIDWithOpts(RequestIDOpts{GenerateID: func() string { return "generated" }})(
		http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			gotReqID = GetRequestIDFromContext(r.Context())
			gotIntReqID = GetInternalRequestIDFromContext(r.Context())
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "from-proxy")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "from-proxy", gotReqID)
	require.Equal(t, "generated", gotIntReqID)
	require.Equal(t, "from-proxy", rec.Header().Get(RequestIDHeader))
	require.Equal(t, "generated", rec.Header().Get(InternalRequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDLength+1))
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "generated", gotReqID)

	RequestID()(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotReqID = GetRequestIDFromContext(r.Context())
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, gotReqID, 20)
}

func TestClientIPResolver(t *testing.T) {
	resolver, err := NewClientIPResolver([]string{"10.0.0.0/8", "192.0.2.10"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "untrusted peer ignores forwarded for", headers: map[string]string{"X-Forwarded-For": "203.0.113.7"},
			remote: "198.51.100.9:5555", want: "198.51.100.9"},
		{name: "untrusted peer ignores real ip", headers: map[string]string{"X-Real-IP": "203.0.113.7"},
			remote: "198.51.100.9:5555", want: "198.51.100.9"},
		{name: "trusted peer", headers: map[string]string{"X-Forwarded-For": "203.0.113.7"},
			remote: "10.0.0.2:5555", want: "203.0.113.7"},
		{name: "trusted chain", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.1.1.1, 192.0.2.10"},
			remote: "10.0.0.2:5555", want: "203.0.113.7"},
		{name: "client prepends fake hops", headers: map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8, 203.0.113.7"},
			remote: "10.0.0.2:5555", want: "203.0.113.7"},
		{name: "garbage hop", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, not-an-ip, 10.1.1.1"},
			remote: "10.0.0.2:5555", want: "10.1.1.1"},
		{name: "all hops trusted", headers: map[string]string{"X-Forwarded-For": "10.9.9.9, 10.1.1.1"},
			remote: "10.0.0.2:5555", want: "10.9.9.9"},
		{name: "trusted peer with real ip", headers: map[string]string{"X-Real-IP": " 198.51.100.4 "},
			remote: "10.0.0.2:5555", want: "198.51.100.4"},
		{name: "trusted peer without headers", remote: "10.0.0.2:5555", want: "10.0.0.2"},
		{name: "remote addr without port", remote: "192.0.2.1", want: "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/contact", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, resolver.Resolve(req))

			var got string
			ClientIPMiddleware(resolver)(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
				got = ClientIP(r)
			})).ServeHTTP(httptest.NewRecorder(), req)
			require.Equal(t, tt.want, got)
		})
	}

	_, err = NewClientIPResolver([]string{"10.0.0.0/33"})
	require.EqualError(t, err, `invalid CIDR "10.0.0.0/33"`)
	_, err = NewClientIPResolver([]string{"proxy.local"})
	require.EqualError(t, err, `invalid IP address "proxy.local"`)
}

func TestClientIP_WithoutResolver(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/contact", nil)
	req.RemoteAddr = "198.51.100.9:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	req.Header.Set("X-Real-IP", "203.0.113.8")
	require.Equal(t, "198.51.100.9", ClientIP(req))
}

func TestAttemptLimit_SpoofedForwardedFor(t *testing.T) {
	limiter, err := ratelimit.New(&ratelimit.Config{Window: time.Minute, MaxTrackedIdentities: 500})
	require.NoError(t, err)
	resolver, err := NewClientIPResolver([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	var served int
	h := ClientIPMiddleware(resolver)(AttemptLimit(limiter, "contact", 3, testErrDomain, AttemptLimitOpts{})(
		http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			served++
			rw.WriteHeader(http.StatusOK)
		})))

	codes := map[int]int{}
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/contact", nil)
		req.RemoteAddr = "198.51.100.9:4321"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.%d.%d", i/250, i%250+1))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes[rec.Code]++
	}
	require.Equal(t, 2, served)
	require.Equal(t, map[int]int{http.StatusOK: 2, http.StatusTooManyRequests: 48}, codes)
	require.Equal(t, 1, limiter.Len())
}

func TestLogging(t *testing.T) {
	logger := logtest.NewRecorder()
	var ctxLogger log.FieldLogger
	h := LoggingWithOpts(logger, LoggingOpts{
		ExcludedEndpoints: []string{"/healthz"},
		SecretQueryParams: []string{"token"},
	})(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		ctxLogger = GetLoggerFromContext(r.Context())
		if r.URL.Path == "/healthz" {
			rw.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		rw.WriteHeader(http.StatusCreated)
		_, _ = rw.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback?token=secret&next=/dashboard", nil)
	req = req.WithContext(NewContextWithRequestID(req.Context(), "req-1"))
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, ctxLogger)

	entries := logger.Entries()
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].Text, "response completed in")
	require.Equal(t, "req-1", entries[0].StringField("request_id"))
	require.Equal(t, "/api/auth/callback?next=%2Fdashboard&token="+LoggingSecretQueryPlaceholder,
		entries[0].StringField("uri"))
	status, ok := entries[0].FindField("status")
	require.True(t, ok)
	require.EqualValues(t, http.StatusCreated, status.Int)

	// Excluded endpoints are logged only when they fail.
	logger.Reset()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Len(t, logger.Entries(), 1)
}

func TestRecovery(t *testing.T) {
	logger := logtest.NewRecorder()
	h := Recovery(testErrDomain)(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(NewContextWithLogger(req.Context(), logger))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	testutil.RequireErrorInRecorder(t, rec, http.StatusInternalServerError, testErrDomain, "internalError")
	entry, found := logger.FindEntry("Panic: boom")
	require.True(t, found)
	require.NotEmpty(t, entry.StringField("stack"))

	aborting := Recovery(testErrDomain)(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		aborting.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRequestBodyLimit(t *testing.T) {
	h := RequestBodyLimit(8, testErrDomain)(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(`{"message":"too long"}`)))
	testutil.RequireErrorInRecorder(t, rec, http.StatusRequestEntityTooLarge, testErrDomain, "requestEntityTooLarge")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHTTPRequestMetrics(t *testing.T) {
	pm := NewHTTPRequestPrometheusMetricsWithOpts(HTTPRequestPrometheusMetricsOpts{Namespace: "test"})
	h := HTTPRequestMetrics(pm, func(r *http.Request) string { return "/api/v1/blog/{slug}" },
		HTTPRequestMetricsOpts{ExcludedEndpoints: []string{"/metrics"}})(
		http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/v1/blog/missing" {
				rw.WriteHeader(http.StatusNotFound)
			}
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/blog/hello", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	h.ServeHTTP(httptest.NewRecorder(), req)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/blog/missing", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, 2, promtestutil.CollectAndCount(pm.Durations))
	// Touching existing series must not add new ones.
	pm.Durations.WithLabelValues(http.MethodGet, "/api/v1/blog/{slug}", userAgentTypeBrowser, "200")
	pm.Durations.WithLabelValues(http.MethodGet, "/api/v1/blog/{slug}", userAgentTypeHTTPClient, "404")
	require.Equal(t, 2, promtestutil.CollectAndCount(pm.Durations))
	require.Equal(t, 0.0, promtestutil.ToFloat64(pm.InFlight.WithLabelValues(http.MethodGet, userAgentTypeBrowser)))
}

func TestInFlightLimit(t *testing.T) {
	_, err := InFlightLimit(0, testErrDomain, InFlightLimitOpts{})
	require.Error(t, err)

	release := make(chan struct{})
	started := make(chan struct{})
	mw, err := InFlightLimit(1, testErrDomain, InFlightLimitOpts{RetryAfter: 5 * time.Second,
		ExcludedEndpoints: []string{"/healthz"}})
	require.NoError(t, err)
	h := mw(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			close(started)
			<-release
		}
		rw.WriteHeader(http.StatusOK)
	}))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slow", nil))
	}()
	<-started

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fast", nil))
	testutil.RequireErrorInRecorder(t, rec, http.StatusServiceUnavailable, testErrDomain, "serviceUnavailable")
	require.Equal(t, "5", rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	close(release)
	wg.Wait()

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fast", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

type stubLimiter struct {
	allow      bool
	retryAfter time.Duration
	err        error
	keys       []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	s.keys = append(s.keys, key)
	return s.allow, s.retryAfter, s.err
}

func TestThrottle(t *testing.T) {
	next := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) { rw.WriteHeader(http.StatusOK) })
	rejected := prometheus.NewCounter(prometheus.CounterOpts{Name: "throttled_total"})

	lim := &stubLimiter{allow: false, retryAfter: 30 * time.Second}
	req := httptest.NewRequest(http.MethodPost, "/api/newsletter", nil)
	req.RemoteAddr = "203.0.113.7:1234"
	req.Header.Set("X-Forwarded-For", "10.20.30.40")
	rec := httptest.NewRecorder()
	Throttle(lim, testErrDomain, ThrottleOpts{Rejected: rejected})(next).ServeHTTP(rec, req)
	testutil.RequireErrorInRecorder(t, rec, http.StatusTooManyRequests, testErrDomain, "tooManyRequests")
	require.Equal(t, "30", rec.Header().Get("Retry-After"))
	require.Equal(t, []string{"203.0.113.7"}, lim.keys)
	testutil.RequireCounterValue(t, rejected, 1)

	lim = &stubLimiter{allow: true}
	rec = httptest.NewRecorder()
	Throttle(lim, testErrDomain, ThrottleOpts{})(next).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	logger := logtest.NewRecorder()
	lim = &stubLimiter{err: errors.New("store unavailable")}
	rec = httptest.NewRecorder()
	Throttle(lim, testErrDomain, ThrottleOpts{})(next).ServeHTTP(rec,
		req.WithContext(NewContextWithLogger(req.Context(), logger)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, logger.EntriesAtLevel(log.LevelError), 1)
}

func TestAttemptLimit(t *testing.T) {
	limiter, err := ratelimit.New(&ratelimit.Config{Window: time.Minute, MaxTrackedIdentities: 10})
	require.NoError(t, err)

	var served int
	next := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		served++
		rw.WriteHeader(http.StatusOK)
	})
	const msg = "Too many subscription attempts. Please try again in a minute."
	h := AttemptLimit(limiter, "newsletter", 2, testErrDomain, AttemptLimitOpts{Message: msg})(next)

	send := func(ip string) *httptest.ResponseRecorder {
		logger := logtest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/newsletter", nil)
		req.RemoteAddr = ip + ":4321"
		req = req.WithContext(NewContextWithLogger(req.Context(), logger))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, send("203.0.113.7").Code)
	rec := send("203.0.113.7")
	gotMsg := testutil.RequireErrorInRecorder(t, rec, http.StatusTooManyRequests, testErrDomain, "tooManyRequests")
	require.Equal(t, msg, gotMsg)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))
	require.Equal(t, 1, served)

	// Another caller has its own quota.
	require.Equal(t, http.StatusOK, send("198.51.100.1").Code)
	require.Equal(t, 2, served)
	require.Equal(t, 2, limiter.Len())

	invalid := AttemptLimit(limiter, "contact", 0, testErrDomain, AttemptLimitOpts{})(next)
	rec = httptest.NewRecorder()
	invalid.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/contact", nil))
	testutil.RequireErrorInRecorder(t, rec, http.StatusInternalServerError, testErrDomain, "internalError")
	require.Equal(t, 2, served)
}
