/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssiautomations/website/config"
	"github.com/ssiautomations/website/httpserver/middleware"
	"github.com/ssiautomations/website/log"
	"github.com/ssiautomations/website/log/logtest"
)

func loadConfig(t *testing.T, data string) *Config {
	t.Helper()
	cfg := NewConfig()
	require.NoError(t, config.NewLoader(config.NewViperAdapter()).LoadFromReader(
		bytes.NewBufferString(data), config.DataTypeYAML, cfg))
	return cfg
}

func TestNewWithOpts(t *testing.T) {
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		rw.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	logger := logtest.NewRecorder()
	metrics := NewPrometheusMetrics("test")
	client, err := NewWithOpts(loadConfig(t, ""), Opts{
		RequestType:    "gotrue",
		UserAgent:      "website/1.0",
		Tokens:         StaticToken("anon-key"),
		APIKeyHeader:   "apikey",
		LoggerProvider: func(ctx context.Context) log.FieldLogger { return logger },
		Collector:      metrics,
	})
	require.NoError(t, err)

	ctx := middleware.NewContextWithRequestID(context.Background(), "req-1")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server.URL+"/auth/v1/otp", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Equal(t, "website/1.0", gotHeaders.Get("User-Agent"))
	assert.Equal(t, "Bearer anon-key", gotHeaders.Get("Authorization"))
	assert.Equal(t, "anon-key", gotHeaders.Get("apikey"))
	assert.Equal(t, "req-1", gotHeaders.Get(middleware.RequestIDHeader))

	entry, found := logger.FindEntry("client http request POST " + server.URL + "/auth/v1/otp done")
	require.True(t, found)
	require.Equal(t, "gotrue", entry.StringField("client_type"))
	require.Equal(t, 1, testutil.CollectAndCount(metrics.Durations))
}

func TestNewWithOpts_RequestTypeFromContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	logger := logtest.NewRecorder()
	client, err := NewWithOpts(loadConfig(t, "httpClient:\n  log:\n    mode: failed\n"), Opts{
		RequestType:    "gotrue",
		LoggerProvider: func(ctx context.Context) log.FieldLogger { return logger },
	})
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(NewContextWithRequestType(context.Background(), "gotrue_verify"),
		http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	entries := logger.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "gotrue_verify", entries[0].StringField("client_type"))
}

func TestRateLimitingRoundTripper(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	_, err := NewRateLimitingRoundTripper(http.DefaultTransport, 0)
	require.EqualError(t, err, "rate limit must be positive")

	rt, err := NewRateLimitingRoundTripperWithOpts(http.DefaultTransport, 1, RateLimitingRoundTripperOpts{
		WaitTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	client := &http.Client{Transport: rt}

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	_, err = client.Get(server.URL)
	var waitErr *RateLimitingWaitError
	require.True(t, errors.As(err, &waitErr))
}

func TestAuthRoundTripper_TokenError(t *testing.T) {
	tokenErr := errors.New("no key")
	rt := NewAuthRoundTripper(http.DefaultTransport, tokenProviderFunc(func(ctx context.Context) (string, error) {
		return "", tokenErr
	}))
	req := httptest.NewRequest(http.MethodGet, "http://localhost", nil)
	_, err := rt.RoundTrip(req)
	require.ErrorIs(t, err, tokenErr)
}

type tokenProviderFunc func(ctx context.Context) (string, error)

func (f tokenProviderFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

func TestConfig(t *testing.T) {
	cfg := loadConfig(t, "")
	require.Equal(t, DefaultTimeout, cfg.Timeout)
	require.True(t, cfg.Retries.Enabled)
	require.Equal(t, DefaultMaxRetryAttempts, cfg.Retries.MaxAttempts)
	require.Equal(t, RetryPolicyExponential, cfg.Retries.Policy)
	require.False(t, cfg.RateLimits.Enabled)
	require.Equal(t, LoggingModeAll, cfg.Log.Mode)
	require.True(t, cfg.Metrics.Enabled)

	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{
			name:    "bad max attempts",
			data:    "httpClient:\n  retries:\n    maxAttempts: 0\n",
			wantErr: "httpClient.retries.maxAttempts: must be positive",
		},
		{
			name:    "bad rate limit",
			data:    "httpClient:\n  rateLimits:\n    enabled: true\n    limit: -1\n",
			wantErr: "httpClient.rateLimits.limit: must be positive",
		},
		{
			name:    "bad negative timeout",
			data:    "httpClient:\n  timeout: -1s\n",
			wantErr: "httpClient.timeout: must not be negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
				bytes.NewBufferString(tt.data), config.DataTypeYAML, NewConfig())
			require.EqualError(t, err, tt.wantErr)
		})
	}
}
