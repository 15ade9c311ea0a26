/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ssiautomations/website/config"
)

func loadConfig(data string) (*Config, error) {
	cfg := NewConfig()
	err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(bytes.NewBufferString(data), config.DataTypeYAML, cfg)
	return cfg, err
}

func TestConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	require.Equal(t, DefaultAddress, cfg.Address)
	require.False(t, cfg.TLS.Enabled)
	require.Equal(t, DefaultTimeoutsShutdown, cfg.Timeouts.Shutdown)
	require.Equal(t, DefaultLimitsMaxRequests, cfg.Limits.MaxRequests)
	require.EqualValues(t, 1024*1024, cfg.Limits.MaxBodySizeBytes)
	require.Equal(t, []string{"/healthz", "/metrics"}, cfg.Log.ExcludedEndpoints)
	require.Equal(t, DefaultSlowRequestThreshold, cfg.Log.SlowRequestThreshold)
	require.Empty(t, cfg.TrustedProxies)
}

func TestConfig_Set(t *testing.T) {
	cfg, err := loadConfig(`
server:
  address: 127.0.0.1:3000
  timeouts:
    shutdown: 30s
  limits:
    maxRequests: 50
    maxBodySize: 64K
  log:
    requestStart: true
    excludedEndpoints: /healthz
    secretQueryParams: [token]
  trustedProxies: [10.0.0.0/8, "::1"]
`)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:3000", cfg.Address)
	require.Equal(t, 30*time.Second, cfg.Timeouts.Shutdown)
	require.Equal(t, 50, cfg.Limits.MaxRequests)
	require.EqualValues(t, 64*1024, cfg.Limits.MaxBodySizeBytes)
	require.True(t, cfg.Log.RequestStart)
	require.Equal(t, []string{"/healthz"}, cfg.Log.ExcludedEndpoints)
	require.Equal(t, []string{"token"}, cfg.Log.SecretQueryParams)
	require.Equal(t, []string{"10.0.0.0/8", "::1"}, cfg.TrustedProxies)
}

func TestConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"empty address", "server:\n  address: \"\"\n", "server.address: cannot be empty"},
		{"tls without key", "server:\n  tls:\n    enabled: true\n    cert: cert.pem\n", "server.tls.key: both cert and key should be set"},
		{"negative timeout", "server:\n  timeouts:\n    idle: -1s\n", "server.timeouts.idle: must not be negative"},
		{"negative max requests", "server:\n  limits:\n    maxRequests: -1\n", "server.limits.maxRequests: must not be negative"},
		{"bad trusted proxy", "server:\n  trustedProxies: [10.0.0.0/33]\n", `server.trustedProxies: invalid CIDR "10.0.0.0/33"`},
		{"tiny body size", "server:\n  limits:\n    maxBodySize: 100\n", "server.limits.maxBodySize: should be >= 1K or 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(tt.data)
			require.EqualError(t, err, tt.wantErr)
		})
	}
}
