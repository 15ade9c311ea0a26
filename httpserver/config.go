/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"fmt"
	"time"

	"code.cloudfoundry.org/bytefmt"

	"github.com/ssiautomations/website/config"
	"github.com/ssiautomations/website/httpserver/middleware"
)

const (
	cfgKeyAddress                 = "server.address"
	cfgKeyTLSEnabled              = "server.tls.enabled"
	cfgKeyTLSCert                 = "server.tls.cert"
	cfgKeyTLSKey                  = "server.tls.key"
	cfgKeyTimeoutsWrite           = "server.timeouts.write"
	cfgKeyTimeoutsRead            = "server.timeouts.read"
	cfgKeyTimeoutsReadHeader      = "server.timeouts.readHeader"
	cfgKeyTimeoutsIdle            = "server.timeouts.idle"
	cfgKeyTimeoutsShutdown        = "server.timeouts.shutdown"
	cfgKeyLimitsMaxRequests       = "server.limits.maxRequests"
	cfgKeyLimitsMaxBodySize       = "server.limits.maxBodySize"
	cfgKeyLogRequestStart         = "server.log.requestStart"
	cfgKeyLogExcludedEndpoints    = "server.log.excludedEndpoints"
	cfgKeyLogSecretQueryParams    = "server.log.secretQueryParams" // nolint:gosec
	cfgKeyLogSlowRequestThreshold = "server.log.slowRequestThreshold"
	cfgKeyTrustedProxies          = "server.trustedProxies"
)

// Default values.
const (
	DefaultAddress              = ":8080"
	DefaultTimeoutsWrite        = time.Minute
	DefaultTimeoutsRead         = 15 * time.Second
	DefaultTimeoutsReadHeader   = 10 * time.Second
	DefaultTimeoutsIdle         = time.Minute
	DefaultTimeoutsShutdown     = 5 * time.Second
	DefaultLimitsMaxRequests    = 1000
	DefaultLimitsMaxBodySize    = "1M"
	DefaultSlowRequestThreshold = time.Second
)

// Config represents a set of configuration parameters for HTTPServer.
type Config struct {
	Address  string
	TLS      TLSConfig
	Timeouts TimeoutsConfig
	Limits   LimitsConfig
	Log      LogConfig
	// TrustedProxies lists addresses or CIDR ranges of reverse proxies whose
	// X-Forwarded-For and X-Real-IP headers identify the client.
	TrustedProxies []string

	keyPrefix string
}

// TimeoutsConfig configures http.Server timeouts and the graceful shutdown timeout.
type TimeoutsConfig struct {
	Write      time.Duration
	Read       time.Duration
	ReadHeader time.Duration
	Idle       time.Duration
	Shutdown   time.Duration
}

// LimitsConfig configures request limits. Zero MaxRequests disables the in-flight limit.
type LimitsConfig struct {
	MaxRequests      int
	MaxBodySizeBytes uint64
}

// LogConfig configures request logging.
type LogConfig struct {
	RequestStart         bool
	ExcludedEndpoints    []string
	SecretQueryParams    []string
	SlowRequestThreshold time.Duration
}

// TLSConfig configures serving over TLS.
type TLSConfig struct {
	Enabled     bool
	Certificate string
	Key         string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return NewConfigWithKeyPrefix("")
}

// NewConfigWithKeyPrefix creates a new instance of the Config with the key prefix.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for HTTPServer in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyAddress, DefaultAddress)
	dp.SetDefault(cfgKeyTimeoutsWrite, DefaultTimeoutsWrite.String())
	dp.SetDefault(cfgKeyTimeoutsRead, DefaultTimeoutsRead.String())
	dp.SetDefault(cfgKeyTimeoutsReadHeader, DefaultTimeoutsReadHeader.String())
	dp.SetDefault(cfgKeyTimeoutsIdle, DefaultTimeoutsIdle.String())
	dp.SetDefault(cfgKeyTimeoutsShutdown, DefaultTimeoutsShutdown.String())
	dp.SetDefault(cfgKeyLimitsMaxRequests, DefaultLimitsMaxRequests)
	dp.SetDefault(cfgKeyLimitsMaxBodySize, DefaultLimitsMaxBodySize)
	dp.SetDefault(cfgKeyLogExcludedEndpoints, []string{"/healthz", "/metrics"})
	dp.SetDefault(cfgKeyLogSlowRequestThreshold, DefaultSlowRequestThreshold.String())
}

// Set sets HTTPServer configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.Address, err = dp.GetString(cfgKeyAddress); err != nil {
		return err
	}
	if c.Address == "" {
		return dp.WrapKeyErr(cfgKeyAddress, fmt.Errorf("cannot be empty"))
	}
	if c.TrustedProxies, err = dp.GetStringSlice(cfgKeyTrustedProxies); err != nil {
		return err
	}
	if _, err = middleware.NewClientIPResolver(c.TrustedProxies); err != nil {
		return dp.WrapKeyErr(cfgKeyTrustedProxies, err)
	}
	if err = c.setTLS(dp); err != nil {
		return err
	}
	if err = c.setTimeouts(dp); err != nil {
		return err
	}
	if err = c.setLimits(dp); err != nil {
		return err
	}
	return c.setLog(dp)
}

func (c *Config) setTLS(dp config.DataProvider) error {
	var err error
	if c.TLS.Enabled, err = dp.GetBool(cfgKeyTLSEnabled); err != nil {
		return err
	}
	if c.TLS.Certificate, err = dp.GetString(cfgKeyTLSCert); err != nil {
		return err
	}
	if c.TLS.Key, err = dp.GetString(cfgKeyTLSKey); err != nil {
		return err
	}
	if c.TLS.Enabled && (c.TLS.Certificate == "" || c.TLS.Key == "") {
		return dp.WrapKeyErr(cfgKeyTLSKey, fmt.Errorf("both cert and key should be set"))
	}
	return nil
}

func (c *Config) setTimeouts(dp config.DataProvider) error {
	for _, t := range []struct {
		key string
		dst *time.Duration
	}{
		{cfgKeyTimeoutsWrite, &c.Timeouts.Write},
		{cfgKeyTimeoutsRead, &c.Timeouts.Read},
		{cfgKeyTimeoutsReadHeader, &c.Timeouts.ReadHeader},
		{cfgKeyTimeoutsIdle, &c.Timeouts.Idle},
		{cfgKeyTimeoutsShutdown, &c.Timeouts.Shutdown},
	} {
		dur, err := dp.GetDuration(t.key)
		if err != nil {
			return err
		}
		if dur < 0 {
			return dp.WrapKeyErr(t.key, fmt.Errorf("must not be negative"))
		}
		*t.dst = dur
	}
	return nil
}

func (c *Config) setLimits(dp config.DataProvider) error {
	var err error
	if c.Limits.MaxRequests, err = dp.GetInt(cfgKeyLimitsMaxRequests); err != nil {
		return err
	}
	if c.Limits.MaxRequests < 0 {
		return dp.WrapKeyErr(cfgKeyLimitsMaxRequests, fmt.Errorf("must not be negative"))
	}
	if c.Limits.MaxBodySizeBytes, err = dp.GetSizeInBytes(cfgKeyLimitsMaxBodySize); err != nil {
		return err
	}
	if c.Limits.MaxBodySizeBytes > 0 && c.Limits.MaxBodySizeBytes < bytefmt.KILOBYTE {
		return dp.WrapKeyErr(cfgKeyLimitsMaxBodySize, fmt.Errorf("should be >= %s or 0", bytefmt.ByteSize(bytefmt.KILOBYTE)))
	}
	return nil
}

func (c *Config) setLog(dp config.DataProvider) error {
	var err error
	if c.Log.RequestStart, err = dp.GetBool(cfgKeyLogRequestStart); err != nil {
		return err
	}
	if c.Log.ExcludedEndpoints, err = dp.GetStringSlice(cfgKeyLogExcludedEndpoints); err != nil {
		return err
	}
	if c.Log.SecretQueryParams, err = dp.GetStringSlice(cfgKeyLogSecretQueryParams); err != nil {
		return err
	}
	if c.Log.SlowRequestThreshold, err = dp.GetDuration(cfgKeyLogSlowRequestThreshold); err != nil {
		return err
	}
	return nil
}
