/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"fmt"
	"time"

	"github.com/ssiautomations/website/config"
	"github.com/ssiautomations/website/retry"
)

const (
	cfgKeyTimeout                 = "httpClient.timeout"
	cfgKeyRetriesEnabled          = "httpClient.retries.enabled"
	cfgKeyRetriesMaxAttempts      = "httpClient.retries.maxAttempts"
	cfgKeyRetriesPolicy           = "httpClient.retries.policy"
	cfgKeyRetriesInitialInterval  = "httpClient.retries.initialInterval"
	cfgKeyRetriesMaxInterval      = "httpClient.retries.maxInterval"
	cfgKeyRateLimitsEnabled       = "httpClient.rateLimits.enabled"
	cfgKeyRateLimitsLimit         = "httpClient.rateLimits.limit"
	cfgKeyRateLimitsBurst         = "httpClient.rateLimits.burst"
	cfgKeyRateLimitsWaitTimeout   = "httpClient.rateLimits.waitTimeout"
	cfgKeyLogMode                 = "httpClient.log.mode"
	cfgKeyLogSlowRequestThreshold = "httpClient.log.slowRequestThreshold"
	cfgKeyMetricsEnabled          = "httpClient.metrics.enabled"
)

// Retry policies.
const (
	RetryPolicyExponential = "exponential"
	RetryPolicyConstant    = "constant"
)

// DefaultTimeout bounds the whole exchange including retries.
const DefaultTimeout = 30 * time.Second

// Config represents options of outgoing HTTP clients (email API, auth provider).
type Config struct {
	Timeout    time.Duration
	Retries    RetriesConfig
	RateLimits RateLimitsConfig
	Log        LogConfig
	Metrics    MetricsConfig

	keyPrefix string
}

// RetriesConfig configures RetryableRoundTripper.
type RetriesConfig struct {
	Enabled         bool
	MaxAttempts     int
	Policy          string
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// BackoffPolicy returns the configured retry policy.
func (c *RetriesConfig) BackoffPolicy() retry.Policy {
	if c.Policy == RetryPolicyConstant {
		return retry.NewConstantBackoffPolicy(c.InitialInterval, 0)
	}
	return retry.ExponentialBackoffPolicy{InitialInterval: c.InitialInterval, MaxInterval: c.MaxInterval}
}

// RateLimitsConfig configures RateLimitingRoundTripper.
type RateLimitsConfig struct {
	Enabled     bool
	Limit       int
	Burst       int
	WaitTimeout time.Duration
}

// LogConfig configures LoggingRoundTripper.
type LogConfig struct {
	Mode                 LoggingMode
	SlowRequestThreshold time.Duration
}

// MetricsConfig configures MetricsRoundTripper.
type MetricsConfig struct {
	Enabled bool
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

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyTimeout, DefaultTimeout.String())
	dp.SetDefault(cfgKeyRetriesEnabled, true)
	dp.SetDefault(cfgKeyRetriesMaxAttempts, DefaultMaxRetryAttempts)
	dp.SetDefault(cfgKeyRetriesPolicy, RetryPolicyExponential)
	dp.SetDefault(cfgKeyRetriesInitialInterval, DefaultRetryInitialDelay.String())
	dp.SetDefault(cfgKeyRetriesMaxInterval, "5s")
	dp.SetDefault(cfgKeyRateLimitsEnabled, false)
	dp.SetDefault(cfgKeyRateLimitsLimit, 10)
	dp.SetDefault(cfgKeyRateLimitsBurst, DefaultRateLimitingBurst)
	dp.SetDefault(cfgKeyRateLimitsWaitTimeout, DefaultRateLimitingWaitTimeout.String())
	dp.SetDefault(cfgKeyLogMode, string(LoggingModeAll))
	dp.SetDefault(cfgKeyLogSlowRequestThreshold, "2s")
	dp.SetDefault(cfgKeyMetricsEnabled, true)
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.Timeout, err = dp.GetDuration(cfgKeyTimeout); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return dp.WrapKeyErr(cfgKeyTimeout, fmt.Errorf("must not be negative"))
	}
	if err = c.setRetries(dp); err != nil {
		return err
	}
	if err = c.setRateLimits(dp); err != nil {
		return err
	}

	mode, err := dp.GetStringFromSet(cfgKeyLogMode,
		[]string{string(LoggingModeNone), string(LoggingModeAll), string(LoggingModeFailed)}, true)
	if err != nil {
		return err
	}
	c.Log.Mode = LoggingMode(mode)
	if c.Log.SlowRequestThreshold, err = dp.GetDuration(cfgKeyLogSlowRequestThreshold); err != nil {
		return err
	}

	c.Metrics.Enabled, err = dp.GetBool(cfgKeyMetricsEnabled)
	return err
}

func (c *Config) setRetries(dp config.DataProvider) error {
	var err error
	if c.Retries.Enabled, err = dp.GetBool(cfgKeyRetriesEnabled); err != nil || !c.Retries.Enabled {
		return err
	}
	if c.Retries.MaxAttempts, err = dp.GetInt(cfgKeyRetriesMaxAttempts); err != nil {
		return err
	}
	if c.Retries.MaxAttempts <= 0 {
		return dp.WrapKeyErr(cfgKeyRetriesMaxAttempts, fmt.Errorf("must be positive"))
	}
	if c.Retries.Policy, err = dp.GetStringFromSet(cfgKeyRetriesPolicy,
		[]string{RetryPolicyExponential, RetryPolicyConstant}, true); err != nil {
		return err
	}
	if c.Retries.InitialInterval, err = dp.GetDuration(cfgKeyRetriesInitialInterval); err != nil {
		return err
	}
	if c.Retries.InitialInterval <= 0 {
		return dp.WrapKeyErr(cfgKeyRetriesInitialInterval, fmt.Errorf("must be positive"))
	}
	c.Retries.MaxInterval, err = dp.GetDuration(cfgKeyRetriesMaxInterval)
	return err
}

func (c *Config) setRateLimits(dp config.DataProvider) error {
	var err error
	if c.RateLimits.Enabled, err = dp.GetBool(cfgKeyRateLimitsEnabled); err != nil || !c.RateLimits.Enabled {
		return err
	}
	if c.RateLimits.Limit, err = dp.GetInt(cfgKeyRateLimitsLimit); err != nil {
		return err
	}
	if c.RateLimits.Limit <= 0 {
		return dp.WrapKeyErr(cfgKeyRateLimitsLimit, fmt.Errorf("must be positive"))
	}
	if c.RateLimits.Burst, err = dp.GetInt(cfgKeyRateLimitsBurst); err != nil {
		return err
	}
	if c.RateLimits.Burst < 0 {
		return dp.WrapKeyErr(cfgKeyRateLimitsBurst, fmt.Errorf("must not be negative"))
	}
	c.RateLimits.WaitTimeout, err = dp.GetDuration(cfgKeyRateLimitsWaitTimeout)
	return err
}
