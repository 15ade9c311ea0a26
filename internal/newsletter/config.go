/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package newsletter

import (
	"fmt"
	"time"

	"github.com/ssiautomations/website/config"
)

const (
	cfgKeyLimit            = "newsletter.limit"
	cfgKeyWelcomeEnabled   = "newsletter.welcome.enabled"
	cfgKeyWelcomeInterval  = "newsletter.welcome.interval"
	cfgKeyWelcomeBatchSize = "newsletter.welcome.batchSize"
	cfgKeyWelcomeSubject   = "newsletter.welcome.subject"
)

// Default values.
const (
	DefaultLimit            = 2
	DefaultWelcomeInterval  = time.Hour
	DefaultWelcomeBatchSize = 50
	DefaultWelcomeSubject   = "Welcome to the SSI Automations newsletter"
)

// Config represents a set of configuration parameters for newsletter signups.
type Config struct {
	// Limit is the attempts quota per caller within the rate limit window.
	// An attempt is rejected once the count reaches Limit, so 2 admits one signup per window.
	Limit   int
	Welcome WelcomeConfig

	keyPrefix string
}

// WelcomeConfig configures the welcome email worker.
type WelcomeConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
	Subject   string
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
	dp.SetDefault(cfgKeyLimit, DefaultLimit)
	dp.SetDefault(cfgKeyWelcomeEnabled, true)
	dp.SetDefault(cfgKeyWelcomeInterval, DefaultWelcomeInterval.String())
	dp.SetDefault(cfgKeyWelcomeBatchSize, DefaultWelcomeBatchSize)
	dp.SetDefault(cfgKeyWelcomeSubject, DefaultWelcomeSubject)
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.Limit, err = dp.GetInt(cfgKeyLimit); err != nil {
		return err
	}
	if c.Limit <= 0 {
		return dp.WrapKeyErr(cfgKeyLimit, fmt.Errorf("must be positive"))
	}
	if c.Welcome.Enabled, err = dp.GetBool(cfgKeyWelcomeEnabled); err != nil {
		return err
	}
	if c.Welcome.Interval, err = dp.GetDuration(cfgKeyWelcomeInterval); err != nil {
		return err
	}
	if c.Welcome.Interval <= 0 {
		return dp.WrapKeyErr(cfgKeyWelcomeInterval, fmt.Errorf("must be positive"))
	}
	if c.Welcome.BatchSize, err = dp.GetInt(cfgKeyWelcomeBatchSize); err != nil {
		return err
	}
	if c.Welcome.BatchSize <= 0 {
		return dp.WrapKeyErr(cfgKeyWelcomeBatchSize, fmt.Errorf("must be positive"))
	}
	if c.Welcome.Subject, err = dp.GetString(cfgKeyWelcomeSubject); err != nil {
		return err
	}
	return nil
}
