/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package throttle

import (
	"fmt"

	"github.com/ssiautomations/website/config"
)

const (
	cfgKeyEnabled = "throttle.enabled"
	cfgKeyAlg     = "throttle.alg"
	cfgKeyRate    = "throttle.rate"
	cfgKeyBurst   = "throttle.burst"
	cfgKeyMaxKeys = "throttle.maxKeys"
)

// Alg is a throttling algorithm.
type Alg string

// Throttling algorithms.
const (
	AlgLeakyBucket   Alg = "leakyBucket"
	AlgSlidingWindow Alg = "slidingWindow"
)

// Default values.
const (
	DefaultRate    = "60/m"
	DefaultBurst   = 20
	DefaultMaxKeys = 10000
)

// Config configures API throttling.
type Config struct {
	Enabled bool
	Alg     Alg
	Rate    Rate
	Burst   int
	MaxKeys int

	keyPrefix string
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
	dp.SetDefault(cfgKeyEnabled, true)
	dp.SetDefault(cfgKeyAlg, string(AlgLeakyBucket))
	dp.SetDefault(cfgKeyRate, DefaultRate)
	dp.SetDefault(cfgKeyBurst, DefaultBurst)
	dp.SetDefault(cfgKeyMaxKeys, DefaultMaxKeys)
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.Enabled, err = dp.GetBool(cfgKeyEnabled); err != nil {
		return err
	}

	alg, err := dp.GetStringFromSet(cfgKeyAlg, []string{string(AlgLeakyBucket), string(AlgSlidingWindow)}, true)
	if err != nil {
		return err
	}
	c.Alg = Alg(alg)

	rateStr, err := dp.GetString(cfgKeyRate)
	if err != nil {
		return err
	}
	if c.Rate, err = ParseRate(rateStr); err != nil {
		return dp.WrapKeyErr(cfgKeyRate, err)
	}

	if c.Burst, err = dp.GetInt(cfgKeyBurst); err != nil {
		return err
	}
	if c.Burst < 0 {
		return dp.WrapKeyErr(cfgKeyBurst, fmt.Errorf("must not be negative"))
	}

	if c.MaxKeys, err = dp.GetInt(cfgKeyMaxKeys); err != nil {
		return err
	}
	if c.MaxKeys <= 0 {
		return dp.WrapKeyErr(cfgKeyMaxKeys, fmt.Errorf("must be positive"))
	}
	return nil
}
