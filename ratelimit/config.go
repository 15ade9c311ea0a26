/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"fmt"
	"time"

	"github.com/ssiautomations/website/config"
)

const (
	cfgKeyWindow               = "rateLimit.window"
	cfgKeyMaxTrackedIdentities = "rateLimit.maxTrackedIdentities"
	cfgKeyIdentityMode         = "rateLimit.identityMode"
	cfgKeyCleanupInterval      = "rateLimit.cleanupInterval"
)

// Default values.
const (
	DefaultWindow               = time.Minute
	DefaultMaxTrackedIdentities = 500
	DefaultCleanupInterval      = 5 * time.Minute
)

// IdentityMode defines how identities are built for protected actions.
type IdentityMode string

// Identity modes.
const (
	// IdentityModePerCaller keys quotas by action and client address.
	IdentityModePerCaller IdentityMode = "perCaller"
	// IdentityModeGlobal keys quotas by action only, so all callers share them.
	IdentityModeGlobal IdentityMode = "global"
)

// Config represents a set of configuration parameters for the attempts limiter.
type Config struct {
	Window               time.Duration
	MaxTrackedIdentities int
	IdentityMode         IdentityMode
	CleanupInterval      time.Duration

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
	dp.SetDefault(cfgKeyWindow, DefaultWindow.String())
	dp.SetDefault(cfgKeyMaxTrackedIdentities, DefaultMaxTrackedIdentities)
	dp.SetDefault(cfgKeyIdentityMode, string(IdentityModePerCaller))
	dp.SetDefault(cfgKeyCleanupInterval, DefaultCleanupInterval.String())
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Window, err = dp.GetDuration(cfgKeyWindow); err != nil {
		return err
	}
	if c.Window <= 0 {
		return dp.WrapKeyErr(cfgKeyWindow, fmt.Errorf("must be positive"))
	}

	if c.MaxTrackedIdentities, err = dp.GetInt(cfgKeyMaxTrackedIdentities); err != nil {
		return err
	}
	if c.MaxTrackedIdentities <= 0 {
		return dp.WrapKeyErr(cfgKeyMaxTrackedIdentities, fmt.Errorf("must be positive"))
	}

	identityMode, err := dp.GetStringFromSet(cfgKeyIdentityMode,
		[]string{string(IdentityModePerCaller), string(IdentityModeGlobal)}, false)
	if err != nil {
		return err
	}
	c.IdentityMode = IdentityMode(identityMode)

	if c.CleanupInterval, err = dp.GetDuration(cfgKeyCleanupInterval); err != nil {
		return err
	}
	if c.CleanupInterval <= 0 {
		return dp.WrapKeyErr(cfgKeyCleanupInterval, fmt.Errorf("must be positive"))
	}

	return nil
}
