/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package blog

import (
	"fmt"
	"time"

	"github.com/ssiautomations/website/config"
)

const (
	cfgKeyDir             = "blog.dir"
	cfgKeyCacheTTL        = "blog.cache.ttl"
	cfgKeyCacheMaxEntries = "blog.cache.maxEntries"
	cfgKeyFeaturedCount   = "blog.featuredCount"
)

// Default values.
const (
	DefaultDir             = "content/blog"
	DefaultCacheTTL        = time.Hour
	DefaultCacheMaxEntries = 256
	DefaultFeaturedCount   = 3
)

// Config represents a set of configuration parameters for the blog.
type Config struct {
	Dir string
	// CacheTTL is how long a parsed post is served from memory. Zero disables caching.
	CacheTTL        time.Duration
	CacheMaxEntries int
	FeaturedCount   int

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
	dp.SetDefault(cfgKeyDir, DefaultDir)
	dp.SetDefault(cfgKeyCacheTTL, DefaultCacheTTL.String())
	dp.SetDefault(cfgKeyCacheMaxEntries, DefaultCacheMaxEntries)
	dp.SetDefault(cfgKeyFeaturedCount, DefaultFeaturedCount)
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.Dir, err = dp.GetString(cfgKeyDir); err != nil {
		return err
	}
	if c.Dir == "" {
		return dp.WrapKeyErr(cfgKeyDir, fmt.Errorf("cannot be empty"))
	}
	if c.CacheTTL, err = dp.GetDuration(cfgKeyCacheTTL); err != nil {
		return err
	}
	if c.CacheTTL < 0 {
		return dp.WrapKeyErr(cfgKeyCacheTTL, fmt.Errorf("cannot be negative"))
	}
	if c.CacheMaxEntries, err = dp.GetInt(cfgKeyCacheMaxEntries); err != nil {
		return err
	}
	if c.CacheMaxEntries <= 0 {
		return dp.WrapKeyErr(cfgKeyCacheMaxEntries, fmt.Errorf("must be positive"))
	}
	if c.FeaturedCount, err = dp.GetInt(cfgKeyFeaturedCount); err != nil {
		return err
	}
	if c.FeaturedCount <= 0 {
		return dp.WrapKeyErr(cfgKeyFeaturedCount, fmt.Errorf("must be positive"))
	}
	return nil
}
