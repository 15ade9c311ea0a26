/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package site

import (
	"fmt"

	"github.com/ssiautomations/website/config"
	"github.com/ssiautomations/website/httpclient"
	"github.com/ssiautomations/website/httpserver"
	"github.com/ssiautomations/website/internal/auth"
	"github.com/ssiautomations/website/internal/blog"
	"github.com/ssiautomations/website/internal/contact"
	"github.com/ssiautomations/website/internal/mailer"
	"github.com/ssiautomations/website/internal/newsletter"
	"github.com/ssiautomations/website/internal/storage"
	"github.com/ssiautomations/website/internal/throttle"
	"github.com/ssiautomations/website/log"
	"github.com/ssiautomations/website/profserver"
	"github.com/ssiautomations/website/ratelimit"
)

const (
	cfgKeyStaticDir        = "site.staticDir"
	cfgKeyMetricsNamespace = "site.metricsNamespace"
	cfgKeyUserAgent        = "site.userAgent"
)

// Default values.
const (
	DefaultStaticDir        = "public"
	DefaultMetricsNamespace = "website"
	DefaultUserAgent        = "ssiautomations-website"
)

// Config aggregates configuration of all website components.
type Config struct {
	Site       *StaticConfig
	Server     *httpserver.Config
	Log        *log.Config
	RateLimit  *ratelimit.Config
	Throttle   *throttle.Config
	Blog       *blog.Config
	Mail       *mailer.Config
	Database   *storage.Config
	Auth       *auth.Config
	Contact    *contact.Config
	Newsletter *newsletter.Config
	ProfServer *profserver.Config
	HTTPClient *httpclient.Config
}

var _ config.Config = (*Config)(nil)

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return &Config{
		Site:       NewStaticConfig(),
		Server:     httpserver.NewConfig(),
		Log:        log.NewConfig(),
		RateLimit:  ratelimit.NewConfig(),
		Throttle:   throttle.NewConfig(),
		Blog:       blog.NewConfig(),
		Mail:       mailer.NewConfig(),
		Database:   storage.NewConfig(),
		Auth:       auth.NewConfig(),
		Contact:    contact.NewConfig(),
		Newsletter: newsletter.NewConfig(),
		ProfServer: profserver.NewConfig(),
		HTTPClient: httpclient.NewConfig(),
	}
}

// SetProviderDefaults sets default configuration values of all components.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	config.CallSetProviderDefaultsForFields(c, dp)
}

// Set sets configuration values of all components.
func (c *Config) Set(dp config.DataProvider) error {
	return config.CallSetForFields(c, dp)
}

// StaticConfig configures site-wide parameters.
type StaticConfig struct {
	// StaticDir holds the exported pages and assets.
	StaticDir        string
	MetricsNamespace string
	// UserAgent is sent by outgoing HTTP clients.
	UserAgent string

	keyPrefix string
}

var _ config.Config = (*StaticConfig)(nil)
var _ config.KeyPrefixProvider = (*StaticConfig)(nil)

// NewStaticConfig creates a new instance of the StaticConfig.
func NewStaticConfig() *StaticConfig {
	return NewStaticConfigWithKeyPrefix("")
}

// NewStaticConfigWithKeyPrefix creates a new instance of the StaticConfig with the key prefix.
func NewStaticConfigWithKeyPrefix(keyPrefix string) *StaticConfig {
	return &StaticConfig{keyPrefix: keyPrefix}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *StaticConfig) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *StaticConfig) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyStaticDir, DefaultStaticDir)
	dp.SetDefault(cfgKeyMetricsNamespace, DefaultMetricsNamespace)
	dp.SetDefault(cfgKeyUserAgent, DefaultUserAgent)
}

// Set sets configuration values from config.DataProvider.
func (c *StaticConfig) Set(dp config.DataProvider) error {
	var err error
	if c.StaticDir, err = dp.GetString(cfgKeyStaticDir); err != nil {
		return err
	}
	if c.StaticDir == "" {
		return dp.WrapKeyErr(cfgKeyStaticDir, fmt.Errorf("cannot be empty"))
	}
	if c.MetricsNamespace, err = dp.GetString(cfgKeyMetricsNamespace); err != nil {
		return err
	}
	if c.UserAgent, err = dp.GetString(cfgKeyUserAgent); err != nil {
		return err
	}
	return nil
}
