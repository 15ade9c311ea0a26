/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package auth

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ssiautomations/website/config"
)

const (
	cfgKeyEnabled        = "auth.enabled"
	cfgKeyURL            = "auth.url"
	cfgKeyAPIKey         = "auth.apiKey"
	cfgKeyJWTSecret      = "auth.jwtSecret" // nolint:gosec
	cfgKeyOTPLimit       = "auth.otpLimit"
	cfgKeyTermsStatement = "auth.web3.termsStatement"
	cfgKeyLoginPath      = "auth.loginPath"
	cfgKeyCookiesSecure  = "auth.cookies.secure"
	cfgKeyCookiesDomain  = "auth.cookies.domain"
	cfgKeyCookiesMaxAge  = "auth.cookies.maxAge"
)

// Default values.
const (
	DefaultOTPLimit       = 3
	DefaultTermsStatement = "I accept the SSI Automations Terms of Service at https://www.ssiautomations.com/terms"
	DefaultLoginPath      = "/login"
	DefaultCookiesMaxAge  = 30 * 24 * time.Hour
)

// Config represents a set of configuration parameters for sign-in.
type Config struct {
	Enabled bool
	// URL is the base URL of the GoTrue compatible auth provider, e.g. https://xyz.supabase.co.
	URL       string
	APIKey    string
	JWTSecret string
	// OTPLimit is the attempts quota for one-time code requests within the rate limit window.
	OTPLimit       int
	TermsStatement string
	LoginPath      string
	Cookies        CookiesConfig

	keyPrefix string
}

// CookiesConfig configures session cookies.
type CookiesConfig struct {
	Secure bool
	Domain string
	MaxAge time.Duration
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
	dp.SetDefault(cfgKeyEnabled, false)
	dp.SetDefault(cfgKeyOTPLimit, DefaultOTPLimit)
	dp.SetDefault(cfgKeyTermsStatement, DefaultTermsStatement)
	dp.SetDefault(cfgKeyLoginPath, DefaultLoginPath)
	dp.SetDefault(cfgKeyCookiesSecure, true)
	dp.SetDefault(cfgKeyCookiesMaxAge, DefaultCookiesMaxAge.String())
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.Enabled, err = dp.GetBool(cfgKeyEnabled); err != nil {
		return err
	}
	if c.OTPLimit, err = dp.GetInt(cfgKeyOTPLimit); err != nil {
		return err
	}
	if c.OTPLimit <= 0 {
		return dp.WrapKeyErr(cfgKeyOTPLimit, fmt.Errorf("must be positive"))
	}
	if c.TermsStatement, err = dp.GetString(cfgKeyTermsStatement); err != nil {
		return err
	}
	if c.LoginPath, err = dp.GetString(cfgKeyLoginPath); err != nil {
		return err
	}
	if c.Cookies.Secure, err = dp.GetBool(cfgKeyCookiesSecure); err != nil {
		return err
	}
	if c.Cookies.Domain, err = dp.GetString(cfgKeyCookiesDomain); err != nil {
		return err
	}
	if c.Cookies.MaxAge, err = dp.GetDuration(cfgKeyCookiesMaxAge); err != nil {
		return err
	}
	if c.Cookies.MaxAge <= 0 {
		return dp.WrapKeyErr(cfgKeyCookiesMaxAge, fmt.Errorf("must be positive"))
	}

	if c.URL, err = dp.GetString(cfgKeyURL); err != nil {
		return err
	}
	if c.APIKey, err = dp.GetString(cfgKeyAPIKey); err != nil {
		return err
	}
	if c.JWTSecret, err = dp.GetString(cfgKeyJWTSecret); err != nil {
		return err
	}
	if !c.Enabled {
		return nil
	}
	if u, parseErr := url.Parse(c.URL); parseErr != nil || u.Scheme == "" || u.Host == "" {
		return dp.WrapKeyErr(cfgKeyURL, fmt.Errorf("must be an absolute URL"))
	}
	if c.APIKey == "" {
		return dp.WrapKeyErr(cfgKeyAPIKey, fmt.Errorf("cannot be empty"))
	}
	if len(c.JWTSecret) < 32 {
		return dp.WrapKeyErr(cfgKeyJWTSecret, fmt.Errorf("must be at least 32 characters"))
	}
	// Every wallet message contains the empty string.
	if strings.TrimSpace(c.TermsStatement) == "" {
		return dp.WrapKeyErr(cfgKeyTermsStatement, fmt.Errorf("cannot be empty"))
	}
	return nil
}
