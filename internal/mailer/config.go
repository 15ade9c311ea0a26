/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package mailer

import (
	"fmt"
	"net/mail"
	"time"

	"github.com/ssiautomations/website/config"
)

const (
	cfgKeyProvider     = "mail.provider"
	cfgKeyFrom         = "mail.from"
	cfgKeyRecipient    = "mail.recipient"
	cfgKeySMTPHost     = "mail.smtp.host"
	cfgKeySMTPPort     = "mail.smtp.port"
	cfgKeySMTPTLS      = "mail.smtp.tls"
	cfgKeySMTPUsername = "mail.smtp.username"
	cfgKeySMTPPassword = "mail.smtp.password" // nolint:gosec
	cfgKeySMTPTimeout  = "mail.smtp.timeout"
	cfgKeyAPIURL       = "mail.api.url"
	cfgKeyAPIKey       = "mail.api.apiKey"
)

// Mail providers.
const (
	ProviderSMTP = "smtp"
	ProviderAPI  = "api"
	ProviderLog  = "log"
)

// TLSMode selects how the SMTP connection is secured.
type TLSMode string

// SMTP TLS modes.
const (
	TLSModeNone     TLSMode = "none"
	TLSModeStartTLS TLSMode = "starttls"
	TLSModeImplicit TLSMode = "implicit"
)

// Config represents a set of configuration parameters for sending mail.
type Config struct {
	Provider string
	// From is the sender of all site emails, e.g. "SSI Automations <hello@ssiautomations.com>".
	From string
	// Recipient receives contact form submissions.
	Recipient string
	SMTP      SMTPConfig
	API       APIConfig

	keyPrefix string
}

// SMTPConfig configures SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	TLS      TLSMode
	Username string
	Password string
	Timeout  time.Duration
}

// APIConfig configures APIMailer.
type APIConfig struct {
	URL    string
	APIKey string
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
	dp.SetDefault(cfgKeyProvider, ProviderLog)
	dp.SetDefault(cfgKeyFrom, "SSI Automations <no-reply@ssiautomations.com>")
	dp.SetDefault(cfgKeySMTPPort, 587)
	dp.SetDefault(cfgKeySMTPTLS, string(TLSModeStartTLS))
	dp.SetDefault(cfgKeySMTPTimeout, "10s")
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.Provider, err = dp.GetStringFromSet(cfgKeyProvider, []string{ProviderSMTP, ProviderAPI, ProviderLog}, true); err != nil {
		return err
	}
	if c.From, err = dp.GetString(cfgKeyFrom); err != nil {
		return err
	}
	if _, err = mail.ParseAddress(c.From); err != nil {
		return dp.WrapKeyErr(cfgKeyFrom, err)
	}
	if c.Recipient, err = dp.GetString(cfgKeyRecipient); err != nil {
		return err
	}
	if c.Recipient == "" && c.Provider != ProviderLog {
		return dp.WrapKeyErr(cfgKeyRecipient, fmt.Errorf("cannot be empty"))
	}
	if c.Recipient != "" {
		if _, err = mail.ParseAddress(c.Recipient); err != nil {
			return dp.WrapKeyErr(cfgKeyRecipient, err)
		}
	}

	switch c.Provider {
	case ProviderSMTP:
		return c.setSMTP(dp)
	case ProviderAPI:
		return c.setAPI(dp)
	}
	return nil
}

func (c *Config) setSMTP(dp config.DataProvider) error {
	var err error
	if c.SMTP.Host, err = dp.GetString(cfgKeySMTPHost); err != nil {
		return err
	}
	if c.SMTP.Host == "" {
		return dp.WrapKeyErr(cfgKeySMTPHost, fmt.Errorf("cannot be empty"))
	}
	if c.SMTP.Port, err = dp.GetInt(cfgKeySMTPPort); err != nil {
		return err
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return dp.WrapKeyErr(cfgKeySMTPPort, fmt.Errorf("must be in range [1..65535]"))
	}
	tlsMode, err := dp.GetStringFromSet(cfgKeySMTPTLS,
		[]string{string(TLSModeNone), string(TLSModeStartTLS), string(TLSModeImplicit)}, true)
	if err != nil {
		return err
	}
	c.SMTP.TLS = TLSMode(tlsMode)
	if c.SMTP.Username, err = dp.GetString(cfgKeySMTPUsername); err != nil {
		return err
	}
	if c.SMTP.Password, err = dp.GetString(cfgKeySMTPPassword); err != nil {
		return err
	}
	c.SMTP.Timeout, err = dp.GetDuration(cfgKeySMTPTimeout)
	return err
}

func (c *Config) setAPI(dp config.DataProvider) error {
	var err error
	if c.API.URL, err = dp.GetString(cfgKeyAPIURL); err != nil {
		return err
	}
	if c.API.URL == "" {
		return dp.WrapKeyErr(cfgKeyAPIURL, fmt.Errorf("cannot be empty"))
	}
	if c.API.APIKey, err = dp.GetString(cfgKeyAPIKey); err != nil {
		return err
	}
	if c.API.APIKey == "" {
		return dp.WrapKeyErr(cfgKeyAPIKey, fmt.Errorf("cannot be empty"))
	}
	return nil
}
