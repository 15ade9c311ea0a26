/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type mailSectionConfig struct {
	Host       string
	Port       int
	Timeout    time.Duration
	Recipients []string
	MaxSize    uint64

	keyPrefix string
}

func (c *mailSectionConfig) KeyPrefix() string { return c.keyPrefix }

func (c *mailSectionConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("mail.host", "localhost")
	dp.SetDefault("mail.port", 25)
	dp.SetDefault("mail.timeout", "10s")
	dp.SetDefault("mail.recipients", []string{})
	dp.SetDefault("mail.maxSize", "1M")
}

func (c *mailSectionConfig) Set(dp DataProvider) error {
	var err error
	if c.Host, err = dp.GetString("mail.host"); err != nil {
		return err
	}
	if c.Port, err = dp.GetInt("mail.port"); err != nil {
		return err
	}
	if c.Port <= 0 {
		return dp.WrapKeyErr("mail.port", errors.New("must be positive"))
	}
	if c.Timeout, err = dp.GetDuration("mail.timeout"); err != nil {
		return err
	}
	if c.Recipients, err = dp.GetStringSlice("mail.recipients"); err != nil {
		return err
	}
	if c.MaxSize, err = dp.GetSizeInBytes("mail.maxSize"); err != nil {
		return err
	}
	return nil
}

type appConfig struct {
	Mail     *mailSectionConfig
	Fallback *mailSectionConfig
	Skipped  *mailSectionConfig
}

func (c *appConfig) SetProviderDefaults(dp DataProvider) {
	CallSetProviderDefaultsForFields(c, dp)
}

func (c *appConfig) Set(dp DataProvider) error {
	return CallSetForFields(c, dp)
}

func TestLoader_LoadFromReader(t *testing.T) {
	cfgData := `
mail:
  host: smtp.example.com
  port: 587
  recipients: [hello@ssiautomations.com, sales@ssiautomations.com]
backup:
  mail:
    port: 2525
    maxSize: 512K
`
	cfg := &appConfig{
		Mail:     &mailSectionConfig{},
		Fallback: &mailSectionConfig{keyPrefix: "backup"},
	}
	err := NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(cfgData), DataTypeYAML, cfg)
	require.NoError(t, err)

	require.Equal(t, "smtp.example.com", cfg.Mail.Host)
	require.Equal(t, 587, cfg.Mail.Port)
	require.Equal(t, 10*time.Second, cfg.Mail.Timeout)
	require.Equal(t, []string{"hello@ssiautomations.com", "sales@ssiautomations.com"}, cfg.Mail.Recipients)
	require.Equal(t, uint64(1024*1024), cfg.Mail.MaxSize)

	require.Equal(t, "localhost", cfg.Fallback.Host)
	require.Equal(t, 2525, cfg.Fallback.Port)
	require.Equal(t, uint64(512*1024), cfg.Fallback.MaxSize)
	require.Nil(t, cfg.Skipped)
}

func TestLoader_KeyPrefixedErrors(t *testing.T) {
	cfg := &appConfig{Fallback: &mailSectionConfig{keyPrefix: "backup"}}
	err := NewLoader(NewViperAdapter()).LoadFromReader(
		bytes.NewBufferString("backup:\n  mail:\n    port: 0\n"), DataTypeYAML, cfg)
	require.EqualError(t, err, "backup.mail.port: must be positive")
}

func TestLoader_EnvVars(t *testing.T) {
	t.Setenv("WEBSITETEST_MAIL_HOST", "smtp.env.example.com")
	t.Setenv("WEBSITETEST_MAIL_RECIPIENTS", "a@example.com, b@example.com")

	cfg := &mailSectionConfig{}
	err := NewDefaultLoader("websitetest").LoadFromOptionalFile(filepath.Join(t.TempDir(), "missing.yml"), cfg)
	require.NoError(t, err)
	require.Equal(t, "smtp.env.example.com", cfg.Host)
	require.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Recipients)
	require.Equal(t, 25, cfg.Port)
}

func TestLoader_LoadFromOptionalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mail": {"port": 465, "timeout": "3s"}}`), 0o600))

	cfg := &mailSectionConfig{}
	require.NoError(t, NewLoader(NewViperAdapter()).LoadFromOptionalFile(path, cfg))
	require.Equal(t, 465, cfg.Port)
	require.Equal(t, 3*time.Second, cfg.Timeout)
}

func TestViperAdapter_GetStringFromSet(t *testing.T) {
	va := NewViperAdapter()
	va.Set("mail.provider", "SMTP")

	val, err := va.GetStringFromSet("mail.provider", []string{"smtp", "api"}, true)
	require.NoError(t, err)
	require.Equal(t, "smtp", val)

	_, err = va.GetStringFromSet("mail.provider", []string{"smtp", "api"}, false)
	require.EqualError(t, err, `mail.provider: unknown value "SMTP", should be one of [smtp api]`)
}

func TestDataTypeFromPath(t *testing.T) {
	require.Equal(t, DataTypeJSON, DataTypeFromPath("/etc/website/config.JSON"))
	require.Equal(t, DataTypeYAML, DataTypeFromPath("config.yml"))
	require.Equal(t, DataTypeYAML, DataTypeFromPath("config"))
}
