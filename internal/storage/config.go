/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package storage

import (
	"fmt"
	"time"

	"github.com/ssiautomations/website/config"
)

const (
	cfgKeyDriver                 = "database.driver"
	cfgKeyDSN                    = "database.dsn"
	cfgKeyMaxOpenConns           = "database.maxOpenConns"
	cfgKeyMaxIdleConns           = "database.maxIdleConns"
	cfgKeyConnMaxLifetime        = "database.connMaxLifetime"
	cfgKeyConnectMaxAttempts     = "database.connect.maxAttempts"
	cfgKeyConnectInitialInterval = "database.connect.initialInterval"
	cfgKeyConnectMaxInterval     = "database.connect.maxInterval"
	cfgKeySlowQueryThreshold     = "database.log.slowQueryThreshold"
	cfgKeyLogQueries             = "database.log.queries"
)

// Driver is a supported database driver.
type Driver string

// Supported drivers.
const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Config represents a set of configuration parameters for the database connection.
type Config struct {
	Driver Driver
	// DSN is a postgres connection string or a path to the sqlite database file.
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Connect         ConnectConfig
	Log             LogConfig

	keyPrefix string
}

// ConnectConfig controls retries of the initial connection.
type ConnectConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// LogConfig controls SQL logging.
type LogConfig struct {
	SlowQueryThreshold time.Duration
	// Queries enables debug logging of every statement.
	Queries bool
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
	dp.SetDefault(cfgKeyDriver, string(DriverSQLite))
	dp.SetDefault(cfgKeyDSN, "website.db")
	dp.SetDefault(cfgKeyMaxOpenConns, 10)
	dp.SetDefault(cfgKeyMaxIdleConns, 5)
	dp.SetDefault(cfgKeyConnMaxLifetime, "1h")
	dp.SetDefault(cfgKeyConnectMaxAttempts, 5)
	dp.SetDefault(cfgKeyConnectInitialInterval, "500ms")
	dp.SetDefault(cfgKeyConnectMaxInterval, "10s")
	dp.SetDefault(cfgKeySlowQueryThreshold, "200ms")
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	driver, err := dp.GetStringFromSet(cfgKeyDriver, []string{string(DriverPostgres), string(DriverSQLite)}, true)
	if err != nil {
		return err
	}
	c.Driver = Driver(driver)

	if c.DSN, err = dp.GetString(cfgKeyDSN); err != nil {
		return err
	}
	if c.DSN == "" {
		return dp.WrapKeyErr(cfgKeyDSN, fmt.Errorf("cannot be empty"))
	}
	if c.MaxOpenConns, err = dp.GetInt(cfgKeyMaxOpenConns); err != nil {
		return err
	}
	if c.MaxOpenConns < 0 {
		return dp.WrapKeyErr(cfgKeyMaxOpenConns, fmt.Errorf("cannot be negative"))
	}
	if c.MaxIdleConns, err = dp.GetInt(cfgKeyMaxIdleConns); err != nil {
		return err
	}
	if c.MaxIdleConns < 0 {
		return dp.WrapKeyErr(cfgKeyMaxIdleConns, fmt.Errorf("cannot be negative"))
	}
	if c.ConnMaxLifetime, err = dp.GetDuration(cfgKeyConnMaxLifetime); err != nil {
		return err
	}

	if c.Connect.MaxAttempts, err = dp.GetInt(cfgKeyConnectMaxAttempts); err != nil {
		return err
	}
	if c.Connect.MaxAttempts < 0 {
		return dp.WrapKeyErr(cfgKeyConnectMaxAttempts, fmt.Errorf("cannot be negative"))
	}
	if c.Connect.InitialInterval, err = dp.GetDuration(cfgKeyConnectInitialInterval); err != nil {
		return err
	}
	if c.Connect.InitialInterval <= 0 {
		return dp.WrapKeyErr(cfgKeyConnectInitialInterval, fmt.Errorf("must be positive"))
	}
	if c.Connect.MaxInterval, err = dp.GetDuration(cfgKeyConnectMaxInterval); err != nil {
		return err
	}
	if c.Connect.MaxInterval < c.Connect.InitialInterval {
		return dp.WrapKeyErr(cfgKeyConnectMaxInterval, fmt.Errorf("cannot be less than %s", cfgKeyConnectInitialInterval))
	}

	if c.Log.SlowQueryThreshold, err = dp.GetDuration(cfgKeySlowQueryThreshold); err != nil {
		return err
	}
	if c.Log.Queries, err = dp.GetBool(cfgKeyLogQueries); err != nil {
		return err
	}
	return nil
}
