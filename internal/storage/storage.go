/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ssiautomations/website/log"
	"github.com/ssiautomations/website/retry"
)

// Database is an opened gorm connection pool.
type Database struct {
	DB *gorm.DB
}

// Open connects to the database configured by cfg.
// The initial connection is retried with exponential backoff, so the site may start before the database is ready.
func Open(ctx context.Context, cfg *Config, logger log.FieldLogger) (*Database, error) {
	dialector, err := newDialector(cfg)
	if err != nil {
		return nil, err
	}
	gormCfg := &gorm.Config{
		Logger:         newGormLogger(logger, cfg.Log),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}

	policy := retry.ExponentialBackoffPolicy{
		InitialInterval: cfg.Connect.InitialInterval,
		MaxInterval:     cfg.Connect.MaxInterval,
		MaxAttempts:     cfg.Connect.MaxAttempts,
	}
	var db *gorm.DB
	err = retry.DoWithRetry(ctx, policy, retry.NotCanceled, retry.LogNotify(logger, "database connect"),
		func(ctx context.Context) error {
			var openErr error
			if db, openErr = gorm.Open(dialector, gormCfg); openErr != nil {
				return openErr
			}
			sqlDB, dbErr := db.DB()
			if dbErr != nil {
				return dbErr
			}
			if pingErr := sqlDB.PingContext(ctx); pingErr != nil {
				_ = sqlDB.Close()
				return pingErr
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("connect to %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	logger.Info("database connected", log.String("driver", string(cfg.Driver)))
	return &Database{DB: db}, nil
}

func newDialector(cfg *Config) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	case DriverSQLite:
		return sqlite.Open(cfg.DSN), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// Ping verifies the connection is alive.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate creates or updates tables for the models.
func (d *Database) AutoMigrate(models ...interface{}) error {
	return d.DB.AutoMigrate(models...)
}

// Close closes the connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsUniqueViolation reports whether err is caused by a unique constraint.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Older sqlite drivers are not translated by gorm.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
