/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ssiautomations/website/httpserver/middleware"
	"github.com/ssiautomations/website/log"
)

// gormLogger routes gorm messages to log.FieldLogger.
// The request-scoped logger from the statement context is preferred, so SQL entries carry request ids.
type gormLogger struct {
	logger        log.FieldLogger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

var _ gormlogger.Interface = (*gormLogger)(nil)

func newGormLogger(logger log.FieldLogger, cfg LogConfig) *gormLogger {
	level := gormlogger.Warn
	if cfg.Queries {
		level = gormlogger.Info
	}
	return &gormLogger{logger: logger, level: level, slowThreshold: cfg.SlowQueryThreshold}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	newLogger := *l
	newLogger.level = level
	return &newLogger
}

func (l *gormLogger) loggerFor(ctx context.Context) log.FieldLogger {
	if ctx != nil {
		if ctxLogger := middleware.GetLoggerFromContext(ctx); ctxLogger != nil {
			return ctxLogger
		}
	}
	return l.logger
}

func (l *gormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.loggerFor(ctx).Info(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.loggerFor(ctx).Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.loggerFor(ctx).Error(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	fields := func() []log.Field {
		query, rows := fc()
		return []log.Field{
			log.String("sql", query),
			log.Int64("rows", rows),
			log.Int64("duration_ms", elapsed.Milliseconds()),
		}
	}
	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		l.loggerFor(ctx).Error("sql query failed", append(fields(), log.Error(err))...)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		l.loggerFor(ctx).Warn("slow sql query", fields()...)
	case l.level >= gormlogger.Info:
		l.loggerFor(ctx).Debug("sql query", fields()...)
	}
}
