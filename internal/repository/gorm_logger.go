package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	applogger "ModelArena/pkg/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// gormLogger routes gorm's SQL logging into the application logger. Failed
// and slow statements are logged; everything else only at debug.
type gormLogger struct {
	logger *applogger.Logger
	level  gormlogger.LogLevel
	slow   time.Duration
}

func newGormLogger(lgr *applogger.Logger) *gormLogger {
	return &gormLogger{logger: lgr.With("gorm"), level: gormlogger.Warn, slow: slowQueryThreshold}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.logger.Info(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.logger.Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.logger.Error(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		sql, rows := fc()
		l.logger.Error("sql failed",
			applogger.String("sql", sql),
			applogger.Int64("rows", rows),
			applogger.Duration("elapsed", elapsed),
			applogger.Error(err))
	case elapsed > l.slow && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.logger.Warn("slow sql",
			applogger.String("sql", sql),
			applogger.Int64("rows", rows),
			applogger.Duration("elapsed", elapsed))
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.logger.Debug("sql",
			applogger.String("sql", sql),
			applogger.Int64("rows", rows),
			applogger.Duration("elapsed", elapsed))
	}
}
