package logs

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	glogger "gorm.io/gorm/logger"

	"Conquest/modules/kit/logx"
)

type GormLogger struct {
	log           logx.Logger
	level         glogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger 把 GORM 的日志接到 logx，带上 ctx 里的 trace/player 字段。
func NewGormLogger(log logx.Logger, level glogger.LogLevel, slowThreshold time.Duration) glogger.Interface {
	if log == nil {
		log = logx.Nop()
	}
	return &GormLogger{
		log:           log,
		level:         level,
		slowThreshold: slowThreshold,
	}
}

func (l *GormLogger) LogMode(level glogger.LogLevel) glogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= glogger.Info {
		l.log.WithContext(ctx).Info("gorm: "+msg, zap.Any("data", data))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= glogger.Warn {
		l.log.WithContext(ctx).Warn("gorm: "+msg, zap.Any("data", data))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= glogger.Error {
		l.log.WithContext(ctx).Error("gorm: "+msg, zap.Any("data", data))
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= glogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}
	log := l.log.WithContext(ctx)

	switch {
	case err != nil && !errors.Is(err, glogger.ErrRecordNotFound):
		log.Error("gorm trace error", append(fields, zap.Error(err))...)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		log.Warn("gorm slow query", fields...)
	case l.level >= glogger.Info:
		log.Debug("gorm trace", fields...)
	}
}
