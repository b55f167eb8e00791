package logx

import (
	"context"

	"Conquest/modules/kit/tracex"

	"go.uber.org/zap"
)

// ZapLogger 是 zap 的适配器。
type ZapLogger struct {
	logger *zap.Logger
}

func NewZapLogger(l *zap.Logger) *ZapLogger {
	if l == nil {
		return &ZapLogger{logger: zap.NewNop()}
	}
	return &ZapLogger{logger: l}
}

func (z *ZapLogger) WithContext(ctx context.Context) Logger {
	if z == nil {
		return NewZapLogger(nil)
	}
	if ctx == nil {
		return z
	}
	fields := make([]zap.Field, 0, 3)
	if tid, ok := tracex.TraceIDFrom(ctx); ok {
		fields = append(fields, zap.String("trace_id", tid))
	}
	if sid, ok := tracex.SpanIDFrom(ctx); ok {
		fields = append(fields, zap.String("span_id", sid))
	}
	if pid, ok := tracex.PlayerIDFrom(ctx); ok {
		fields = append(fields, zap.Int64("player_id", pid))
	}
	if len(fields) == 0 {
		return z
	}
	return &ZapLogger{logger: z.logger.With(fields...)}
}

func (z *ZapLogger) With(fields ...zap.Field) Logger {
	if z == nil {
		return NewZapLogger(nil)
	}
	return &ZapLogger{logger: z.logger.With(fields...)}
}

// Zap 暴露底层 logger，给需要 *zap.Logger 的三方组件使用。
func (z *ZapLogger) Zap() *zap.Logger {
	if z == nil {
		return zap.NewNop()
	}
	return z.logger
}

func (z *ZapLogger) Info(msg string, fields ...zap.Field) {
	z.logger.Info(msg, fields...)
}

func (z *ZapLogger) Error(msg string, fields ...zap.Field) {
	z.logger.Error(msg, fields...)
}

func (z *ZapLogger) Debug(msg string, fields ...zap.Field) {
	z.logger.Debug(msg, fields...)
}

func (z *ZapLogger) Warn(msg string, fields ...zap.Field) {
	z.logger.Warn(msg, fields...)
}
