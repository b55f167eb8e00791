package tracex

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type traceIDKey struct{}
type spanIDKey struct{}
type playerIDKey struct{}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

func TraceIDFrom(ctx context.Context) (string, bool) {
	return stringFrom(ctx, traceIDKey{})
}

func WithSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, spanIDKey{}, spanID)
}

func SpanIDFrom(ctx context.Context) (string, bool) {
	return stringFrom(ctx, spanIDKey{})
}

// WithPlayerID 记录本次请求作用的玩家，日志适配器会把它带到每一行。
func WithPlayerID(ctx context.Context, playerID int64) context.Context {
	return context.WithValue(ctx, playerIDKey{}, playerID)
}

func PlayerIDFrom(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	v, ok := ctx.Value(playerIDKey{}).(int64)
	return v, ok && v > 0
}

// EnsureTraceID 已有 trace_id 时原样返回，否则生成一个新的。
func EnsureTraceID(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := TraceIDFrom(ctx); ok {
		return ctx
	}
	if id := NewTraceID(); id != "" {
		return WithTraceID(ctx, id)
	}
	return ctx
}

// NewTraceID 生成 16 字节随机 trace_id（hex）。
func NewTraceID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(b[:])
}

func stringFrom(ctx context.Context, key any) (string, bool) {
	if ctx == nil {
		return "", false
	}
	s, ok := ctx.Value(key).(string)
	return s, ok && s != ""
}
