package grpc

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"Conquest/modules/kit/logx"
	"Conquest/modules/kit/tracex"
)

// 跨进程透传的 metadata 键。
const (
	traceIDHeader  = "x-trace-id"
	spanIDHeader   = "x-span-id"
	playerIDHeader = "x-player-id"
)

// UnaryClientTrace 把 ctx 里的 trace/span/玩家 id 写进出站 metadata。
func UnaryClientTrace() gogrpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *gogrpc.ClientConn,
		invoker gogrpc.UnaryInvoker, opts ...gogrpc.CallOption) error {
		return invoker(injectTrace(ctx), method, req, reply, cc, opts...)
	}
}

// UnaryServerTrace 从入站 metadata 恢复 trace 信息，没有 trace id 时生成一个，每次调用记一条 debug 日志。
func UnaryServerTrace(log logx.Logger) gogrpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		ctx = tracex.EnsureTraceID(extractTrace(ctx))
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(ctx, log, info.FullMethod, err, start)
		return resp, err
	}
}

// StreamServerTrace 同 UnaryServerTrace，用于 Health/Watch 这类流式调用。
func StreamServerTrace(log logx.Logger) gogrpc.StreamServerInterceptor {
	return func(srv any, ss gogrpc.ServerStream, info *gogrpc.StreamServerInfo, handler gogrpc.StreamHandler) error {
		ctx := tracex.EnsureTraceID(extractTrace(ss.Context()))
		start := time.Now()
		err := handler(srv, &tracedStream{ServerStream: ss, ctx: ctx})
		logCall(ctx, log, info.FullMethod, err, start)
		return err
	}
}

type tracedStream struct {
	gogrpc.ServerStream
	ctx context.Context
}

func (s *tracedStream) Context() context.Context {
	return s.ctx
}

func logCall(ctx context.Context, log logx.Logger, method string, err error, start time.Time) {
	if log == nil {
		return
	}
	log.WithContext(ctx).Debug("grpc call",
		zap.String("method", method),
		zap.String("code", status.Code(err).String()),
		zap.Duration("cost", time.Since(start)),
	)
}

func injectTrace(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	var kv []string
	if id, ok := tracex.TraceIDFrom(ctx); ok {
		kv = append(kv, traceIDHeader, id)
	}
	if id, ok := tracex.SpanIDFrom(ctx); ok {
		kv = append(kv, spanIDHeader, id)
	}
	if pid, ok := tracex.PlayerIDFrom(ctx); ok {
		kv = append(kv, playerIDHeader, strconv.FormatInt(pid, 10))
	}
	if len(kv) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

func extractTrace(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	if v := first(md, traceIDHeader); v != "" {
		ctx = tracex.WithTraceID(ctx, v)
	}
	if v := first(md, spanIDHeader); v != "" {
		ctx = tracex.WithSpanID(ctx, v)
	}
	if pid, err := strconv.ParseInt(first(md, playerIDHeader), 10, 64); err == nil && pid > 0 {
		ctx = tracex.WithPlayerID(ctx, pid)
	}
	return ctx
}

func first(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}
