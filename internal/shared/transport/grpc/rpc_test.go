package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"

	"Conquest/modules/kit/logx"
	"Conquest/modules/kit/tracex"
)

func TestServer_健康状态切换(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen err=%v", err)
	}
	s := NewServer(lis.Addr().String(), logx.Nop())
	go func() { _ = s.Serve(lis) }()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	conn, client, err := DialHealth(lis.Addr().String())
	if err != nil {
		t.Fatalf("dial err=%v", err)
	}
	defer conn.Close()

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		if err != nil {
			t.Fatalf("check err=%v", err)
		}
		return resp.GetStatus()
	}

	if got := check(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("期望启动时 NOT_SERVING, got=%v", got)
	}
	s.SetServing(true)
	if got := check(); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("期望 SERVING, got=%v", got)
	}
}

func TestTrace_出入站透传(t *testing.T) {
	ctx := tracex.WithSpanID(tracex.WithTraceID(context.Background(), "t-1"), "s-1")
	ctx = tracex.WithPlayerID(ctx, 42)
	out := injectTrace(ctx)
	md, _ := metadata.FromOutgoingContext(out)

	in := extractTrace(metadata.NewIncomingContext(context.Background(), md))
	if id, _ := tracex.TraceIDFrom(in); id != "t-1" {
		t.Fatalf("trace id=%q", id)
	}
	if id, _ := tracex.SpanIDFrom(in); id != "s-1" {
		t.Fatalf("span id=%q", id)
	}
	if pid, _ := tracex.PlayerIDFrom(in); pid != 42 {
		t.Fatalf("player id=%d", pid)
	}
}

func TestTrace_缺少trace时生成(t *testing.T) {
	var got context.Context
	handler := func(ctx context.Context, _ any) (any, error) {
		got = ctx
		return nil, nil
	}
	_, _ = UnaryServerTrace(logx.Nop())(context.Background(), nil, &gogrpc.UnaryServerInfo{FullMethod: "/x"}, handler)
	if id, ok := tracex.TraceIDFrom(got); !ok || id == "" {
		t.Fatalf("trace id not generated")
	}
}
