package grpc

import (
	"context"
	"fmt"
	"net"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"Conquest/modules/kit/logx"
)

// ServiceName 是健康检查里的服务名，空串代表整个进程。
const ServiceName = "conquest.Game"

// Server 只承载标准健康检查，供编排系统探活。
type Server struct {
	addr   string
	srv    *gogrpc.Server
	health *health.Server
}

func NewServer(addr string, l logx.Logger) *Server {
	srv := gogrpc.NewServer(
		gogrpc.ChainUnaryInterceptor(UnaryServerTrace(l)),
		gogrpc.ChainStreamInterceptor(StreamServerTrace(l)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{addr: addr, srv: srv, health: hs}
}

// SetServing 状态加载完成后置为 SERVING，关闭前置回 NOT_SERVING。
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Start 阻塞直到 Stop。
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", s.addr, err)
	}
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	return s.srv.Serve(lis)
}

// Stop 优雅关闭，ctx 到期后强制关闭。
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.srv.Stop()
	}
}

// DialHealth 建立到健康检查服务的连接，调用会自动带上 trace。
func DialHealth(target string) (*gogrpc.ClientConn, healthpb.HealthClient, error) {
	opts := []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithChainUnaryInterceptor(UnaryClientTrace()),
	}
	conn, err := gogrpc.NewClient(target, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("dial health service failed: %w", err)
	}
	return conn, healthpb.NewHealthClient(conn), nil
}
