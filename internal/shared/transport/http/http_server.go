package http

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"

	"Conquest/internal/shared/transport/http/middleware"
	"Conquest/modules/kit/logx"
)

type Server struct {
	engine *gin.Engine
	group  *gin.RouterGroup
	srv    *nethttp.Server
}

type Options struct {
	ReadTimeout time.Duration
}

func NewHttpServer(addr string, engine *gin.Engine, logger logx.Logger, opts Options) *Server {
	if engine == nil {
		engine = gin.New()
	}
	engine.Use(middleware.Recovery(logger))
	engine.Use(middleware.Cors())
	engine.Use(middleware.AccessLog(logger, "/healthz", "/metrics"))
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(nethttp.StatusOK, gin.H{"status": "ok"})
	})

	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	return &Server{
		engine: engine,
		group:  engine.Group(""),
		srv: &nethttp.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       opts.ReadTimeout,
			// ws 事件流是长连接，写超时由 ws 自己的 deadline 控制
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start 启动 HTTP 服务（阻塞）。关闭时返回 net/http.ErrServerClosed。
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) Group() *gin.RouterGroup {
	return s.group
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) Handler() nethttp.Handler {
	return s.engine
}
