package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"Conquest/internal/game/actor"
	"Conquest/internal/game/dc"
	"Conquest/internal/game/interfaces/handler"
	"Conquest/internal/game/state"
	"Conquest/internal/shared/config"
	"Conquest/internal/shared/gameconfig"
	"Conquest/internal/shared/logs"
	"Conquest/internal/shared/metrics"
	"Conquest/internal/shared/security"
	transportgrpc "Conquest/internal/shared/transport/grpc"
	transporthttp "Conquest/internal/shared/transport/http"
	"Conquest/internal/shared/transport/http/middleware"
	"Conquest/internal/shared/transport/ws"
	"Conquest/internal/shared/utils"
	"Conquest/modules/kit/logx"
	"Conquest/modules/kit/tracex"
)

func newServeCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load the world and serve HTTP, websocket events and gRPC health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *cfgFile)
		},
	}
}

func serve(ctx context.Context, cfgFile string) error {
	loader, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg := loader.Current()

	zl, err := logs.Init(cfg.App.Name, cfg.Log)
	if err != nil {
		return err
	}
	defer logs.Sync()
	baseLogger := logx.NewZapLogger(zl)
	logs.Info("conf loaded", zap.String("path", loader.Path()), zap.String("storage", cfg.Storage.Driver))

	// 只有日志级别支持热更新，其余配置改动需要重启。
	loader.OnChange(func(next config.Config) {
		if logs.SetLevel(next.Log.Level) {
			logs.Info("log level changed", zap.String("level", next.Log.Level))
		}
	}, func(err error) {
		logs.Warn("reload config failed", zap.Error(err))
	})

	secrets, err := security.LoadSettings()
	if err != nil {
		return err
	}
	issuer, err := security.NewIssuer(secrets)
	if err != nil {
		return err
	}

	bal, err := gameconfig.Load(cfg.Game)
	if err != nil {
		return err
	}
	ids, err := utils.NewSnowflake(cfg.App.NodeID)
	if err != nil {
		return err
	}

	store, err := openStorage(cfg, baseLogger, zl)
	if err != nil {
		return err
	}
	defer store.close()

	obs := metrics.New()
	flusher := dc.NewFlusher(store.repo, dc.WithLogger(baseLogger), dc.WithObserver(obs))
	hub := ws.NewHub(baseLogger)

	game := state.New(bal,
		state.WithLogger(baseLogger),
		state.WithIDGenerator(ids),
		state.WithSink(flusher),
		state.WithNotifier(handler.NewEventPusher(hub)),
		state.WithObserver(obs),
	)
	loadCtx := tracex.WithSpanID(tracex.EnsureTraceID(ctx), "boot")
	if err := game.Load(loadCtx, store.repo); err != nil {
		return fmt.Errorf("load game state: %w", err)
	}

	rt := actor.NewRuntime(game,
		actor.WithAskTimeout(cfg.Runtime.AskTimeout),
		actor.WithSweep(cfg.Runtime.SweepInterval, cfg.Runtime.FlushInterval),
		actor.WithLogger(baseLogger),
	)

	if !cfg.HTTP.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	httpAddr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	httpServer := transporthttp.NewHttpServer(httpAddr, gin.New(), baseLogger,
		transporthttp.Options{ReadTimeout: cfg.HTTP.ReadTimeout})
	httpServer.Engine().GET("/metrics", gin.WrapH(obs.Handler()))

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	handler.NewHttpHandler(game, rt, issuer, hub, baseLogger).
		RegisterRoutes(httpServer.Group(), middleware.Auth(issuer), limiter.Middleware())

	grpcAddr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
	grpcServer := transportgrpc.NewServer(grpcAddr, baseLogger.With(zap.String("component", "grpc")))
	grpcServer.SetServing(true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logs.Info("http server started", zap.String("addr", httpAddr))
		if err := httpServer.Start(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("http serve failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logs.Info("grpc health server started", zap.String("addr", grpcAddr))
		if err := grpcServer.Start(); err != nil {
			return fmt.Errorf("grpc serve failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logs.Info("收到退出信号，准备优雅退出")
		return shutdown(cfg, grpcServer, httpServer, hub, rt, flusher)
	})

	if err := g.Wait(); err != nil {
		logs.Error("服务异常退出", zap.Error(err))
		return err
	}
	logs.Info("server stopped")
	return nil
}

// shutdown 先停入口，再停 actor（清扫器做最后一次 FlushDirty），最后等落库队列写完。
func shutdown(cfg config.Config, grpcServer *transportgrpc.Server, httpServer *transporthttp.Server,
	hub *ws.Hub, rt *actor.Runtime, flusher *dc.Flusher) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Runtime.CloseTimeout)
	defer cancel()

	grpcServer.SetServing(false)
	hub.Close()
	if err := httpServer.Shutdown(ctx); err != nil {
		logs.Warn("http shutdown", zap.Error(err))
	}
	grpcServer.Stop(ctx)
	rt.Shutdown()
	if err := flusher.Close(ctx); err != nil {
		return fmt.Errorf("flush pending snapshots: %w", err)
	}
	return nil
}
