package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"Conquest/internal/shared/config"
	"Conquest/internal/shared/logs"
	"Conquest/modules/kit/logx"
)

func newMigrateCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables (mysql/postgres) or indexes (mongodb) for the configured storage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrate(cmd.Context(), *cfgFile)
		},
	}
}

func migrate(ctx context.Context, cfgFile string) error {
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

	store, err := openStorage(cfg, logx.NewZapLogger(zl), zl)
	if err != nil {
		return err
	}
	defer store.close()

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := store.migrate(ctx); err != nil {
		logs.Error("migrate failed", zap.String("driver", store.driver), zap.Error(err))
		return err
	}
	logs.Info("migrate done", zap.String("driver", store.driver))
	return nil
}
