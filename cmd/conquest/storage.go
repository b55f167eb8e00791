package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"Conquest/internal/game/infra/persistence/memory"
	"Conquest/internal/game/infra/persistence/mongodb"
	gormrepo "Conquest/internal/game/infra/persistence/mysql"
	"Conquest/internal/game/port"
	"Conquest/internal/shared/config"
	"Conquest/internal/shared/infrastructure/db"
	sharedmongo "Conquest/internal/shared/infrastructure/mongo"
	"Conquest/modules/kit/logx"
)

// storage 是按配置打开的仓储和它的建表/建索引动作。
type storage struct {
	driver string
	repo   port.PlayerRepository
	migrate func(ctx context.Context) error
	close func()
}

func openStorage(cfg config.Config, l logx.Logger, zl *zap.Logger) (*storage, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	switch driver {
	case "", "memory":
		return &storage{
			driver:  "memory",
			repo:    memory.NewPlayerRepo(),
			migrate: func(context.Context) error { return nil },
			close:   func() {},
		}, nil

	case "mysql", "postgres":
		var (
			gdb *gorm.DB
			err error
		)
		if driver == "mysql" {
			gdb, err = db.OpenMySQL(cfg.MySQL, l)
		} else {
			gdb, err = db.OpenPostgres(cfg.Postgres, l)
		}
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", driver, err)
		}
		repo := gormrepo.NewPlayerRepo(gdb)
		return &storage{
			driver:  driver,
			repo:    repo,
			migrate: repo.Migrate,
			close:   func() { _ = db.Close(gdb) },
		}, nil

	case "mongodb", "mongo":
		client, err := sharedmongo.Open(cfg.MongoDB, zl)
		if err != nil {
			return nil, fmt.Errorf("open mongodb: %w", err)
		}
		repo := mongodb.NewPlayerRepo(client.Database(cfg.MongoDB.Database), cfg.MongoDB.Transactions)
		return &storage{
			driver:  "mongodb",
			repo:    repo,
			migrate: repo.EnsureIndexes,
			close:   func() { _ = client.Disconnect(context.Background()) },
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
