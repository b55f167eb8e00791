package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"Conquest/internal/shared/config"
)

const defaultConnectTimeout = 3 * time.Second

// ErrNoTransactions 配置要求事务，但部署是单机 mongod。
var ErrNoTransactions = errors.New("mongodb deployment does not support transactions, use a replica set or disable mongodb.transactions")

// hello 命令里判断部署拓扑需要的字段。
type helloReply struct {
	SetName string `bson:"setName"`
	Msg     string `bson:"msg"`
}

// Open 连接并 ping。cfg.Transactions 为 true 时要求副本集或分片集群。
func Open(cfg config.MongoDBConfig, l *zap.Logger) (*mongo.Client, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongodb uri is empty")
	}
	if l == nil {
		l = zap.NewNop()
	}
	timeout := time.Duration(cfg.ConnectTimeoutS) * time.Second
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	topology, err := probe(ctx, client, cfg.Transactions)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	l.Info("open mongodb success",
		zap.String("database", cfg.Database),
		zap.String("topology", topology),
		zap.Bool("transactions", cfg.Transactions),
	)
	return client, nil
}

func probe(ctx context.Context, client *mongo.Client, needTxn bool) (string, error) {
	if err := client.Ping(ctx, nil); err != nil {
		return "", fmt.Errorf("ping mongodb: %w", err)
	}
	var reply helloReply
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&reply); err != nil {
		return "", fmt.Errorf("mongodb hello: %w", err)
	}
	topology := "standalone"
	switch {
	case reply.SetName != "":
		topology = "replica_set:" + reply.SetName
	case reply.Msg == "isdbgrid":
		topology = "sharded"
	}
	if needTxn && topology == "standalone" {
		return topology, ErrNoTransactions
	}
	return topology, nil
}
