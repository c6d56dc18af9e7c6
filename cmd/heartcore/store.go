package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	heartnats "github.com/wehubfusion/Heartcore/internal/nats"
	"github.com/wehubfusion/Heartcore/pkg/config"
	apperrors "github.com/wehubfusion/Heartcore/pkg/errors"
	"github.com/wehubfusion/Heartcore/pkg/location"
	"go.uber.org/zap"
)

func noClose() error { return nil }

// openStore connects the configured location store backend. The returned
// func releases its connection.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (location.Store, func() error, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return location.NewMemoryStore(), noClose, nil

	case config.BackendNATS:
		nc := heartnats.DefaultConnectionConfig(cfg.NATS.URL)
		nc.Bucket = cfg.NATS.Bucket
		nc.Token = cfg.NATS.Token
		nc.Username = cfg.NATS.Username
		nc.Password = cfg.NATS.Password

		conn, err := heartnats.Connect(ctx, nc, logger)
		if err != nil {
			return nil, nil, apperrors.NewTransientError("failed to connect to NATS", err)
		}
		kv, err := heartnats.OpenBucket(conn, nc, logger)
		if err != nil {
			_ = heartnats.Close(conn)
			return nil, nil, apperrors.NewTransientError("failed to open key-value bucket", err)
		}
		store, err := location.NewKVStore(kv, logger)
		if err != nil {
			_ = heartnats.Close(conn)
			return nil, nil, err
		}
		logger.Info("Using NATS location store",
			zap.String("bucket", nc.Bucket),
			zap.Bool("connected", heartnats.IsConnected(conn)))
		return store, func() error { return heartnats.Close(conn) }, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, apperrors.NewTransientError("failed to connect to Redis", err)
		}
		store, err := location.NewRedisStore(client,
			location.WithRedisPrefix(cfg.Redis.Prefix),
			location.WithRedisTTL(cfg.Redis.TTL))
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		logger.Info("Using Redis location store", zap.String("addr", cfg.Redis.Addr))
		return store, client.Close, nil

	case config.BackendBlob:
		store, err := location.NewBlobStore(cfg.Blob.ConnectionString, cfg.Blob.Container, cfg.Blob.Prefix, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using Azure Blob location store", zap.String("container", cfg.Blob.Container))
		return store, noClose, nil
	}

	return nil, nil, apperrors.NewConfigurationError(fmt.Sprintf("unknown store backend %q", cfg.Backend), nil)
}
