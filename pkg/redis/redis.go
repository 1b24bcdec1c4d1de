package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hargapangan/pangan-monitor/config"
	"github.com/hargapangan/pangan-monitor/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

var (
	client *redis.Client

	errNotInitialized = errors.New("redis not initialized")
)

// Options client options for cfg. A zero timeout keeps go-redis defaults.
func Options(cfg *config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	}
}

// Init connects the shared client and verifies it answers
func Init(cfg *config.RedisConfig) error {
	logger.Info("Connecting to Redis", map[string]interface{}{
		"addr":      cfg.Addr(),
		"db":        cfg.DB,
		"pool_size": cfg.PoolSize,
	})

	c := redis.NewClient(Options(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		logger.Error("Redis did not answer", err, map[string]interface{}{
			"addr": cfg.Addr(),
		})
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	client = c
	logger.Info("Redis connection established")
	return nil
}

// Ping reports whether the shared client answers; used by the health endpoint
func Ping(ctx context.Context) error {
	if client == nil {
		return errNotInitialized
	}
	return client.Ping(ctx).Err()
}

func GetClient() *redis.Client {
	return client
}

func Close() error {
	if client == nil {
		return nil
	}
	logger.Info("Closing Redis connection")
	err := client.Close()
	client = nil
	return err
}
