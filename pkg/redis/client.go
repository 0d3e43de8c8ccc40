package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Client wraps the go-redis client shared by the plan cache and the audit queue.
type Client struct {
	*redis.Client
	logger *zap.Logger
}

// NewClient creates a Redis client and verifies connectivity.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("Redis client connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return &Client{Client: rdb, logger: logger}, nil
}

// Healthy pings Redis for readiness checks.
func (c *Client) Healthy(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		c.logger.Warn("redis health check failed", zap.Error(err))
		return err
	}
	return nil
}
