package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PoolConfig tunes the connection pool. Zero values keep pgx defaults.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// NewPostgresPool creates a pgx connection pool for PostgreSQL and verifies connectivity.
func NewPostgresPool(ctx context.Context, dsn string, pc PoolConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	if pc.MaxConns > 0 {
		config.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		config.MinConns = pc.MinConns
	}
	if pc.MaxConnLifetime > 0 {
		config.MaxConnLifetime = pc.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("PostgreSQL connection pool established", zap.Int32("max_conns", config.MaxConns))
	return pool, nil
}
