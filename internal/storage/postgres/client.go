// Package postgres 使用 pgx 原生连接池保存玩家数据段（驱动名 pgx）。
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"cfchat/backend/internal/config"
)

const connectTimeout = 10 * time.Second

// Client 数据段表使用的连接池
type Client struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New 连接数据库并验证连通性
//
// 连接数配置为 0 时使用 pgx 的默认值。
func New(cfg *config.DatabaseConfig, log *zap.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is required for the pgx driver")
	}
	if log == nil {
		log = zap.NewNop()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 && int32(cfg.MaxIdleConns) <= poolConfig.MaxConns {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("pgx pool ready",
		zap.Int32("max_conns", poolConfig.MaxConns),
		zap.Int32("min_conns", poolConfig.MinConns),
	)
	return &Client{pool: pool, log: log}, nil
}

// Ping 测试数据库连接
func (c *Client) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Close 关闭连接池，记录关闭前的连接使用情况
func (c *Client) Close() {
	stat := c.pool.Stat()
	c.pool.Close()
	c.log.Info("pgx pool closed",
		zap.Int32("acquired", stat.AcquiredConns()),
		zap.Int64("acquire_count", stat.AcquireCount()),
	)
}
