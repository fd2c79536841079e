package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"cfchat/backend/internal/config"
	"cfchat/backend/internal/section"
	"cfchat/backend/internal/storage"
)

const (
	opTimeout = 3 * time.Second
	scanCount = 200
)

// Store 基于 Redis 的数据段存储，每名玩家一个字符串键 <prefix><uuid>
type Store struct {
	rdb    *goredis.Client
	prefix string
	log    *zap.Logger
}

// New 创建新的 Redis 存储并测试连接
func New(cfg *config.RedisConfig, prefix string, log *zap.Logger) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}
	log.Info("connected to Redis",
		zap.String("address", cfg.Address),
		zap.Int("db", cfg.DB),
		zap.String("prefix", prefix),
	)

	return NewFromClient(rdb, prefix, log), nil
}

// NewFromClient 使用已有客户端创建存储
func NewFromClient(rdb *goredis.Client, prefix string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{rdb: rdb, prefix: prefix, log: log}
}

// Key 玩家数据段的键
func (s *Store) Key(id uuid.UUID) string {
	return s.prefix + id.String()
}

// LoadSection 读取数据段
func (s *Store) LoadSection(id uuid.UUID) (*section.Section, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, err := s.rdb.Get(ctx, s.Key(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, storage.ErrSectionNotFound
		}
		return nil, s.wrap("get", id, err)
	}
	return storage.Decode(id, data)
}

// SaveSection 覆盖写入数据段，不设置过期时间
func (s *Store) SaveSection(id uuid.UUID, sec *section.Section) error {
	data, err := storage.Encode(id, sec)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := s.rdb.Set(ctx, s.Key(id), data, 0).Err(); err != nil {
		return s.wrap("set", id, err)
	}
	return nil
}

// ListSections 通过 SCAN 遍历前缀下的全部键
func (s *Store) ListSections() ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*opTimeout)
	defer cancel()

	var ids []uuid.UUID
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		if id, ok := storage.ParseKey(iter.Val(), s.prefix, ""); ok {
			ids = append(ids, id)
		}
	}
	if err := iter.Err(); err != nil {
		if errors.Is(err, goredis.ErrClosed) {
			return nil, storage.ErrClosed
		}
		return nil, fmt.Errorf("scan sections: %w", err)
	}
	return ids, nil
}

// Health 测试 Redis 连接
func (s *Store) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		if errors.Is(err, goredis.ErrClosed) {
			return storage.ErrClosed
		}
		return err
	}
	return nil
}

// Close 关闭 Redis 连接
func (s *Store) Close() error {
	if err := s.rdb.Close(); err != nil {
		s.log.Error("failed to close Redis connection", zap.Error(err))
		return err
	}
	s.log.Info("Redis connection closed")
	return nil
}

func (s *Store) wrap(op string, id uuid.UUID, err error) error {
	if errors.Is(err, goredis.ErrClosed) {
		return storage.ErrClosed
	}
	return fmt.Errorf("redis %s %s: %w", op, id, err)
}
