// Package backends 根据配置选择数据段存储实现。
package backends

import (
	"fmt"

	"go.uber.org/zap"

	"cfchat/backend/internal/config"
	"cfchat/backend/internal/storage"
	"cfchat/backend/internal/storage/bolt"
	"cfchat/backend/internal/storage/filesystem"
	"cfchat/backend/internal/storage/memory"
	"cfchat/backend/internal/storage/postgres"
	"cfchat/backend/internal/storage/redis"
	sqlstore "cfchat/backend/internal/storage/sql"
)

// Open 打开 driver 指定的存储，driver 为空时使用配置中的驱动
func Open(cfg *config.Config, driver string, log *zap.Logger) (storage.SectionStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if driver == "" {
		driver = cfg.Storage.Driver
	}

	var (
		store storage.SectionStore
		err   error
	)
	switch driver {
	case config.DriverFilesystem:
		store, err = filesystem.NewStore(cfg.Storage.Path)
	case config.DriverBolt:
		store, err = bolt.Open(cfg.Storage.BoltPath)
	case config.DriverRedis:
		store, err = redis.New(&cfg.Redis, cfg.Storage.RedisPrefix, log)
	case config.DriverPostgres, config.DriverMySQL:
		store, err = sqlstore.NewStore(driver, &cfg.Database)
	case config.DriverPgx:
		var client *postgres.Client
		client, err = postgres.New(&cfg.Database, log)
		if err == nil {
			store, err = postgres.NewStore(client)
			if err != nil {
				client.Close()
			}
		}
	case config.DriverMemory:
		store = memory.NewStore()
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", driver, err)
	}

	log.Info("section storage ready", zap.String("driver", driver))
	return store, nil
}
