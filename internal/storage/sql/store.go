package sql

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"cfchat/backend/internal/config"
	"cfchat/backend/internal/section"
	"cfchat/backend/internal/storage"
)

// PlayerSection 数据段表，一行一名玩家
type PlayerSection struct {
	Identity  string    `gorm:"primaryKey;size:36"`
	Document  string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName 表名
func (PlayerSection) TableName() string {
	return "player_sections"
}

// Store SQL 数据库存储实现（支持 MySQL 5.7+ 和 PostgreSQL）
type Store struct {
	db         *sql.DB
	gormDB     *gorm.DB
	driverName string // "mysql" or "postgres"
}

// NewStore 创建SQL数据库存储并自动建表
func NewStore(driverName string, cfg *config.DatabaseConfig) (*Store, error) {
	if driverName != config.DriverMySQL && driverName != config.DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres)", driverName)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var dialector gorm.Dialector
	if driverName == config.DriverMySQL {
		dialector = mysql.New(mysql.Config{Conn: db})
	} else {
		dialector = postgres.New(postgres.Config{Conn: db})
	}

	gormDB, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize GORM: %w", err)
	}

	store := &Store{
		db:         db,
		gormDB:     gormDB,
		driverName: driverName,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// LoadSection 读取数据段
func (s *Store) LoadSection(id uuid.UUID) (*section.Section, error) {
	var row PlayerSection
	err := s.gormDB.Where("identity = ?", id.String()).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrSectionNotFound
		}
		return nil, fmt.Errorf("load section %s: %w", id, err)
	}
	return storage.Decode(id, []byte(row.Document))
}

// SaveSection 覆盖写入数据段（按主键 upsert）
func (s *Store) SaveSection(id uuid.UUID, sec *section.Section) error {
	data, err := storage.Encode(id, sec)
	if err != nil {
		return err
	}

	row := PlayerSection{
		Identity:  id.String(),
		Document:  string(data),
		UpdatedAt: time.Now().UTC(),
	}
	err = s.gormDB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity"}},
		DoUpdates: clause.AssignmentColumns([]string{"document", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save section %s: %w", id, err)
	}
	return nil
}

// ListSections 列出全部标识
func (s *Store) ListSections() ([]uuid.UUID, error) {
	var keys []string
	if err := s.gormDB.Model(&PlayerSection{}).Order("identity").Pluck("identity", &keys).Error; err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(keys))
	for _, key := range keys {
		if id, ok := storage.ParseKey(key, "", ""); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Ping()
}

// migrate 执行数据库迁移（使用GORM AutoMigrate）
func (s *Store) migrate() error {
	return s.gormDB.AutoMigrate(&PlayerSection{})
}
