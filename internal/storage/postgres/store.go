package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"cfchat/backend/internal/section"
	"cfchat/backend/internal/storage"
)

const opTimeout = 5 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS player_sections (
	identity   VARCHAR(36) PRIMARY KEY,
	document   TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store 直接使用 pgx 连接池的数据段存储，与 sql 包共用同一张表
type Store struct {
	client *Client
}

// NewStore 创建存储并确保表存在
func NewStore(client *Client) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := client.pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create player_sections: %w", err)
	}
	return &Store{client: client}, nil
}

// LoadSection 读取数据段
func (s *Store) LoadSection(id uuid.UUID) (*section.Section, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var document string
	err := s.client.pool.QueryRow(ctx,
		`SELECT document FROM player_sections WHERE identity = $1`, id.String(),
	).Scan(&document)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrSectionNotFound
		}
		return nil, fmt.Errorf("load section %s: %w", id, err)
	}
	return storage.Decode(id, []byte(document))
}

// SaveSection 覆盖写入数据段
func (s *Store) SaveSection(id uuid.UUID, sec *section.Section) error {
	data, err := storage.Encode(id, sec)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err = s.client.pool.Exec(ctx, `
		INSERT INTO player_sections (identity, document, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (identity) DO UPDATE
		SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`,
		id.String(), string(data),
	)
	if err != nil {
		return fmt.Errorf("save section %s: %w", id, err)
	}
	return nil
}

// ListSections 列出全部标识
func (s *Store) ListSections() ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := s.client.pool.Query(ctx, `SELECT identity FROM player_sections ORDER BY identity`)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
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

// Health 测试数据库连接
func (s *Store) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.client.Ping(ctx)
}

// Close 关闭连接池
func (s *Store) Close() error {
	s.client.Close()
	return nil
}
