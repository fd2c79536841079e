package bolt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"cfchat/backend/internal/section"
	"cfchat/backend/internal/storage"
)

const sectionBucket = "player_sections"

// Store 基于 BoltDB 的数据段存储，单个文件，键为玩家标识
type Store struct {
	db *bbolt.DB
}

// Open 打开（或创建）数据库文件
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("bolt path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0755); err != nil {
		return nil, fmt.Errorf("create bolt directory: %w", err)
	}

	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// LoadSection 读取数据段
func (s *Store) LoadSection(id uuid.UUID) (*section.Section, error) {
	var payload []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sectionBucket))
		if bucket == nil {
			return fmt.Errorf("section bucket is missing")
		}
		value := bucket.Get(sectionKey(id))
		if value == nil {
			return storage.ErrSectionNotFound
		}
		// value 只在事务内有效
		payload = append([]byte(nil), value...)
		return nil
	})
	if err != nil {
		if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
			return nil, storage.ErrClosed
		}
		return nil, err
	}
	return storage.Decode(id, payload)
}

// SaveSection 覆盖写入数据段
func (s *Store) SaveSection(id uuid.UUID, sec *section.Section) error {
	payload, err := storage.Encode(id, sec)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sectionBucket))
		if bucket == nil {
			return fmt.Errorf("section bucket is missing")
		}
		return bucket.Put(sectionKey(id), payload)
	})
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return storage.ErrClosed
	}
	if err != nil {
		return fmt.Errorf("put section %s: %w", id, err)
	}
	return nil
}

// ListSections 按键顺序列出全部标识
func (s *Store) ListSections() ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sectionBucket))
		if bucket == nil {
			return fmt.Errorf("section bucket is missing")
		}
		return bucket.ForEach(func(k, _ []byte) error {
			if id, ok := storage.ParseKey(string(k), "", ""); ok {
				ids = append(ids, id)
			}
			return nil
		})
	})
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return nil, storage.ErrClosed
	}
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return ids, nil
}

// Health 执行一次只读事务
func (s *Store) Health() error {
	err := s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(sectionBucket)) == nil {
			return fmt.Errorf("section bucket is missing")
		}
		return nil
	})
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return storage.ErrClosed
	}
	return err
}

// Close 关闭数据库
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(sectionBucket)); err != nil {
			return fmt.Errorf("create section bucket: %w", err)
		}
		return nil
	})
}

func sectionKey(id uuid.UUID) []byte {
	return []byte(id.String())
}
