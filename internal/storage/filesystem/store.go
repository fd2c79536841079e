package filesystem

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"cfchat/backend/internal/section"
	"cfchat/backend/internal/storage"
)

// Store 文件系统存储实现，每名玩家一个 <uuid>.yml 文件，便于手工编辑。
type Store struct {
	basePath      string         // 数据段根目录
	platformUtils *PlatformUtils // 平台兼容性工具

	mu      sync.Mutex
	written map[uuid.UUID][sha256.Size]byte // 最近一次写入内容的摘要
	closed  bool
}

// NewStore 创建文件系统存储实例，目录不存在时自动创建
func NewStore(basePath string) (*Store, error) {
	platformUtils := NewPlatformUtils()

	if err := platformUtils.ValidatePath(basePath); err != nil {
		return nil, fmt.Errorf("invalid base path: %w", err)
	}

	normalizedPath := platformUtils.NormalizePath(basePath)
	if err := os.MkdirAll(normalizedPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Store{
		basePath:      normalizedPath,
		platformUtils: platformUtils,
		written:       make(map[uuid.UUID][sha256.Size]byte),
	}, nil
}

// BasePath 数据段根目录
func (s *Store) BasePath() string {
	return s.basePath
}

// PathFor 玩家数据段的文件路径
func (s *Store) PathFor(id uuid.UUID) string {
	return filepath.Join(s.basePath, s.platformUtils.SectionFilename(id))
}

// ParsePath 从文件路径解析玩家标识，非数据段文件返回 false
func (s *Store) ParsePath(path string) (uuid.UUID, bool) {
	if filepath.Clean(filepath.Dir(path)) != s.basePath {
		return uuid.Nil, false
	}
	return s.platformUtils.ParseSectionFilename(path)
}

// LoadSection 读取数据段
func (s *Store) LoadSection(id uuid.UUID) (*section.Section, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(s.PathFor(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.ErrSectionNotFound
		}
		return nil, fmt.Errorf("failed to read section %s: %w", id, err)
	}
	return storage.Decode(id, content)
}

// SaveSection 覆盖写入数据段。
//
// 先写入同目录的临时文件再重命名，读者不会看到写了一半的文件。
func (s *Store) SaveSection(id uuid.UUID, sec *section.Section) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	content, err := storage.Encode(id, sec)
	if err != nil {
		return err
	}

	target := s.PathFor(id)
	tmp, err := os.CreateTemp(s.basePath, "."+filepath.Base(target)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", id, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // 重命名成功后为空操作

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write section %s: %w", id, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync section %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close section %s: %w", id, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to chmod section %s: %w", id, err)
	}

	// 在重命名之前登记摘要，监听器收到事件时已能识别出自身写入
	s.mu.Lock()
	s.written[id] = sha256.Sum256(content)
	s.mu.Unlock()

	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("failed to replace section %s: %w", id, err)
	}
	return nil
}

// IsOwnWrite 文件当前内容是否与本进程最近一次写入的内容相同
func (s *Store) IsOwnWrite(id uuid.UUID) bool {
	content, err := os.ReadFile(s.PathFor(id))
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.written[id]
	return ok && sum == sha256.Sum256(content)
}

// ListSections 列出目录中的全部数据段
func (s *Store) ListSections() ([]uuid.UUID, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if id, ok := s.platformUtils.ParseSectionFilename(entry.Name()); ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// Health 检查根目录是否存在
func (s *Store) Health() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	info, err := os.Stat(s.basePath)
	if err != nil {
		return fmt.Errorf("section directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("section directory %s is not a directory", s.basePath)
	}
	return nil
}

// Close 关闭存储
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	return nil
}
