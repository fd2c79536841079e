package directory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"cfchat/backend/internal/cache"
)

// fileDocument 目录文件格式
//
//	players:
//	  - id: 6f3a0c3e-8f0a-4b5e-9c1d-2e3f4a5b6c7d
//	    name: Steve
type fileDocument struct {
	Players []Entry `yaml:"players"`
}

// File 以 YAML 文件为来源的目录。
//
// 每次 AllKnown 与 Lookup 都重新读取文件，显示名称在 TTL 内走缓存，
// 这样外部工具追加的玩家无需重启即可生效。
type File struct {
	path  string
	names *cache.LocalCache[uuid.UUID, string]
	log   *zap.Logger
	mu    sync.Mutex // 串行化文件读写
}

// NewFile 创建文件目录，文件不存在时视为空目录
func NewFile(path string, nameTTL time.Duration, log *zap.Logger) *File {
	if log == nil {
		log = zap.NewNop()
	}
	if nameTTL <= 0 {
		nameTTL = time.Minute
	}
	return &File{
		path:  path,
		names: cache.NewLocalCache[uuid.UUID, string](nameTTL, nameTTL),
		log:   log,
	}
}

// Path 目录文件路径
func (f *File) Path() string {
	return f.path
}

// AllKnown 列出全部已知玩家
func (f *File) AllKnown() ([]uuid.UUID, error) {
	entries, err := f.read()
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids, nil
}

// DisplayName 显示名称，读取失败时返回空串
func (f *File) DisplayName(id uuid.UUID) string {
	if name, ok := f.names.Get(id); ok {
		return name
	}
	entries, err := f.read()
	if err != nil {
		f.log.Warn("failed to read directory", zap.String("path", f.path), zap.Error(err))
		return ""
	}
	for _, e := range entries {
		if e.ID == id {
			return e.Name
		}
	}
	return ""
}

// Lookup 查找玩家
func (f *File) Lookup(nameOrToken string) (uuid.UUID, error) {
	entries, err := f.read()
	if err != nil {
		return uuid.Nil, err
	}
	index := make(map[uuid.UUID]int, len(entries))
	for i, e := range entries {
		index[e.ID] = i
	}
	return lookup(entries, index, nameOrToken)
}

// Add 添加玩家并写回文件，已存在时更新名称
func (f *File) Add(id uuid.UUID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.readLocked()
	if err != nil {
		return err
	}

	found := false
	for i := range entries {
		if entries[i].ID == id {
			entries[i].Name = name
			found = true
			break
		}
	}
	if !found {
		entries = append(entries, Entry{ID: id, Name: name})
	}

	data, err := yaml.Marshal(fileDocument{Players: entries})
	if err != nil {
		return fmt.Errorf("marshal directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create directory folder: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0644); err != nil {
		return fmt.Errorf("write directory: %w", err)
	}

	f.names.Set(id, name, 0)
	return nil
}

// Close 停止名称缓存的清理协程
func (f *File) Close() {
	f.names.Stop()
}

func (f *File) read() ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readLocked()
}

func (f *File) readLocked() ([]Entry, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read directory %s: %w", f.path, err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse directory %s: %w", f.path, err)
	}

	seen := make(map[uuid.UUID]bool, len(doc.Players))
	entries := make([]Entry, 0, len(doc.Players))
	for _, e := range doc.Players {
		if e.ID == uuid.Nil || seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		entries = append(entries, e)
		f.names.Set(e.ID, e.Name, 0)
	}
	return entries, nil
}
