// Package directory 解析玩家标识与显示名称，并列出全部已知玩家。
package directory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"cfchat/backend/internal/domain"
)

// Directory 目录服务
type Directory interface {
	// AllKnown 列出全部已知玩家
	AllKnown() ([]uuid.UUID, error)
	// DisplayName 显示名称，未知玩家返回空串
	DisplayName(id uuid.UUID) string
	// Lookup 根据显示名称（不区分大小写）或标识字符串查找玩家，未知时返回 domain.ErrNotFound
	Lookup(nameOrToken string) (uuid.UUID, error)
}

// Entry 目录中的一名玩家
type Entry struct {
	ID   uuid.UUID `yaml:"id"`
	Name string    `yaml:"name"`
}

// Static 内存目录，保持添加顺序
type Static struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[uuid.UUID]int
}

// NewStatic 创建内存目录
func NewStatic(entries ...Entry) *Static {
	s := &Static{index: make(map[uuid.UUID]int)}
	for _, e := range entries {
		s.Add(e.ID, e.Name)
	}
	return s
}

// Add 添加玩家，已存在时更新名称
func (s *Static) Add(id uuid.UUID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[id]; ok {
		s.entries[i].Name = name
		return
	}
	s.index[id] = len(s.entries)
	s.entries = append(s.entries, Entry{ID: id, Name: name})
}

// AllKnown 列出全部已知玩家
func (s *Static) AllKnown() ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, len(s.entries))
	for i, e := range s.entries {
		ids[i] = e.ID
	}
	return ids, nil
}

// DisplayName 显示名称
func (s *Static) DisplayName(id uuid.UUID) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.index[id]; ok {
		return s.entries[i].Name
	}
	return ""
}

// Lookup 查找玩家
func (s *Static) Lookup(nameOrToken string) (uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lookup(s.entries, s.index, nameOrToken)
}

func lookup(entries []Entry, index map[uuid.UUID]int, nameOrToken string) (uuid.UUID, error) {
	key := strings.TrimSpace(nameOrToken)
	if id, err := uuid.Parse(key); err == nil {
		if _, ok := index[id]; ok {
			return id, nil
		}
		return uuid.Nil, fmt.Errorf("player %s: %w", id, domain.ErrNotFound)
	}
	for _, e := range entries {
		if strings.EqualFold(e.Name, key) {
			return e.ID, nil
		}
	}
	return uuid.Nil, fmt.Errorf("player %q: %w", key, domain.ErrNotFound)
}
