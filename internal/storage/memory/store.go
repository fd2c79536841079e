package memory

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"cfchat/backend/internal/section"
	"cfchat/backend/internal/storage"
)

// Store 使用内存保存数据段文本，主要用于开发验证与测试。
//
// 保存的是编码后的文本而不是节点树，读取时重新解析，
// 行为与落盘的实现一致。
type Store struct {
	mu     sync.RWMutex
	data   map[uuid.UUID][]byte
	closed bool
}

// NewStore 创建内存存储
func NewStore() *Store {
	return &Store{data: make(map[uuid.UUID][]byte)}
}

// LoadSection 读取数据段
func (s *Store) LoadSection(id uuid.UUID) (*section.Section, error) {
	s.mu.RLock()
	raw, ok := s.data[id]
	closed := s.closed
	s.mu.RUnlock()

	if closed {
		return nil, storage.ErrClosed
	}
	if !ok {
		return nil, storage.ErrSectionNotFound
	}
	return storage.Decode(id, raw)
}

// SaveSection 覆盖写入数据段
func (s *Store) SaveSection(id uuid.UUID, sec *section.Section) error {
	raw, err := storage.Encode(id, sec)
	if err != nil {
		return err
	}
	return s.Put(id, raw)
}

// Put 直接写入原始文本，不做校验
func (s *Store) Put(id uuid.UUID, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	s.data[id] = append([]byte(nil), raw...)
	return nil
}

// Raw 读取原始文本
func (s *Store) Raw(id uuid.UUID) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[id]
	return append([]byte(nil), raw...), ok
}

// ListSections 列出全部标识，按字符串顺序
func (s *Store) ListSections() ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrClosed
	}

	ids := make([]uuid.UUID, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// Health 检查存储状态
func (s *Store) Health() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrClosed
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
