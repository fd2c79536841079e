package storage

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"cfchat/backend/internal/section"
)

var (
	// ErrSectionNotFound 该玩家还没有数据段
	ErrSectionNotFound = errors.New("player section not found")
	// ErrClosed 存储已关闭
	ErrClosed = errors.New("section store closed")
)

// SectionStore 以玩家标识为键持久化层级数据段。
//
// 每次保存都是整段覆盖；实现必须允许多个 goroutine 并发调用，
// 同一标识的并发写入以最后一次为准。
type SectionStore interface {
	// LoadSection 读取数据段，不存在时返回 ErrSectionNotFound
	LoadSection(id uuid.UUID) (*section.Section, error)
	// SaveSection 覆盖写入数据段
	SaveSection(id uuid.UUID, sec *section.Section) error
	// ListSections 列出已有数据段的标识
	ListSections() ([]uuid.UUID, error)
	// Health 检查底层存储是否可用
	Health() error
	// Close 释放底层资源
	Close() error
}

// Encode 把数据段编码为存储使用的文本
func Encode(id uuid.UUID, sec *section.Section) ([]byte, error) {
	data, err := sec.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode section %s: %w", id, err)
	}
	return data, nil
}

// Decode 解析存储中读出的文本
func Decode(id uuid.UUID, data []byte) (*section.Section, error) {
	sec, err := section.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("decode section %s: %w", id, err)
	}
	return sec, nil
}

// ParseKey 从存储键中解析玩家标识，非标识键返回 false
func ParseKey(key, prefix, suffix string) (uuid.UUID, bool) {
	if len(key) < len(prefix)+len(suffix) || key[:len(prefix)] != prefix || key[len(key)-len(suffix):] != suffix {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(key[len(prefix) : len(key)-len(suffix)])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
