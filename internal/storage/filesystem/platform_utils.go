package filesystem

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"

	"cfchat/backend/internal/storage"
)

// SectionExt 数据段文件扩展名
const SectionExt = ".yml"

// PlatformUtils 平台兼容性工具
type PlatformUtils struct{}

// NewPlatformUtils 创建平台工具实例
func NewPlatformUtils() *PlatformUtils {
	return &PlatformUtils{}
}

// ValidatePath 验证路径是否安全
func (p *PlatformUtils) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	if len(path) > 2000 {
		return fmt.Errorf("path too long: %d characters", len(path))
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("path traversal detected: %s", path)
		}
	}
	return nil
}

// IsCaseSensitive 检查当前文件系统是否大小写敏感
func (p *PlatformUtils) IsCaseSensitive() bool {
	switch runtime.GOOS {
	case "windows", "darwin":
		return false
	default:
		return true
	}
}

// NormalizePath 转换为绝对路径并清理
func (p *PlatformUtils) NormalizePath(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(absPath)
}

// SectionFilename 玩家数据段的文件名，总是小写标识加扩展名
func (p *PlatformUtils) SectionFilename(id uuid.UUID) string {
	return id.String() + SectionExt
}

// ParseSectionFilename 从文件名解析标识。
// 大小写不敏感的文件系统上可能出现手工改名的大写文件名，同样接受。
func (p *PlatformUtils) ParseSectionFilename(name string) (uuid.UUID, bool) {
	name = filepath.Base(name)
	if !p.IsCaseSensitive() {
		name = strings.ToLower(name)
	}
	return storage.ParseKey(name, "", SectionExt)
}
