package filesystem

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// TestPlatformUtils 测试平台兼容性工具
func TestPlatformUtils(t *testing.T) {
	utils := NewPlatformUtils()

	t.Run("validate path", func(t *testing.T) {
		validPaths := []string{
			"data/players",
			"./data/players",
			"/tmp/cfchat",
			"data/..hidden",
		}
		for _, path := range validPaths {
			assert.NoError(t, utils.ValidatePath(path), "Path should be valid: %s", path)
		}

		invalidPaths := []string{
			"",
			"../../../etc/passwd",
			"data/../etc/passwd",
			"data/..",
			strings.Repeat("a", 3000),
		}
		for _, path := range invalidPaths {
			assert.Error(t, utils.ValidatePath(path), "Path should be invalid: %s", path)
		}
	})

	t.Run("normalize path", func(t *testing.T) {
		normalized := utils.NormalizePath("test/./path/")
		assert.True(t, filepath.IsAbs(normalized))
		assert.True(t, strings.HasSuffix(filepath.ToSlash(normalized), "test/path"))
	})

	t.Run("section filename", func(t *testing.T) {
		id := uuid.New()
		name := utils.SectionFilename(id)
		assert.Equal(t, id.String()+".yml", name)

		got, ok := utils.ParseSectionFilename(filepath.Join("some", "dir", name))
		assert.True(t, ok)
		assert.Equal(t, id, got)

		for _, bad := range []string{"players.yml", name + ".tmp", ".tmp-123", id.String() + ".json"} {
			_, ok := utils.ParseSectionFilename(bad)
			assert.False(t, ok, bad)
		}
	})
}
