package memory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfchat/backend/internal/section"
	"cfchat/backend/internal/storage"
)

func TestMemoryStore_SaveLoad(t *testing.T) {
	store := NewStore()
	id := uuid.New()

	_, err := store.LoadSection(id)
	assert.ErrorIs(t, err, storage.ErrSectionNotFound)

	sec := section.New()
	require.NoError(t, sec.Set("name", "Steve"))
	require.NoError(t, store.SaveSection(id, sec))

	// 保存之后修改原对象不影响已保存的内容
	require.NoError(t, sec.Set("name", "Alex"))

	loaded, err := store.LoadSection(id)
	require.NoError(t, err)
	name, err := loaded.GetString("name")
	require.NoError(t, err)
	assert.Equal(t, "Steve", name)

	ids, err := store.ListSections()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, ids)
}

func TestMemoryStore_CorruptRaw(t *testing.T) {
	store := NewStore()
	id := uuid.New()
	require.NoError(t, store.Put(id, []byte("- just\n- a list\n")))

	_, err := store.LoadSection(id)
	assert.ErrorIs(t, err, section.ErrTypeMismatch)
}

func TestMemoryStore_Closed(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Health())
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Health(), storage.ErrClosed)
	assert.ErrorIs(t, store.SaveSection(uuid.New(), section.New()), storage.ErrClosed)
	_, err := store.ListSections()
	assert.ErrorIs(t, err, storage.ErrClosed)
}
