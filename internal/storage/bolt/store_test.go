package bolt

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfchat/backend/internal/section"
	"cfchat/backend/internal/storage"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sub", "players.db")
	store, err := Open(path)
	require.NoError(t, err)
	return store, path
}

func TestStore_SaveLoadList(t *testing.T) {
	store, _ := openTestStore(t)
	defer store.Close()
	id := uuid.New()

	_, err := store.LoadSection(id)
	assert.ErrorIs(t, err, storage.ErrSectionNotFound)

	sec := section.New()
	require.NoError(t, sec.Set("chat.mute.on", true))
	require.NoError(t, sec.Set("mail.1.message", "hi"))
	require.NoError(t, store.SaveSection(id, sec))

	loaded, err := store.LoadSection(id)
	require.NoError(t, err)
	on, err := loaded.GetBool("chat.mute.on")
	require.NoError(t, err)
	assert.True(t, on)

	ids, err := store.ListSections()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, ids)
	assert.NoError(t, store.Health())
}

func TestStore_Reopen(t *testing.T) {
	store, path := openTestStore(t)
	id := uuid.New()

	sec := section.New()
	require.NoError(t, sec.Set("name", "Steve"))
	require.NoError(t, store.SaveSection(id, sec))
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Health(), storage.ErrClosed)

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.LoadSection(id)
	require.NoError(t, err)
	name, err := loaded.GetString("name")
	require.NoError(t, err)
	assert.Equal(t, "Steve", name)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}
