package redis

import (
	"testing"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"cfchat/backend/internal/storage"
)

func TestStore_Key(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	s := NewFromClient(rdb, "cfchat:player:", nil)
	id := uuid.New()

	key := s.Key(id)
	assert.Equal(t, "cfchat:player:"+id.String(), key)

	got, ok := storage.ParseKey(key, "cfchat:player:", "")
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestStore_ClosedClient(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	s := NewFromClient(rdb, "p:", nil)
	assert.NoError(t, s.Close())

	assert.ErrorIs(t, s.Health(), storage.ErrClosed)
	_, err := s.LoadSection(uuid.New())
	assert.ErrorIs(t, err, storage.ErrClosed)
}
