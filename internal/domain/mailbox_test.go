package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailbox_DeliveryAndReadState(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	sender := uuid.New()
	b := NewMailbox()

	item, err := b.Deliver(1, sender, "hi", now)
	require.NoError(t, err)
	assert.True(t, item.Unread)
	assert.Equal(t, sender, item.Sender)
	assert.Equal(t, FormatDisplay(now), item.Display)

	unread := b.Unread()
	assert.Contains(t, unread, 1)

	require.NoError(t, b.MarkRead(1))
	assert.Empty(t, b.Unread())

	got, err := b.Get(1)
	require.NoError(t, err)
	assert.False(t, got.Unread)
	assert.Equal(t, "hi", got.Body)
}

func TestMailbox_DuplicateID(t *testing.T) {
	b := NewMailbox()
	_, err := b.Deliver(7, Console, "first", time.Now())
	require.NoError(t, err)

	_, err = b.Deliver(7, Console, "second", time.Now())
	assert.ErrorIs(t, err, ErrDuplicateMailID)

	got, err := b.Get(7)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Body)
}

func TestMailbox_NotFound(t *testing.T) {
	b := NewMailbox()
	_, err := b.Get(3)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, b.MarkRead(3), ErrNotFound)
	assert.ErrorIs(t, b.Delete(3), ErrNotFound)
}

func TestMailbox_IDsAndNextID(t *testing.T) {
	b := NewMailbox()
	assert.Equal(t, 1, b.NextID())

	for _, id := range []int{5, 2, 9} {
		_, err := b.Deliver(id, Console, "x", time.Now())
		require.NoError(t, err)
	}
	assert.Equal(t, []int{2, 5, 9}, b.IDs())
	assert.Equal(t, 10, b.NextID())

	require.NoError(t, b.Delete(9))
	assert.Equal(t, 6, b.NextID())
	assert.Equal(t, 2, b.Len())
}

func TestMailbox_GetReturnsCopy(t *testing.T) {
	b := NewMailbox()
	_, err := b.Deliver(1, Console, "x", time.Now())
	require.NoError(t, err)

	got, _ := b.Get(1)
	got.Unread = false
	again, _ := b.Get(1)
	assert.True(t, again.Unread)
}
