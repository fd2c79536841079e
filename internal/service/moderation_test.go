package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfchat/backend/internal/domain"
	"cfchat/backend/internal/websocket"
)

func newModerationService(f *fixture) (*ModerationService, *countingMetrics, *recordingPublisher) {
	svc := NewModerationService(f.records, nil)
	metrics := newCountingMetrics()
	pub := &recordingPublisher{}
	svc.SetMetrics(metrics)
	svc.SetPublisher(pub)
	return svc, metrics, pub
}

func TestModerationService_Warn(t *testing.T) {
	f := newFixture(t)
	svc, metrics, pub := newModerationService(f)

	w, err := svc.Warn(f.steve, f.alex, " spam§bot ")
	require.NoError(t, err)
	assert.Equal(t, "spam§bot", w.Reason)
	assert.Equal(t, f.steve, w.Issuer)

	_, err = svc.Warn(domain.Console, f.alex, "caps")
	require.NoError(t, err)

	warnings, err := svc.Warnings(f.alex, 0, 10)
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	assert.Equal(t, "caps", warnings[1].Reason)

	assert.Equal(t, 2, metrics.actions[ActionWarn])
	require.Len(t, pub.events, 2)
	assert.Equal(t, websocket.EventWarning, pub.events[1].Type)
	assert.Equal(t, ModerationEvent{Issuer: "Console", Reason: "caps", Index: 1}, pub.events[1].Data)

	t.Run("删除警告", func(t *testing.T) {
		require.NoError(t, svc.RemoveWarning(f.alex, 0))
		warnings, err := svc.Warnings(f.alex, 0, 10)
		require.NoError(t, err)
		require.Len(t, warnings, 1)
		assert.Equal(t, "caps", warnings[0].Reason)
		assert.Equal(t, 1, metrics.actions[ActionRemoveWarning])
	})

	t.Run("未知玩家", func(t *testing.T) {
		_, err := svc.Warn(f.steve, uuid.New(), "x")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestModerationService_MuteLifecycle(t *testing.T) {
	f := newFixture(t)
	svc, metrics, pub := newModerationService(f)

	status, err := svc.Mute(f.steve, f.alex, 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, status.Active)
	assert.Equal(t, f.steve, status.Issuer)
	assert.True(t, status.ReleaseAt.Equal(f.clock.Now().Add(10*time.Minute)))

	muted, err := svc.IsMuted(f.alex)
	require.NoError(t, err)
	assert.True(t, muted)
	require.Len(t, pub.events, 1)
	assert.Equal(t, websocket.EventMute, pub.events[0].Type)

	t.Run("到期后自动解除", func(t *testing.T) {
		f.clock.Advance(10 * time.Minute)
		muted, err := svc.IsMuted(f.alex)
		require.NoError(t, err)
		assert.False(t, muted)

		rec, err := f.records.Get(f.alex)
		require.NoError(t, err)
		assert.Equal(t, domain.MuteStatus{}, rec.MuteStatus())
	})

	t.Run("手动解除", func(t *testing.T) {
		_, err := svc.Mute(domain.Console, f.alex, time.Hour)
		require.NoError(t, err)

		wasMuted, err := svc.Unmute(f.steve, f.alex)
		require.NoError(t, err)
		assert.True(t, wasMuted)

		wasMuted, err = svc.Unmute(f.steve, f.alex)
		require.NoError(t, err)
		assert.False(t, wasMuted, "未禁言时不记录操作")
	})

	assert.Equal(t, 2, metrics.actions[ActionMute])
	assert.Equal(t, 1, metrics.actions[ActionUnmute])
}

func TestModerationService_MuteInvalidDuration(t *testing.T) {
	f := newFixture(t)
	svc, metrics, _ := newModerationService(f)

	_, err := svc.Mute(f.steve, f.alex, 0)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = svc.Mute(f.steve, f.alex, -time.Minute)
	assert.ErrorIs(t, err, ErrInvalidDuration)
	assert.Zero(t, metrics.actions[ActionMute])
}
