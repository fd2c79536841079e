package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfchat/backend/internal/config"
	"cfchat/backend/internal/domain"
	"cfchat/backend/internal/websocket"
)

func newMailService(t *testing.T, f *fixture, cfg config.MailConfig) (*MailService, *countingMetrics, *recordingPublisher) {
	t.Helper()
	svc := NewMailService(f.records, cfg, nil)
	t.Cleanup(svc.Close)
	metrics := newCountingMetrics()
	pub := &recordingPublisher{}
	svc.SetMetrics(metrics)
	svc.SetPublisher(pub)
	return svc, metrics, pub
}

func TestMailService_Send(t *testing.T) {
	f := newFixture(t)
	svc, metrics, pub := newMailService(t, f, config.MailConfig{})

	first, err := svc.Send(f.steve, f.alex, "  hello alex  ")
	require.NoError(t, err)
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, "hello alex", first.Body)
	assert.True(t, first.Unread)
	assert.Equal(t, f.steve, first.Sender)

	second, err := svc.Send(domain.Console, f.alex, "server restart")
	require.NoError(t, err)
	assert.Equal(t, 2, second.ID)

	t.Run("写入双方的邮件日志", func(t *testing.T) {
		alex, err := f.records.Get(f.alex)
		require.NoError(t, err)
		lines, err := alex.LogList(domain.ChannelMail)
		require.NoError(t, err)
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], "from Steve: hello alex")
		assert.Contains(t, lines[1], "from Console: server restart")

		steve, err := f.records.Get(f.steve)
		require.NoError(t, err)
		lines, err = steve.LogList(domain.ChannelMail)
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], "to Alex: hello alex")
	})

	t.Run("指标与事件", func(t *testing.T) {
		assert.Equal(t, 2, metrics.delivered)
		require.Len(t, pub.events, 2)
		assert.Equal(t, websocket.EventMail, pub.events[0].Type)
		assert.Equal(t, f.alex, pub.events[0].Player)
		event := pub.events[0].Data.(MailEvent)
		assert.Equal(t, "Steve", event.From)
		assert.Equal(t, "Alex", event.To)
		assert.Equal(t, first.Display, event.SentAt)
	})
}

func TestMailService_SendErrors(t *testing.T) {
	f := newFixture(t)
	svc, metrics, _ := newMailService(t, f, config.MailConfig{})

	t.Run("正文为空", func(t *testing.T) {
		_, err := svc.Send(f.steve, f.alex, "   ")
		assert.ErrorIs(t, err, ErrEmptyMail)
	})

	t.Run("收件人不存在", func(t *testing.T) {
		_, err := svc.Send(f.steve, uuid.New(), "hi")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	assert.Zero(t, metrics.delivered)
}

func TestMailService_RateLimit(t *testing.T) {
	f := newFixture(t)
	svc, metrics, _ := newMailService(t, f, config.MailConfig{RatePerMinute: 6, Burst: 2})

	for i := 0; i < 2; i++ {
		_, err := svc.Send(f.steve, f.alex, "spam")
		require.NoError(t, err)
	}

	_, err := svc.Send(f.steve, f.alex, "spam")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, metrics.rateLimited)

	t.Run("其他发送者不受影响", func(t *testing.T) {
		_, err := svc.Send(f.alex, f.steve, "hi")
		assert.NoError(t, err)
	})

	t.Run("控制台不限流", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			_, err := svc.Send(domain.Console, f.alex, "notice")
			require.NoError(t, err)
		}
	})

	t.Run("令牌随时间恢复", func(t *testing.T) {
		f.clock.Advance(10 * time.Second)
		_, err := svc.Send(f.steve, f.alex, "again")
		assert.NoError(t, err)
	})

	alex, err := f.records.Get(f.alex)
	require.NoError(t, err)
	assert.Len(t, alex.AllMail(), 8, "被限流的邮件不投递")
}

func TestMailService_ReadListDelete(t *testing.T) {
	f := newFixture(t)
	svc, metrics, pub := newMailService(t, f, config.MailConfig{})

	for _, body := range []string{"one", "two", "three"} {
		_, err := svc.Send(f.steve, f.alex, body)
		require.NoError(t, err)
	}
	pub.events = nil

	item, err := svc.Read(f.alex, 2)
	require.NoError(t, err)
	assert.Equal(t, "two", item.Body)
	assert.False(t, item.Unread)
	assert.Equal(t, 1, metrics.read)
	require.Len(t, pub.events, 1)
	assert.Equal(t, websocket.EventMailRead, pub.events[0].Type)

	t.Run("重复读取不再计数", func(t *testing.T) {
		_, err := svc.Read(f.alex, 2)
		require.NoError(t, err)
		assert.Equal(t, 1, metrics.read)
	})

	t.Run("未读列表按编号排序", func(t *testing.T) {
		unread, err := svc.Unread(f.alex)
		require.NoError(t, err)
		require.Len(t, unread, 2)
		assert.Equal(t, 1, unread[0].ID)
		assert.Equal(t, 3, unread[1].ID)
	})

	t.Run("删除后编号不复用中间空位", func(t *testing.T) {
		require.NoError(t, svc.Delete(f.alex, 1))
		all, err := svc.List(f.alex)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, 2, all[0].ID)

		next, err := svc.Send(domain.Console, f.alex, "four")
		require.NoError(t, err)
		assert.Equal(t, 4, next.ID)
	})

	t.Run("编号不存在", func(t *testing.T) {
		_, err := svc.Read(f.alex, 99)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, svc.Delete(f.alex, 99), domain.ErrNotFound)
	})
}
