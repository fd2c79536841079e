package service

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"cfchat/backend/internal/directory"
	"cfchat/backend/internal/record"
	"cfchat/backend/internal/storage/memory"
	"cfchat/backend/internal/websocket"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type published struct {
	Type   websocket.EventType
	Player uuid.UUID
	Data   any
}

// recordingPublisher 记录发布的事件
type recordingPublisher struct {
	events []published
}

func (p *recordingPublisher) Publish(eventType websocket.EventType, player uuid.UUID, data any) {
	p.events = append(p.events, published{Type: eventType, Player: player, Data: data})
}

// countingMetrics 统计指标调用
type countingMetrics struct {
	delivered   int
	read        int
	rateLimited int
	actions     map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{actions: make(map[string]int)}
}

func (m *countingMetrics) RecordMailDelivered()   { m.delivered++ }
func (m *countingMetrics) RecordMailRead()        { m.read++ }
func (m *countingMetrics) RecordMailRateLimited() { m.rateLimited++ }
func (m *countingMetrics) RecordModeration(action string) {
	m.actions[action]++
}

type fixture struct {
	clock   *fakeClock
	records *record.Store
	steve   uuid.UUID
	alex    uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock: &fakeClock{t: time.UnixMilli(1_700_000_000_000)},
		steve: uuid.New(),
		alex:  uuid.New(),
	}
	dir := directory.NewStatic(
		directory.Entry{ID: f.steve, Name: "Steve"},
		directory.Entry{ID: f.alex, Name: "Alex"},
	)
	f.records = record.NewStore(memory.NewStore(), dir, record.WithClock(f.clock.Now))
	_, err := f.records.ReloadAll()
	require.NoError(t, err)
	return f
}
