package watch

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfchat/backend/internal/directory"
	"cfchat/backend/internal/record"
	"cfchat/backend/internal/storage/filesystem"
)

// countingReloader 统计重新加载次数
type countingReloader struct {
	next *record.Store

	mu  sync.Mutex
	ids []uuid.UUID
}

func (r *countingReloader) ReloadOne(id uuid.UUID) error {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
	return r.next.ReloadOne(id)
}

func (r *countingReloader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

type fixture struct {
	sections *filesystem.Store
	records  *record.Store
	reloader *countingReloader
	steve    uuid.UUID
}

func startWatcher(t *testing.T) *fixture {
	t.Helper()
	sections, err := filesystem.NewStore(t.TempDir())
	require.NoError(t, err)

	steve := uuid.New()
	dir := directory.NewStatic(directory.Entry{ID: steve, Name: "Steve"})
	records := record.NewStore(sections, dir)
	_, err = records.ReloadAll()
	require.NoError(t, err)

	f := &fixture{
		sections: sections,
		records:  records,
		reloader: &countingReloader{next: records},
		steve:    steve,
	}

	w := New(sections, f.reloader, nil, WithDebounce(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	// 等待监听生效
	time.Sleep(50 * time.Millisecond)
	return f
}

func TestWatcher_HandEditReloads(t *testing.T) {
	f := startWatcher(t)

	sec, err := f.sections.LoadSection(f.steve)
	require.NoError(t, err)
	require.NoError(t, sec.Set("groups", []string{"admin"}))
	data, err := sec.Marshal()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.sections.PathFor(f.steve), data, 0o644))

	assert.Eventually(t, func() bool {
		rec, err := f.records.Get(f.steve)
		return err == nil && rec.InGroup("admin")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresOwnWrites(t *testing.T) {
	f := startWatcher(t)

	rec, err := f.records.Get(f.steve)
	require.NoError(t, err)
	require.NoError(t, rec.AddGroup("builder"))
	require.NoError(t, f.records.SaveOne(f.steve))

	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, f.reloader.count())

	rec, err = f.records.Get(f.steve)
	require.NoError(t, err)
	assert.True(t, rec.InGroup("builder"))
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	f := startWatcher(t)

	require.NoError(t, os.WriteFile(f.sections.BasePath()+"/notes.txt", []byte("hello"), 0o644))

	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, f.reloader.count())
}
