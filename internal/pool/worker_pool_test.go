package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool(t *testing.T) {
	var (
		mu     sync.Mutex
		failed = map[string]string{}
		done   atomic.Int32
	)
	p := NewWorkerPool(3, 4, func(name string, err error) {
		mu.Lock()
		failed[name] = err.Error()
		mu.Unlock()
	})
	p.Start(context.Background())

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(ctx, Task{Name: "ok", Run: func() error {
			done.Add(1)
			return nil
		}}))
	}
	require.NoError(t, p.Submit(ctx, Task{Name: "broken", Run: func() error {
		return errors.New("disk full")
	}}))
	require.NoError(t, p.Submit(ctx, Task{Name: "panic", Run: func() error {
		panic("boom")
	}}))
	p.Stop()

	assert.Equal(t, int32(10), done.Load())
	assert.Equal(t, "disk full", failed["broken"])
	assert.Contains(t, failed["panic"], "boom")
	assert.NotContains(t, failed, "ok")
}

func TestWorkerPool_SubmitCancelled(t *testing.T) {
	// 不启动工作协程，队列为 0，提交只能等待 ctx
	p := NewWorkerPool(1, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Submit(ctx, Task{Name: "x", Run: func() error { return nil }})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, p.TrySubmit(Task{Name: "y", Run: func() error { return nil }}))
}
