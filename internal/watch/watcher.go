// Package watch 监听数据段目录中的手工修改，并重新加载对应玩家。
package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultDebounce 同一文件连续事件的合并窗口
const DefaultDebounce = 250 * time.Millisecond

// Source 提供数据段文件位置的存储（filesystem 驱动）
type Source interface {
	BasePath() string
	ParsePath(path string) (uuid.UUID, bool)
	IsOwnWrite(id uuid.UUID) bool
}

// Reloader 重新加载单个玩家
type Reloader interface {
	ReloadOne(id uuid.UUID) error
}

// Watcher 把文件修改转换为 ReloadOne 调用
type Watcher struct {
	source   Source
	reloader Reloader
	log      *zap.Logger
	debounce time.Duration
	onReload func(id uuid.UUID, err error)

	mu      sync.Mutex
	pending map[uuid.UUID]struct{}
	timer   *time.Timer
	fire    chan struct{}
}

// Option 配置 Watcher
type Option func(*Watcher)

// WithDebounce 设置合并窗口
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithReloadHook 每次重新加载后回调（成功时 err 为 nil）
func WithReloadHook(fn func(id uuid.UUID, err error)) Option {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// New 创建监听器，Run 之前不会打开任何文件句柄
func New(source Source, reloader Reloader, log *zap.Logger, opts ...Option) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	w := &Watcher{
		source:   source,
		reloader: reloader,
		log:      log,
		debounce: DefaultDebounce,
		onReload: func(uuid.UUID, error) {},
		pending:  make(map[uuid.UUID]struct{}),
		fire:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run 监听直到 ctx 结束
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	dir := w.source.BasePath()
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.log.Info("开始监听数据段目录", zap.String("path", dir))

	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case <-w.fire:
			w.flush()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("数据段目录监听错误", zap.Error(err))
		}
	}
}

// handle 记录被修改的玩家，等待合并窗口结束后统一重新加载
func (w *Watcher) handle(event fsnotify.Event) {
	// 原子写入表现为 Create/Rename，编辑器直接保存表现为 Write
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	id, ok := w.source.ParsePath(event.Name)
	if !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[id] = struct{}{}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, func() {
			select {
			case w.fire <- struct{}{}:
			default:
			}
		})
	}
}

func (w *Watcher) flush() {
	w.mu.Lock()
	ids := make([]uuid.UUID, 0, len(w.pending))
	for id := range w.pending {
		ids = append(ids, id)
	}
	w.pending = make(map[uuid.UUID]struct{})
	w.timer = nil
	w.mu.Unlock()

	for _, id := range ids {
		if w.source.IsOwnWrite(id) {
			continue
		}
		err := w.reloader.ReloadOne(id)
		if err != nil {
			w.log.Warn("手工修改的数据段重新加载失败", zap.String("identity", id.String()), zap.Error(err))
		} else {
			w.log.Info("已重新加载手工修改的数据段", zap.String("identity", id.String()))
		}
		w.onReload(id, err)
	}
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
