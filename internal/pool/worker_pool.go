package pool

import (
	"context"
	"fmt"
	"sync"
)

// WorkerPool 协程池
//
// 用于限制并发协程数量。任务返回的错误与 panic 都交给 onError，
// 不会中断其他任务。
type WorkerPool struct {
	maxWorkers int
	taskQueue  chan Task
	wg         sync.WaitGroup
	onError    func(name string, err error)
}

// Task 命名任务，名称用于错误报告
type Task struct {
	Name string
	Run  func() error
}

// NewWorkerPool 创建协程池
//
// 参数:
//   - maxWorkers: 最大协程数，小于 1 时按 1 处理
//   - queueSize: 任务队列大小
//   - onError: 任务失败回调，可为 nil；会被多个协程并发调用
func NewWorkerPool(maxWorkers, queueSize int, onError func(name string, err error)) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if onError == nil {
		onError = func(string, error) {}
	}
	return &WorkerPool{
		maxWorkers: maxWorkers,
		taskQueue:  make(chan Task, queueSize),
		onError:    onError,
	}
}

// Start 启动协程池
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Submit 提交任务
//
// 如果队列已满，会阻塞直到有空位或 ctx 结束
func (p *WorkerPool) Submit(ctx context.Context, task Task) error {
	select {
	case p.taskQueue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit 尝试提交任务
//
// 如果队列已满，立即返回 false
func (p *WorkerPool) TrySubmit(task Task) bool {
	select {
	case p.taskQueue <- task:
		return true
	default:
		return false
	}
}

// Stop 停止接收任务并等待队列中的任务完成
func (p *WorkerPool) Stop() {
	close(p.taskQueue)
	p.wg.Wait()
}

// worker 工作协程
func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}
			if err := p.run(task); err != nil {
				p.onError(task.Name, err)
			}
		}
	}
}

// run 执行任务（捕获 panic）
func (p *WorkerPool) run(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task.Run()
}
