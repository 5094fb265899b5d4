package pool

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// WorkerPool 协程池
//
// 用于限制后台任务（如邮件通知）的并发数量，队列满时调用方可以选择丢弃任务
type WorkerPool struct {
	maxWorkers int
	taskQueue  chan func(ctx context.Context)
	wg         sync.WaitGroup
	log        *zap.Logger

	mu      sync.RWMutex
	stopped bool
	once    sync.Once
}

// NewWorkerPool 创建协程池
//
// 参数:
//   - maxWorkers: 最大协程数
//   - queueSize: 任务队列大小
//   - log: 记录任务 panic 的日志器
func NewWorkerPool(maxWorkers, queueSize int, log *zap.Logger) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &WorkerPool{
		maxWorkers: maxWorkers,
		taskQueue:  make(chan func(ctx context.Context), queueSize),
		log:        log,
	}
}

// Start 启动协程池，ctx 取消后工作协程退出
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// TrySubmit 尝试提交任务
//
// 如果队列已满或协程池已停止，立即返回 false
func (p *WorkerPool) TrySubmit(task func(ctx context.Context)) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}

	select {
	case p.taskQueue <- task:
		return true
	default:
		return false
	}
}

// Stop 停止接收任务并等待队列中的任务执行完毕，可重复调用
func (p *WorkerPool) Stop() {
	p.once.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.taskQueue)
		p.mu.Unlock()
	})
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
			p.run(ctx, task)
		}
	}
}

// run 执行任务（捕获 panic）
func (p *WorkerPool) run(ctx context.Context, task func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("worker task panicked", zap.Any("panic", r))
		}
	}()
	task(ctx)
}
