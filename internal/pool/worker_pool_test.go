package pool

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestWorkerPool(t *testing.T) {
	t.Run("执行全部已提交任务", func(t *testing.T) {
		p := NewWorkerPool(2, 10, zap.NewNop())
		p.Start(context.Background())

		var done atomic.Int32
		for i := 0; i < 5; i++ {
			assert.True(t, p.TrySubmit(func(ctx context.Context) { done.Add(1) }))
		}
		p.Stop()

		assert.Equal(t, int32(5), done.Load())
	})

	t.Run("任务 panic 不影响后续任务", func(t *testing.T) {
		p := NewWorkerPool(1, 10, zap.NewNop())
		p.Start(context.Background())

		var done atomic.Int32
		p.TrySubmit(func(ctx context.Context) { panic("boom") })
		p.TrySubmit(func(ctx context.Context) { done.Add(1) })
		p.Stop()

		assert.Equal(t, int32(1), done.Load())
	})

	t.Run("停止后拒绝新任务", func(t *testing.T) {
		p := NewWorkerPool(1, 1, zap.NewNop())
		p.Start(context.Background())
		p.Stop()
		p.Stop()

		assert.False(t, p.TrySubmit(func(ctx context.Context) {}))
	})

	t.Run("队列已满时立即返回", func(t *testing.T) {
		p := NewWorkerPool(1, 1, zap.NewNop())

		assert.True(t, p.TrySubmit(func(ctx context.Context) {}))
		assert.False(t, p.TrySubmit(func(ctx context.Context) {}))
	})
}
