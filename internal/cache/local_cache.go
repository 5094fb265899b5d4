package cache

import (
	"context"
	"sync"
	"time"
)

// LocalCache 本地内存缓存
//
// 特点：
// - 使用 sync.Map 实现无锁读取
// - 支持 TTL 过期，每次命中刷新过期时间
// - 由 Run 定期清理过期条目
type LocalCache struct {
	data     sync.Map
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

type cacheEntry struct {
	value     any
	expiresAt atomicTime
}

// atomicTime 并发安全的过期时间
type atomicTime struct {
	mu sync.Mutex
	t  time.Time
}

func (a *atomicTime) load() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.t
}

func (a *atomicTime) store(t time.Time) {
	a.mu.Lock()
	a.t = t
	a.mu.Unlock()
}

// NewLocalCache 创建本地缓存
//
// 参数:
//   - ttl: 条目空闲多久后过期
//   - interval: 清理过期条目的间隔
func NewLocalCache(ttl, interval time.Duration) *LocalCache {
	return &LocalCache{
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
	}
}

// Get 获取缓存值
func (c *LocalCache) Get(key string) (any, bool) {
	val, ok := c.data.Load(key)
	if !ok {
		return nil, false
	}

	entry := val.(*cacheEntry)

	// 检查是否过期
	now := c.now()
	if now.After(entry.expiresAt.load()) {
		c.data.Delete(key)
		return nil, false
	}
	entry.expiresAt.store(now.Add(c.ttl))

	return entry.value, true
}

// GetOrSet 返回已有的值，不存在时保存 create 的结果
func (c *LocalCache) GetOrSet(key string, create func() any) any {
	if v, ok := c.Get(key); ok {
		return v
	}

	entry := &cacheEntry{value: create()}
	entry.expiresAt.store(c.now().Add(c.ttl))

	actual, _ := c.data.LoadOrStore(key, entry)
	return actual.(*cacheEntry).value
}

// Delete 删除缓存值
func (c *LocalCache) Delete(key string) {
	c.data.Delete(key)
}

// Len 返回当前条目数（包含尚未清理的过期条目）
func (c *LocalCache) Len() int {
	n := 0
	c.data.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Run 定期清理过期条目，直到 ctx 取消
func (c *LocalCache) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep 删除所有过期条目
func (c *LocalCache) sweep() {
	now := c.now()
	c.data.Range(func(key, value any) bool {
		entry := value.(*cacheEntry)
		if now.After(entry.expiresAt.load()) {
			c.data.Delete(key)
		}
		return true
	})
}
