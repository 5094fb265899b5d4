// Package ratelimit 限制单个客户端的联系表单提交频率。
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"portfolio/backend/internal/cache"
)

// Limiter 判断某个键的请求是否放行
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// LocalLimiter 基于令牌桶的进程内限流，每个键一个桶
type LocalLimiter struct {
	buckets *cache.LocalCache
	limit   rate.Limit
	burst   int
}

// NewLocalLimiter 创建每分钟 perMinute 次的进程内限流器
//
// 桶保存在 buckets 中，空闲超过缓存 TTL 的桶会被回收。
func NewLocalLimiter(perMinute int, buckets *cache.LocalCache) *LocalLimiter {
	return &LocalLimiter{
		buckets: buckets,
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
	}
}

// Allow 消耗一个令牌
func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	limiter := l.buckets.GetOrSet(key, func() any {
		return rate.NewLimiter(l.limit, l.burst)
	}).(*rate.Limiter)
	return limiter.Allow(), nil
}

// WindowCounter 固定窗口计数器
type WindowCounter interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisLimiter 基于 Redis 固定窗口计数的限流，多实例部署时共享计数
type RedisLimiter struct {
	counter   WindowCounter
	perWindow int64
	window    time.Duration
	prefix    string
}

// NewRedisLimiter 创建每分钟 perMinute 次的分布式限流器
func NewRedisLimiter(counter WindowCounter, perMinute int) *RedisLimiter {
	return &RedisLimiter{
		counter:   counter,
		perWindow: int64(perMinute),
		window:    time.Minute,
		prefix:    "portfolio:ratelimit:contact:",
	}
}

// Allow 对当前窗口计数并判断是否超限
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.counter.IncrementWindow(ctx, l.prefix+key, l.window)
	if err != nil {
		return false, fmt.Errorf("increment rate limit counter: %w", err)
	}
	return count <= l.perWindow, nil
}
