package health

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

// Pinger 可探测连通性的依赖
type Pinger interface {
	Health(ctx context.Context) error
}

// PingFunc 将函数适配为 Pinger
type PingFunc func(ctx context.Context) error

// Health 调用函数本身
func (f PingFunc) Health(ctx context.Context) error {
	return f(ctx)
}

// HealthChecker 健康检查器
type HealthChecker struct {
	health  healthcheck.Handler
	store   Pinger
	timeout time.Duration
	started time.Time
	logger  *zap.Logger
}

// NewHealthChecker 创建健康检查器
//
// 存储连通性作为就绪检查；redis 为 nil 时不添加 Redis 检查。
func NewHealthChecker(store Pinger, redis Pinger, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health:  healthcheck.NewHandler(),
		store:   store,
		timeout: 2 * time.Second,
		started: time.Now(),
		logger:  logger,
	}

	// 协程泄漏检查
	hc.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(1000))

	// 存储连接检查
	hc.health.AddReadinessCheck("storage", hc.check(store))

	// Redis 连接检查（如果启用）
	if redis != nil {
		hc.health.AddReadinessCheck("redis", hc.check(redis))
	}

	return hc
}

// AddReadinessCheck 追加就绪检查，例如未解决的严重告警
func (hc *HealthChecker) AddReadinessCheck(name string, check func() error) {
	hc.health.AddReadinessCheck(name, check)
}

// check 为依赖探测加上超时
func (hc *HealthChecker) check(p Pinger) healthcheck.Check {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), hc.timeout)
		defer cancel()
		return p.Health(ctx)
	}
}

// LiveHandler 存活检查处理器
func (hc *HealthChecker) LiveHandler() http.HandlerFunc {
	return hc.health.LiveEndpoint
}

// ReadyHandler 就绪检查处理器
func (hc *HealthChecker) ReadyHandler() http.HandlerFunc {
	return hc.health.ReadyEndpoint
}

// CheckStorage 检查存储连接，失败时记录日志
func (hc *HealthChecker) CheckStorage(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	if err := hc.store.Health(ctx); err != nil {
		hc.logger.Error("storage health check failed", zap.Error(err))
		return err
	}
	return nil
}

// Uptime 返回进程运行时间
func (hc *HealthChecker) Uptime() time.Duration {
	return time.Since(hc.started)
}
