package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"portfolio/backend/internal/domain"
)

// Metrics 监控指标
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 投稿指标
	SubmissionsTotal *prometheus.CounterVec

	// 管理接口指标
	AdminAuthFailures *prometheus.CounterVec
	AdminStreamsOpen  prometheus.Gauge

	// 通知指标
	NotificationsTotal *prometheus.CounterVec

	// 系统指标
	SystemUptime prometheus.Gauge
	MemoryUsage  prometheus.Gauge

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// 限流指标
	RateLimitBlocks *prometheus.CounterVec
}

// NewMetrics 创建监控指标
//
// 每个实例使用独立的注册表，并附带 Go 运行时与进程指标。
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// HTTP 请求指标
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portfolio_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portfolio_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portfolio_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "endpoint"},
		),

		// 投稿指标
		SubmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_submissions_total",
				Help: "Total number of submission lifecycle events",
			},
			[]string{"event"},
		),

		// 管理接口指标
		AdminAuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_admin_auth_failures_total",
				Help: "Total number of rejected admin requests",
			},
			[]string{"reason"},
		),

		AdminStreamsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "portfolio_admin_streams_open",
				Help: "Number of open admin live feed connections",
			},
		),

		// 通知指标
		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_notifications_total",
				Help: "Total number of submission notifications by result",
			},
			[]string{"result"},
		),

		// 系统指标
		SystemUptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "portfolio_system_uptime_seconds",
				Help: "System uptime in seconds",
			},
		),

		MemoryUsage: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "portfolio_memory_usage_bytes",
				Help: "Heap memory in use in bytes",
			},
		),

		// 错误指标
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "portfolio_panics_total",
				Help: "Total number of panics",
			},
		),

		// 限流指标
		RateLimitBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_rate_limit_blocks_total",
				Help: "Total number of requests rejected by rate limiting",
			},
			[]string{"type"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, requestSize, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// OnSubmissionEvent 统计投稿生命周期事件
func (m *Metrics) OnSubmissionEvent(event domain.SubmissionEvent) {
	m.SubmissionsTotal.WithLabelValues(string(event.Type)).Inc()
}

// RecordAdminAuthFailure 记录管理接口鉴权失败
func (m *Metrics) RecordAdminAuthFailure(reason string) {
	m.AdminAuthFailures.WithLabelValues(reason).Inc()
}

// UpdateAdminStreams 更新实时面板连接数
func (m *Metrics) UpdateAdminStreams(count int) {
	m.AdminStreamsOpen.Set(float64(count))
}

// RecordNotification 记录邮件通知结果
func (m *Metrics) RecordNotification(result string) {
	m.NotificationsTotal.WithLabelValues(result).Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流阻止
func (m *Metrics) RecordRateLimitBlock(limitType string) {
	m.RateLimitBlocks.WithLabelValues(limitType).Inc()
}

// UpdateSystemUptime 更新系统运行时间
func (m *Metrics) UpdateSystemUptime(uptime time.Duration) {
	m.SystemUptime.Set(uptime.Seconds())
}

// UpdateMemoryUsage 更新内存使用量
func (m *Metrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
