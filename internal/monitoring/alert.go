package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AlertLevel 告警级别
type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "info"
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// Alert 告警
type Alert struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Level      AlertLevel     `json:"level"`
	Component  string         `json:"component"`
	Timestamp  time.Time      `json:"timestamp"`
	Resolved   bool           `json:"resolved"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// AlertRule 告警规则
type AlertRule struct {
	ID            string
	Name          string
	Condition     func() bool
	Level         AlertLevel
	Component     string
	Message       string
	Cooldown      time.Duration
	LastTriggered time.Time
}

// AlertManager 告警管理器
type AlertManager struct {
	alerts    map[string]*Alert
	rules     []AlertRule
	receivers []AlertReceiver
	logger    *zap.Logger
	mu        sync.RWMutex
}

// AlertReceiver 告警接收器接口
type AlertReceiver interface {
	SendAlert(alert *Alert) error
}

// NewAlertManager 创建告警管理器
func NewAlertManager(logger *zap.Logger) *AlertManager {
	return &AlertManager{
		alerts:    make(map[string]*Alert),
		rules:     make([]AlertRule, 0),
		receivers: make([]AlertReceiver, 0),
		logger:    logger,
	}
}

// AddReceiver 添加告警接收器
func (am *AlertManager) AddReceiver(receiver AlertReceiver) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.receivers = append(am.receivers, receiver)
}

// AddRule 添加告警规则
func (am *AlertManager) AddRule(rule AlertRule) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.rules = append(am.rules, rule)
}

// TriggerAlert 触发告警
func (am *AlertManager) TriggerAlert(alert *Alert) {
	am.mu.Lock()
	defer am.mu.Unlock()

	// 检查是否已存在相同的告警
	if existing, exists := am.alerts[alert.ID]; exists && !existing.Resolved {
		am.logger.Debug("Alert already exists and not resolved",
			zap.String("alert_id", alert.ID),
		)
		return
	}

	// 添加或更新告警
	am.alerts[alert.ID] = alert

	// 发送告警
	for _, receiver := range am.receivers {
		if err := receiver.SendAlert(alert); err != nil {
			am.logger.Error("Failed to send alert",
				zap.String("alert_id", alert.ID),
				zap.Error(err),
			)
		}
	}

	am.logger.Info("Alert triggered",
		zap.String("alert_id", alert.ID),
		zap.String("level", string(alert.Level)),
		zap.String("component", alert.Component),
	)
}

// ResolveAlert 将活跃告警标记为已解决
func (am *AlertManager) ResolveAlert(alertID string) {
	am.mu.Lock()
	defer am.mu.Unlock()

	if alert, exists := am.alerts[alertID]; exists && !alert.Resolved {
		now := time.Now()
		alert.Resolved = true
		alert.ResolvedAt = &now

		am.logger.Info("Alert resolved",
			zap.String("alert_id", alertID),
		)
	}
}

// GetActiveAlerts 获取未解决的告警
func (am *AlertManager) GetActiveAlerts() []Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	alerts := make([]Alert, 0)
	for _, alert := range am.alerts {
		if !alert.Resolved {
			alerts = append(alerts, *alert)
		}
	}

	return alerts
}

// ReadinessCheck 存在未解决的严重告警时返回错误，用于就绪检查
func (am *AlertManager) ReadinessCheck() func() error {
	return func() error {
		var critical []string
		for _, alert := range am.GetActiveAlerts() {
			if alert.Level == AlertLevelCritical {
				critical = append(critical, alert.ID)
			}
		}
		if len(critical) == 0 {
			return nil
		}
		sort.Strings(critical)
		return fmt.Errorf("active critical alerts: %s", strings.Join(critical, ", "))
	}
}

// CheckRules 检查告警规则
//
// 告警 ID 与规则 ID 相同：条件成立时触发（冷却期内不重复），条件恢复后自动解决。
func (am *AlertManager) CheckRules() {
	am.mu.RLock()
	rules := make([]AlertRule, len(am.rules))
	copy(rules, am.rules)
	am.mu.RUnlock()

	for _, rule := range rules {
		if !rule.Condition() {
			am.ResolveAlert(rule.ID)
			continue
		}

		if time.Since(rule.LastTriggered) < rule.Cooldown {
			continue
		}

		am.TriggerAlert(&Alert{
			ID:        rule.ID,
			Title:     rule.Name,
			Message:   rule.Message,
			Level:     rule.Level,
			Component: rule.Component,
			Timestamp: time.Now(),
		})

		am.mu.Lock()
		for i := range am.rules {
			if am.rules[i].ID == rule.ID {
				am.rules[i].LastTriggered = time.Now()
				break
			}
		}
		am.mu.Unlock()
	}
}

// StartMonitoring 按固定间隔检查告警规则，直到 ctx 取消
func (am *AlertManager) StartMonitoring(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			am.CheckRules()
		}
	}
}

// ========== 内置告警规则 ==========

// HighMemoryUsageRule 高内存使用告警规则，同时更新内存指标
func HighMemoryUsageRule(thresholdMB float64, metrics *Metrics) AlertRule {
	return AlertRule{
		ID:   "high_memory_usage",
		Name: "High Memory Usage",
		Condition: func() bool {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			if metrics != nil {
				metrics.UpdateMemoryUsage(m.Alloc)
			}
			memoryUsageMB := float64(m.Alloc) / 1024 / 1024
			return memoryUsageMB > thresholdMB
		},
		Level:     AlertLevelWarning,
		Component: "memory",
		Message:   fmt.Sprintf("Memory usage exceeds %.0f MB", thresholdMB),
		Cooldown:  5 * time.Minute,
	}
}

// HealthChecker 可探测健康状态的依赖
type HealthChecker interface {
	Health(ctx context.Context) error
}

// StorageConnectionRule 存储连接告警规则
func StorageConnectionRule(store HealthChecker, timeout time.Duration) AlertRule {
	return AlertRule{
		ID:   "storage_connection",
		Name: "Storage Connection",
		Condition: func() bool {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			return store.Health(ctx) != nil
		},
		Level:     AlertLevelCritical,
		Component: "storage",
		Message:   "Submission storage is unreachable",
		Cooldown:  1 * time.Minute,
	}
}

// ========== 告警接收器实现 ==========

// LogAlertReceiver 日志告警接收器
type LogAlertReceiver struct {
	logger *zap.Logger
}

// NewLogAlertReceiver 创建日志告警接收器
func NewLogAlertReceiver(logger *zap.Logger) *LogAlertReceiver {
	return &LogAlertReceiver{logger: logger}
}

// SendAlert 发送告警到日志
func (lar *LogAlertReceiver) SendAlert(alert *Alert) error {
	fields := []zap.Field{
		zap.String("alert_id", alert.ID),
		zap.String("title", alert.Title),
		zap.String("message", alert.Message),
		zap.String("component", alert.Component),
		zap.Time("timestamp", alert.Timestamp),
	}

	switch alert.Level {
	case AlertLevelCritical:
		lar.logger.Error("CRITICAL ALERT", fields...)
	case AlertLevelWarning:
		lar.logger.Warn("WARNING ALERT", fields...)
	default:
		lar.logger.Info("INFO ALERT", fields...)
	}

	return nil
}
