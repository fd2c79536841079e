package monitoring

import (
	"context"
	"sort"
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
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Level      AlertLevel `json:"level"`
	Component  string     `json:"component"`
	Timestamp  time.Time  `json:"timestamp"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// AlertRule 告警规则，Check 返回非 nil 时触发
type AlertRule struct {
	ID        string
	Name      string
	Check     func() error
	Level     AlertLevel
	Component string
	Cooldown  time.Duration

	lastTriggered time.Time
}

// AlertReceiver 告警接收器接口
type AlertReceiver interface {
	SendAlert(alert *Alert) error
}

// AlertManager 告警管理器
//
// 同一规则同时只有一条未解决的告警，检查恢复正常时自动解决。
type AlertManager struct {
	alerts    map[string]*Alert
	rules     []*AlertRule
	receivers []AlertReceiver
	logger    *zap.Logger
	now       func() time.Time
	mu        sync.RWMutex
}

// NewAlertManager 创建告警管理器
func NewAlertManager(logger *zap.Logger) *AlertManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertManager{
		alerts: make(map[string]*Alert),
		logger: logger,
		now:    time.Now,
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
	am.rules = append(am.rules, &rule)
}

// TriggerAlert 触发告警，同 ID 的告警未解决时忽略
func (am *AlertManager) TriggerAlert(alert *Alert) {
	am.mu.Lock()
	if existing, exists := am.alerts[alert.ID]; exists && !existing.Resolved {
		am.mu.Unlock()
		return
	}
	am.alerts[alert.ID] = alert
	receivers := append([]AlertReceiver(nil), am.receivers...)
	am.mu.Unlock()

	for _, receiver := range receivers {
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

// ResolveAlert 解决告警
func (am *AlertManager) ResolveAlert(alertID string) {
	am.mu.Lock()
	defer am.mu.Unlock()

	if alert, exists := am.alerts[alertID]; exists && !alert.Resolved {
		now := am.now()
		alert.Resolved = true
		alert.ResolvedAt = &now

		am.logger.Info("Alert resolved",
			zap.String("alert_id", alertID),
		)
	}
}

// GetActiveAlerts 获取未解决的告警，按 ID 排序
func (am *AlertManager) GetActiveAlerts() []Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	alerts := make([]Alert, 0)
	for _, alert := range am.alerts {
		if !alert.Resolved {
			alerts = append(alerts, *alert)
		}
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].ID < alerts[j].ID })
	return alerts
}

// CheckRules 检查全部规则
func (am *AlertManager) CheckRules() {
	am.mu.RLock()
	rules := append([]*AlertRule(nil), am.rules...)
	am.mu.RUnlock()

	for _, rule := range rules {
		err := rule.Check()
		if err == nil {
			am.ResolveAlert(rule.ID)
			continue
		}

		now := am.now()
		am.mu.Lock()
		cooling := now.Sub(rule.lastTriggered) < rule.Cooldown
		if !cooling {
			rule.lastTriggered = now
		}
		am.mu.Unlock()
		if cooling {
			continue
		}

		am.TriggerAlert(&Alert{
			ID:        rule.ID,
			Title:     rule.Name,
			Message:   err.Error(),
			Level:     rule.Level,
			Component: rule.Component,
			Timestamp: now,
		})
	}
}

// StartMonitoring 定期检查规则直到 ctx 结束
func (am *AlertManager) StartMonitoring(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			am.CheckRules()
		}
	}
}

// ========== 内置告警规则 ==========

// SectionStoreRule 数据段存储不可用
func SectionStoreRule(health func() error) AlertRule {
	return AlertRule{
		ID:        "section_store",
		Name:      "Section Store Unavailable",
		Check:     health,
		Level:     AlertLevelCritical,
		Component: "storage",
		Cooldown:  time.Minute,
	}
}

// SaveFailureRule 最近一次全量保存有失败
func SaveFailureRule(lastSave func() error) AlertRule {
	return AlertRule{
		ID:        "record_save",
		Name:      "Record Save Failures",
		Check:     lastSave,
		Level:     AlertLevelWarning,
		Component: "records",
		Cooldown:  5 * time.Minute,
	}
}

// ========== 告警接收器实现 ==========

// LogAlertReceiver 日志告警接收器
type LogAlertReceiver struct {
	logger *zap.Logger
}

// NewLogAlertReceiver 创建日志告警接收器
func NewLogAlertReceiver(logger *zap.Logger) *LogAlertReceiver {
	if logger == nil {
		logger = zap.NewNop()
	}
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

// FuncAlertReceiver 把告警转交给函数（例如事件推送）
type FuncAlertReceiver func(alert *Alert) error

// SendAlert 调用函数本身
func (f FuncAlertReceiver) SendAlert(alert *Alert) error {
	return f(alert)
}
