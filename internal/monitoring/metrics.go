package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "cfchat"
	scopeAll  = "all"
)

// Metrics 监控指标
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 记录缓存指标
	RecordsLoaded   prometheus.Gauge
	ReloadsTotal    *prometheus.CounterVec
	ReloadDuration  *prometheus.HistogramVec
	RecordsCreated  prometheus.Counter
	SavesTotal      *prometheus.CounterVec
	SaveDuration    *prometheus.HistogramVec
	RecordFailures  *prometheus.CounterVec
	LastSaveSuccess prometheus.Gauge

	// 邮件指标
	MailDelivered   prometheus.Counter
	MailRead        prometheus.Counter
	MailRateLimited prometheus.Counter

	// 管理操作指标
	ModerationActions *prometheus.CounterVec

	// 运维事件推送
	EventSubscribers prometheus.Gauge

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 在独立注册表上创建监控指标，同时注册进程与 Go 运行时采集器
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return newMetrics(reg)
}

func newMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of ops HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Ops HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		RecordsLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "records_loaded",
				Help:      "Number of player records in the cache after the last full reload",
			},
		),
		ReloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "record_reloads_total",
				Help:      "Total number of record reloads",
			},
			[]string{"scope"},
		),
		ReloadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "record_reload_duration_seconds",
				Help:      "Record reload duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"scope"},
		),
		RecordsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_created_total",
				Help:      "Total number of records created from the default template",
			},
		),
		SavesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "record_saves_total",
				Help:      "Total number of record save passes",
			},
			[]string{"scope"},
		),
		SaveDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "record_save_duration_seconds",
				Help:      "Record save duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"scope"},
		),
		RecordFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "record_failures_total",
				Help:      "Total number of per-player load or save failures",
			},
			[]string{"operation"},
		),
		LastSaveSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "record_last_full_save_timestamp_seconds",
				Help:      "Unix time of the last full save without failures",
			},
		),

		MailDelivered: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mail_delivered_total",
				Help:      "Total number of mail items delivered",
			},
		),
		MailRead: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mail_read_total",
				Help:      "Total number of mail items marked read",
			},
		),
		MailRateLimited: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mail_rate_limited_total",
				Help:      "Total number of mail sends rejected by the rate limiter",
			},
		),

		ModerationActions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "moderation_actions_total",
				Help:      "Total number of moderation actions",
			},
			[]string{"action"},
		),

		EventSubscribers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "event_subscribers",
				Help:      "Number of connected ops event subscribers",
			},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors",
			},
			[]string{"type", "component"},
		),
		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "panics_total",
				Help:      "Total number of recovered panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordsReloaded 记录一次重新加载，scope 为 all 时同时更新缓存大小
func (m *Metrics) RecordsReloaded(scope string, loaded, created, failed int, took time.Duration) {
	m.ReloadsTotal.WithLabelValues(scope).Inc()
	m.ReloadDuration.WithLabelValues(scope).Observe(took.Seconds())
	m.RecordsCreated.Add(float64(created))
	m.RecordFailures.WithLabelValues("load").Add(float64(failed))
	if scope == scopeAll {
		m.RecordsLoaded.Set(float64(loaded))
	}
}

// RecordsSaved 记录一次保存
func (m *Metrics) RecordsSaved(scope string, _, failed int, took time.Duration) {
	m.SavesTotal.WithLabelValues(scope).Inc()
	m.SaveDuration.WithLabelValues(scope).Observe(took.Seconds())
	m.RecordFailures.WithLabelValues("save").Add(float64(failed))
	if scope == scopeAll && failed == 0 {
		m.LastSaveSuccess.SetToCurrentTime()
	}
}

// RecordMailDelivered 记录邮件投递
func (m *Metrics) RecordMailDelivered() {
	m.MailDelivered.Inc()
}

// RecordMailRead 记录邮件已读
func (m *Metrics) RecordMailRead() {
	m.MailRead.Inc()
}

// RecordMailRateLimited 记录被限流的发送
func (m *Metrics) RecordMailRateLimited() {
	m.MailRateLimited.Inc()
}

// RecordModeration 记录管理操作（warn、mute、unmute）
func (m *Metrics) RecordModeration(action string) {
	m.ModerationActions.WithLabelValues(action).Inc()
}

// UpdateEventSubscribers 更新事件订阅数
func (m *Metrics) UpdateEventSubscribers(count int) {
	m.EventSubscribers.Set(float64(count))
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// Registry 指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
