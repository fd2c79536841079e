package health

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"cfchat/backend/internal/storage"
)

// ErrNotLoaded 记录缓存尚未完成首次加载
var ErrNotLoaded = errors.New("player records not loaded yet")

// LoadState 报告记录缓存是否已加载
type LoadState interface {
	Loaded() bool
}

// HealthChecker 健康检查器
//
// 存活检查只看数据段存储是否可用；就绪检查还要求缓存已完成首次加载，
// 并且（开启自动保存时）最近一次全量保存没有超时太久。
type HealthChecker struct {
	health   healthcheck.Handler
	sections storage.SectionStore
	records  LoadState
	logger   *zap.Logger

	mu       sync.RWMutex
	lastSave time.Time
	maxAge   time.Duration
	now      func() time.Time
}

// NewHealthChecker 创建健康检查器
//
// 参数:
//   - sections: 数据段存储
//   - records: 记录缓存
//   - saveInterval: 自动保存间隔，<= 0 表示不检查保存时间
func NewHealthChecker(sections storage.SectionStore, records LoadState, saveInterval time.Duration, logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := &HealthChecker{
		health:   healthcheck.NewHandler(),
		sections: sections,
		records:  records,
		logger:   logger,
		now:      time.Now,
	}
	if saveInterval > 0 {
		// 允许错过一次保存
		hc.maxAge = 2*saveInterval + time.Minute
	}

	hc.addChecks()
	return hc
}

// addChecks 添加健康检查
func (hc *HealthChecker) addChecks() {
	hc.health.AddLivenessCheck("section-store", healthcheck.Timeout(hc.sections.Health, 5*time.Second))

	hc.health.AddReadinessCheck("records-loaded", func() error {
		if !hc.records.Loaded() {
			return ErrNotLoaded
		}
		return nil
	})

	if hc.maxAge > 0 {
		hc.health.AddReadinessCheck("last-save", hc.checkLastSave)
	}
}

// MarkSaved 记录一次没有失败的全量保存
func (hc *HealthChecker) MarkSaved(at time.Time) {
	hc.mu.Lock()
	hc.lastSave = at
	hc.mu.Unlock()
}

func (hc *HealthChecker) checkLastSave() error {
	hc.mu.RLock()
	last := hc.lastSave
	hc.mu.RUnlock()

	// 启动后还没有保存过时不算失败
	if last.IsZero() {
		return nil
	}
	if age := hc.now().Sub(last); age > hc.maxAge {
		hc.logger.Warn("全量保存已超时", zap.Duration("age", age))
		return fmt.Errorf("last full save was %s ago", age.Round(time.Second))
	}
	return nil
}

// Handler 返回健康检查处理器（/live 与 /ready）
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// LiveHandler 存活检查
func (hc *HealthChecker) LiveHandler() http.HandlerFunc {
	return hc.health.LiveEndpoint
}

// ReadyHandler 就绪检查
func (hc *HealthChecker) ReadyHandler() http.HandlerFunc {
	return hc.health.ReadyEndpoint
}

// CheckHealth 执行全部检查，返回每项结果
func (hc *HealthChecker) CheckHealth() map[string]string {
	results := make(map[string]string)

	if err := hc.sections.Health(); err != nil {
		results["section-store"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["section-store"] = "OK"
	}

	if hc.records.Loaded() {
		results["records-loaded"] = "OK"
	} else {
		results["records-loaded"] = "ERROR: " + ErrNotLoaded.Error()
	}

	if hc.maxAge > 0 {
		if err := hc.checkLastSave(); err != nil {
			results["last-save"] = fmt.Sprintf("ERROR: %v", err)
		} else {
			results["last-save"] = "OK"
		}
	}

	results["timestamp"] = hc.now().Format(time.RFC3339)
	return results
}
