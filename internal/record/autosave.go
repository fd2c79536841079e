package record

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Autosave 每隔 interval 执行一次 SaveAll，直到 ctx 结束。
//
// 每次保存后调用 done（可为 nil）。退出时不做最后一次保存，由调用方负责。
func (s *Store) Autosave(ctx context.Context, interval time.Duration, done func(*Report)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("starting record autosave", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("record autosave stopped")
			return
		case <-ticker.C:
			report := s.SaveAll()
			if err := report.Err(); err != nil {
				s.log.Warn("定时保存存在失败", zap.Int("failed", len(report.Failures)), zap.Error(err))
			}
			if done != nil {
				done(report)
			}
		}
	}
}
