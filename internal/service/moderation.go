package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cfchat/backend/internal/domain"
	"cfchat/backend/internal/record"
	"cfchat/backend/internal/websocket"
)

// ErrInvalidDuration 禁言时长不是正数
var ErrInvalidDuration = errors.New("mute duration must be positive")

// 管理操作名称，用于指标标签
const (
	ActionWarn          = "warn"
	ActionMute          = "mute"
	ActionUnmute        = "unmute"
	ActionRemoveWarning = "remove_warning"
)

// ModerationService 警告与禁言
type ModerationService struct {
	records   *record.Store
	log       *zap.Logger
	metrics   ModerationMetrics
	publisher Publisher
}

// NewModerationService 创建管理服务
func NewModerationService(records *record.Store, log *zap.Logger) *ModerationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ModerationService{
		records:   records,
		log:       log,
		metrics:   nopMetrics{},
		publisher: nopPublisher{},
	}
}

// SetMetrics 设置指标收集器
func (s *ModerationService) SetMetrics(m ModerationMetrics) {
	if m != nil {
		s.metrics = m
	}
}

// SetPublisher 设置事件发布者
func (s *ModerationService) SetPublisher(p Publisher) {
	if p != nil {
		s.publisher = p
	}
}

// Warn 给玩家追加一条警告，返回追加后的警告
func (s *ModerationService) Warn(issuer, target uuid.UUID, reason string) (domain.Warning, error) {
	rec, err := s.records.Get(target)
	if err != nil {
		return domain.Warning{}, err
	}
	w := rec.AddWarning(issuer, strings.TrimSpace(reason))

	s.metrics.RecordModeration(ActionWarn)
	s.publisher.Publish(websocket.EventWarning, target, ModerationEvent{
		Issuer: s.issuerName(issuer),
		Reason: w.Reason,
		Index:  rec.WarningCount() - 1,
	})
	s.log.Info("玩家收到警告",
		zap.String("identity", target.String()),
		zap.String("issuer", issuer.String()),
		zap.String("reason", w.Reason),
	)
	return w, nil
}

// RemoveWarning 按位置删除一条警告
func (s *ModerationService) RemoveWarning(target uuid.UUID, index int) error {
	rec, err := s.records.Get(target)
	if err != nil {
		return err
	}
	if err := rec.RemoveWarning(index); err != nil {
		return err
	}
	s.metrics.RecordModeration(ActionRemoveWarning)
	s.log.Info("警告已删除", zap.String("identity", target.String()), zap.Int("index", index))
	return nil
}

// Warnings 返回闭区间 [first, last] 的警告，越界的端点会被收紧
func (s *ModerationService) Warnings(target uuid.UUID, first, last int) ([]domain.Warning, error) {
	rec, err := s.records.Get(target)
	if err != nil {
		return nil, err
	}
	return rec.Warnings(first, last), nil
}

// Mute 禁言 d 时长，已禁言时覆盖原有的解除时间与发起人
func (s *ModerationService) Mute(issuer, target uuid.UUID, d time.Duration) (domain.MuteStatus, error) {
	if d <= 0 {
		return domain.MuteStatus{}, fmt.Errorf("%s: %w", d, ErrInvalidDuration)
	}
	rec, err := s.records.Get(target)
	if err != nil {
		return domain.MuteStatus{}, err
	}
	if err := rec.MuteFor(issuer, d); err != nil {
		return domain.MuteStatus{}, err
	}
	status := rec.MuteStatus()

	s.metrics.RecordModeration(ActionMute)
	s.publisher.Publish(websocket.EventMute, target, ModerationEvent{
		Issuer:    s.issuerName(issuer),
		ReleaseAt: domain.FormatDisplay(status.ReleaseAt),
	})
	s.log.Info("玩家已被禁言",
		zap.String("identity", target.String()),
		zap.String("issuer", issuer.String()),
		zap.Time("release_at", status.ReleaseAt),
	)
	return status, nil
}

// Unmute 解除禁言，返回解除前是否处于禁言中
func (s *ModerationService) Unmute(issuer, target uuid.UUID) (bool, error) {
	rec, err := s.records.Get(target)
	if err != nil {
		return false, err
	}
	wasMuted := rec.IsMuted()
	rec.Unmute()
	if !wasMuted {
		return false, nil
	}

	s.metrics.RecordModeration(ActionUnmute)
	s.publisher.Publish(websocket.EventUnmute, target, ModerationEvent{Issuer: s.issuerName(issuer)})
	s.log.Info("玩家已解除禁言",
		zap.String("identity", target.String()),
		zap.String("issuer", issuer.String()),
	)
	return true, nil
}

// IsMuted 查询禁言状态，到期的禁言在这里被清除
func (s *ModerationService) IsMuted(target uuid.UUID) (bool, error) {
	rec, err := s.records.Get(target)
	if err != nil {
		return false, err
	}
	return rec.IsMuted(), nil
}

func (s *ModerationService) issuerName(id uuid.UUID) string {
	return senderName(s.records.Directory().DisplayName, id)
}
