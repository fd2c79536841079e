package service

import (
	"github.com/google/uuid"

	"cfchat/backend/internal/websocket"
)

// Publisher 发布运维事件
type Publisher interface {
	Publish(eventType websocket.EventType, player uuid.UUID, data any)
}

// MailMetrics 邮件相关指标
type MailMetrics interface {
	RecordMailDelivered()
	RecordMailRead()
	RecordMailRateLimited()
}

// ModerationMetrics 管理操作指标
type ModerationMetrics interface {
	RecordModeration(action string)
}

type nopPublisher struct{}

func (nopPublisher) Publish(websocket.EventType, uuid.UUID, any) {}

type nopMetrics struct{}

func (nopMetrics) RecordMailDelivered()    {}
func (nopMetrics) RecordMailRead()         {}
func (nopMetrics) RecordMailRateLimited()  {}
func (nopMetrics) RecordModeration(string) {}

// MailEvent 邮件事件数据
type MailEvent struct {
	ID     int    `json:"id"`
	From   string `json:"from"`
	To     string `json:"to"`
	SentAt string `json:"sentAt,omitempty"`
}

// ModerationEvent 管理操作事件数据
type ModerationEvent struct {
	Issuer    string `json:"issuer"`
	Reason    string `json:"reason,omitempty"`
	ReleaseAt string `json:"releaseAt,omitempty"`
	Index     int    `json:"index,omitempty"`
}
