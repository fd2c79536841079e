package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"cfchat/backend/internal/cache"
	"cfchat/backend/internal/config"
	"cfchat/backend/internal/domain"
	"cfchat/backend/internal/record"
	"cfchat/backend/internal/websocket"
)

var (
	// ErrEmptyMail 邮件正文为空
	ErrEmptyMail = errors.New("mail body is empty")
	// ErrRateLimited 发送过于频繁
	ErrRateLimited = errors.New("mail rate limit exceeded")
)

// 空闲超过该时长的发送者限流器会被回收
const limiterIdleTTL = 30 * time.Minute

// MailService 玩家之间（以及控制台向玩家）的邮件投递
type MailService struct {
	records   *record.Store
	log       *zap.Logger
	metrics   MailMetrics
	publisher Publisher

	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters *cache.LocalCache[uuid.UUID, *rate.Limiter]
}

// NewMailService 创建邮件服务，RatePerMinute 为 0 时不限流
func NewMailService(records *record.Store, cfg config.MailConfig, log *zap.Logger) *MailService {
	if log == nil {
		log = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RatePerMinute > 0 {
		limit = rate.Limit(cfg.RatePerMinute / 60)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &MailService{
		records:   records,
		log:       log,
		metrics:   nopMetrics{},
		publisher: nopPublisher{},
		limit:     limit,
		burst:     burst,
		limiters:  cache.NewLocalCache[uuid.UUID, *rate.Limiter](limiterIdleTTL, 5*time.Minute),
	}
}

// SetMetrics 设置指标收集器
func (s *MailService) SetMetrics(m MailMetrics) {
	if m != nil {
		s.metrics = m
	}
}

// SetPublisher 设置事件发布者
func (s *MailService) SetPublisher(p Publisher) {
	if p != nil {
		s.publisher = p
	}
}

// Close 停止限流器回收
func (s *MailService) Close() {
	s.limiters.Stop()
}

// Send 向 to 投递一封邮件，编号取收件人邮箱的下一个可用编号。
//
// 控制台发送不受限流。发送者的记录在缓存中时，同时写入发送者的邮件日志。
// 修改只发生在内存中，需要 Store 保存后才会持久化。
func (s *MailService) Send(from, to uuid.UUID, body string) (domain.MailItem, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.MailItem{}, ErrEmptyMail
	}

	recipient, err := s.records.Get(to)
	if err != nil {
		return domain.MailItem{}, err
	}

	if !domain.IsConsole(from) && !s.allow(from) {
		s.metrics.RecordMailRateLimited()
		s.log.Warn("邮件发送被限流", zap.String("sender", from.String()))
		return domain.MailItem{}, fmt.Errorf("sender %s: %w", from, ErrRateLimited)
	}

	item, err := recipient.DeliverNextMail(from, body)
	if err != nil {
		return domain.MailItem{}, err
	}

	dir := s.records.Directory()
	fromName := senderName(dir.DisplayName, from)
	toName := dir.DisplayName(to)

	if _, err := recipient.Log(domain.ChannelMail, fmt.Sprintf("from %s: %s", fromName, body)); err != nil {
		return item, err
	}
	if !domain.IsConsole(from) {
		if sender, err := s.records.Get(from); err == nil {
			if _, err := sender.Log(domain.ChannelMail, fmt.Sprintf("to %s: %s", toName, body)); err != nil {
				return item, err
			}
		}
	}

	s.metrics.RecordMailDelivered()
	s.publisher.Publish(websocket.EventMail, to, MailEvent{
		ID:     item.ID,
		From:   fromName,
		To:     toName,
		SentAt: item.Display,
	})
	s.log.Debug("邮件已投递",
		zap.String("sender", from.String()),
		zap.String("recipient", to.String()),
		zap.Int("id", item.ID),
	)
	return item, nil
}

// Read 读取一封邮件并标记为已读
func (s *MailService) Read(player uuid.UUID, id int) (domain.MailItem, error) {
	rec, err := s.records.Get(player)
	if err != nil {
		return domain.MailItem{}, err
	}
	item, err := rec.Mail(id)
	if err != nil {
		return domain.MailItem{}, err
	}
	if !item.Unread {
		return item, nil
	}
	if err := rec.MarkMailRead(id); err != nil {
		return domain.MailItem{}, err
	}
	item.Unread = false

	s.metrics.RecordMailRead()
	s.publisher.Publish(websocket.EventMailRead, player, MailEvent{
		ID:   id,
		From: senderName(s.records.Directory().DisplayName, item.Sender),
		To:   s.records.Directory().DisplayName(player),
	})
	return item, nil
}

// List 按编号升序返回全部邮件
func (s *MailService) List(player uuid.UUID) ([]domain.MailItem, error) {
	rec, err := s.records.Get(player)
	if err != nil {
		return nil, err
	}
	return sortedMail(rec.AllMail()), nil
}

// Unread 按编号升序返回未读邮件
func (s *MailService) Unread(player uuid.UUID) ([]domain.MailItem, error) {
	rec, err := s.records.Get(player)
	if err != nil {
		return nil, err
	}
	return sortedMail(rec.UnreadMail()), nil
}

// Delete 删除一封邮件
func (s *MailService) Delete(player uuid.UUID, id int) error {
	rec, err := s.records.Get(player)
	if err != nil {
		return err
	}
	return rec.DeleteMail(id)
}

// allow 消耗发送者的一个令牌
func (s *MailService) allow(sender uuid.UUID) bool {
	if s.limit == rate.Inf {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters.Get(sender)
	if !ok {
		limiter = rate.NewLimiter(s.limit, s.burst)
	}
	// 每次使用都刷新过期时间
	s.limiters.Set(sender, limiter, limiterIdleTTL)
	return limiter.AllowN(s.records.Now(), 1)
}

func sortedMail(items map[int]domain.MailItem) []domain.MailItem {
	out := make([]domain.MailItem, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func senderName(displayName func(uuid.UUID) string, id uuid.UUID) string {
	if domain.IsConsole(id) {
		return "Console"
	}
	return displayName(id)
}
