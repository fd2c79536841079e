package httptransport

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"cfchat/backend/internal/domain"
	"cfchat/backend/internal/middleware"
	"cfchat/backend/internal/record"
	"cfchat/backend/internal/service"
)

// PlayerHandler 玩家记录的查询与管理操作
//
// 通过 HTTP 发起的操作以控制台身份记录，运维人员名称只写入日志。
type PlayerHandler struct {
	records    *record.Store
	mail       *service.MailService
	moderation *service.ModerationService
	log        *zap.Logger
}

type playerSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type warningView struct {
	Index    int    `json:"index"`
	IssuedAt string `json:"issuedAt"`
	Issuer   string `json:"issuer"`
	Reason   string `json:"reason"`
}

type muteView struct {
	Active    bool   `json:"active"`
	ReleaseAt string `json:"releaseAt,omitempty"`
	IssuedAt  string `json:"issuedAt,omitempty"`
	Issuer    string `json:"issuer,omitempty"`
}

type mailView struct {
	ID     int    `json:"id"`
	From   string `json:"from"`
	SentAt string `json:"sentAt"`
	Unread bool   `json:"unread"`
	Body   string `json:"body"`
}

type playerView struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Mute     muteView      `json:"mute"`
	Warnings []warningView `json:"warnings"`
	Mail     []mailView    `json:"mail"`
	Ignore   []string      `json:"ignore"`
	Groups   []string      `json:"groups"`
}

type warnRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type muteRequest struct {
	Duration string `json:"duration" binding:"required"` // 例如 "10m"、"2h"
}

type mailRequest struct {
	Body string `json:"body" binding:"required"`
}

// List 列出缓存中的全部玩家
func (h *PlayerHandler) List(c *gin.Context) {
	dir := h.records.Directory()
	ids := h.records.IDs()
	players := make([]playerSummary, 0, len(ids))
	for _, id := range ids {
		players = append(players, playerSummary{ID: id.String(), Name: dir.DisplayName(id)})
	}
	Success(c, players)
}

// Get 查看玩家记录
func (h *PlayerHandler) Get(c *gin.Context) {
	rec, ok := h.lookup(c)
	if !ok {
		return
	}
	// 先触发禁言的惰性过期
	rec.IsMuted()

	state := rec.Snapshot()
	view := playerView{
		ID:       state.ID.String(),
		Name:     h.name(state.ID),
		Warnings: make([]warningView, 0, len(state.Warnings)),
		Mail:     make([]mailView, 0, len(state.Mail)),
		Ignore:   make([]string, 0, len(state.Ignore)),
		Groups:   state.Groups,
	}
	if state.Mute.Active {
		view.Mute = muteView{
			Active:    true,
			ReleaseAt: domain.FormatDisplay(state.Mute.ReleaseAt),
			IssuedAt:  domain.FormatDisplay(state.Mute.IssuedAt),
			Issuer:    h.name(state.Mute.Issuer),
		}
	}
	for i, w := range state.Warnings {
		view.Warnings = append(view.Warnings, warningView{
			Index:    i,
			IssuedAt: w.Display,
			Issuer:   h.name(w.Issuer),
			Reason:   w.Reason,
		})
	}
	for _, id := range rec.MailIDs() {
		item := state.Mail[id]
		view.Mail = append(view.Mail, mailView{
			ID:     item.ID,
			From:   h.name(item.Sender),
			SentAt: item.Display,
			Unread: item.Unread,
			Body:   item.Body,
		})
	}
	for _, id := range state.Ignore {
		view.Ignore = append(view.Ignore, id.String())
	}
	Success(c, view)
}

// Logs 按时间区间查询日志，from/to 缺省时为纪元与当前时间
func (h *PlayerHandler) Logs(c *gin.Context) {
	rec, ok := h.lookup(c)
	if !ok {
		return
	}
	ch, err := domain.ParseLogChannel(c.Param("channel"))
	if err != nil {
		respondError(c, err)
		return
	}

	from := time.UnixMilli(0)
	to := h.records.Now().Add(time.Millisecond)
	if v := c.Query("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			BadRequest(c, MsgInvalidTime)
			return
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			BadRequest(c, MsgInvalidTime)
			return
		}
	}

	lines, err := rec.Logs(ch, from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, lines)
}

// Warn 追加一条警告
func (h *PlayerHandler) Warn(c *gin.Context) {
	rec, ok := h.lookup(c)
	if !ok {
		return
	}
	var req warnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	w, err := h.moderation.Warn(domain.Console, rec.ID(), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit(c, "warn", rec.ID())
	Created(c, warningView{
		Index:    rec.WarningCount() - 1,
		IssuedAt: w.Display,
		Issuer:   h.name(w.Issuer),
		Reason:   w.Reason,
	})
}

// RemoveWarning 按序号删除警告
func (h *PlayerHandler) RemoveWarning(c *gin.Context) {
	rec, ok := h.lookup(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		BadRequest(c, MsgInvalidIndex)
		return
	}
	if err := h.moderation.RemoveWarning(rec.ID(), index); err != nil {
		respondError(c, err)
		return
	}
	h.audit(c, "remove_warning", rec.ID())
	Success(c, gin.H{"remaining": rec.WarningCount()})
}

// Mute 禁言一段时间
func (h *PlayerHandler) Mute(c *gin.Context) {
	rec, ok := h.lookup(c)
	if !ok {
		return
	}
	var req muteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	d, err := time.ParseDuration(req.Duration)
	if err != nil {
		BadRequest(c, MsgInvalidDuration)
		return
	}
	status, err := h.moderation.Mute(domain.Console, rec.ID(), d)
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit(c, "mute", rec.ID())
	Success(c, muteView{
		Active:    true,
		ReleaseAt: domain.FormatDisplay(status.ReleaseAt),
		IssuedAt:  domain.FormatDisplay(status.IssuedAt),
		Issuer:    h.name(status.Issuer),
	})
}

// Unmute 解除禁言
func (h *PlayerHandler) Unmute(c *gin.Context) {
	rec, ok := h.lookup(c)
	if !ok {
		return
	}
	wasMuted, err := h.moderation.Unmute(domain.Console, rec.ID())
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit(c, "unmute", rec.ID())
	Success(c, gin.H{"wasMuted": wasMuted})
}

// SendMail 以控制台身份发送邮件
func (h *PlayerHandler) SendMail(c *gin.Context) {
	rec, ok := h.lookup(c)
	if !ok {
		return
	}
	var req mailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	item, err := h.mail.Send(domain.Console, rec.ID(), req.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit(c, "mail", rec.ID())
	Created(c, mailView{
		ID:     item.ID,
		From:   h.name(item.Sender),
		SentAt: item.Display,
		Unread: item.Unread,
		Body:   item.Body,
	})
}

func (h *PlayerHandler) lookup(c *gin.Context) (*domain.PlayerRecord, bool) {
	rec, err := h.records.Lookup(c.Param("player"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return rec, true
}

func (h *PlayerHandler) name(id uuid.UUID) string {
	if domain.IsConsole(id) {
		return "Console"
	}
	return h.records.Directory().DisplayName(id)
}

func (h *PlayerHandler) audit(c *gin.Context, action string, id uuid.UUID) {
	h.log.Info("运维操作",
		zap.String("action", action),
		zap.String("identity", id.String()),
		zap.String("operator", c.GetString(middleware.ContextOperator)),
	)
}
