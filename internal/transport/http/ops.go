package httptransport

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"cfchat/backend/internal/auth"
	jwtpkg "cfchat/backend/internal/auth/jwt"
	"cfchat/backend/internal/domain"
	"cfchat/backend/internal/middleware"
	"cfchat/backend/internal/record"
	"cfchat/backend/internal/websocket"
)

// SaveTracker 记录最近一次成功的全量保存
type SaveTracker interface {
	MarkSaved(at time.Time)
}

// OpsHandler 令牌、重新加载与保存
type OpsHandler struct {
	records   *record.Store
	operators *auth.Operators
	tokens    *jwtpkg.Manager
	saves     SaveTracker
	publisher Publisher
	log       *zap.Logger
}

// Publisher 发布运维事件
type Publisher interface {
	Publish(eventType websocket.EventType, player uuid.UUID, data any)
}

type tokenRequest struct {
	Name     string   `json:"name" binding:"required"`
	Password string   `json:"password" binding:"required"`
	Scopes   []string `json:"scopes"`
}

// failureView 单个玩家的失败
type failureView struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// reportView 批量操作结果
type reportView struct {
	Loaded   int           `json:"loaded"`
	Created  int           `json:"created"`
	Saved    int           `json:"saved"`
	Failures []failureView `json:"failures"`
	TookMs   int64         `json:"tookMs"`
}

func newReportView(r *record.Report) reportView {
	view := reportView{
		Loaded:   r.Loaded,
		Created:  r.Created,
		Saved:    r.Saved,
		Failures: make([]failureView, 0, len(r.Failures)),
		TookMs:   r.Took.Milliseconds(),
	}
	for _, f := range r.Failures {
		view.Failures = append(view.Failures, failureView{ID: f.ID.String(), Error: f.Err.Error()})
	}
	return view
}

// IssueToken 用运维人员密码换取令牌
func (h *OpsHandler) IssueToken(c *gin.Context) {
	if h.tokens == nil || h.operators == nil || h.operators.Len() == 0 {
		Error(c, http.StatusNotFound, MsgTokensDisabled)
		return
	}

	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	for _, scope := range req.Scopes {
		if !slices.Contains(jwtpkg.AllScopes, scope) {
			BadRequest(c, MsgUnknownScope)
			return
		}
	}
	token, err := h.operators.Login(h.tokens, req.Name, req.Password, req.Scopes...)
	if err != nil {
		h.log.Warn("运维人员登录失败", zap.String("operator", req.Name), zap.String("ip", c.ClientIP()))
		respondError(c, err)
		return
	}
	h.log.Info("已签发运维令牌", zap.String("operator", req.Name), zap.Strings("scopes", req.Scopes))
	Created(c, token)
}

// ReloadAll 从存储重建全部记录，未保存的内存修改会丢失
func (h *OpsHandler) ReloadAll(c *gin.Context) {
	report, err := h.records.ReloadAll()
	if err != nil {
		respondError(c, err)
		return
	}
	h.log.Info("运维触发全量重新加载", zap.String("operator", c.GetString(middleware.ContextOperator)))
	view := newReportView(report)
	h.publisher.Publish(websocket.EventReload, domain.Console, view)
	Success(c, view)
}

// ReloadOne 重新加载单个玩家
func (h *OpsHandler) ReloadOne(c *gin.Context) {
	id, err := h.records.Directory().Lookup(c.Param("player"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.records.ReloadOne(id); err != nil {
		respondError(c, err)
		return
	}
	h.publisher.Publish(websocket.EventReload, id, nil)
	Success(c, gin.H{"id": id.String()})
}

// SaveAll 保存全部记录，部分失败时返回 500 并附带失败列表
func (h *OpsHandler) SaveAll(c *gin.Context) {
	report := h.records.SaveAll()
	view := newReportView(report)
	h.publisher.Publish(websocket.EventSave, domain.Console, view)

	if len(report.Failures) > 0 {
		ErrorWithData(c, http.StatusInternalServerError, "部分玩家保存失败", view)
		return
	}
	h.saves.MarkSaved(time.Now())
	h.log.Info("运维触发全量保存",
		zap.String("operator", c.GetString(middleware.ContextOperator)),
		zap.Int("saved", report.Saved),
	)
	Success(c, view)
}

// SaveOne 保存单个玩家
func (h *OpsHandler) SaveOne(c *gin.Context) {
	rec, err := h.records.Lookup(c.Param("player"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.records.SaveOne(rec.ID()); err != nil {
		h.log.Error("保存玩家记录失败", zap.String("identity", rec.ID().String()), zap.Error(err))
		respondError(c, err)
		return
	}
	h.publisher.Publish(websocket.EventSave, rec.ID(), nil)
	Success(c, gin.H{"id": rec.ID().String()})
}
