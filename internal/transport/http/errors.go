package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cfchat/backend/internal/auth"
	"cfchat/backend/internal/domain"
	"cfchat/backend/internal/service"
)

// 通用错误消息
const (
	MsgInvalidRequest     = "请求参数格式错误"
	MsgInvalidDuration    = "时长格式无效"
	MsgInvalidTime        = "时间格式无效，应为 RFC3339"
	MsgInvalidIndex       = "警告序号无效"
	MsgInvalidCredentials = "用户名或密码错误"
	MsgTokensDisabled     = "未配置运维令牌"
	MsgUnknownScope       = "未知的令牌权限"
	MsgInternalError      = "服务器内部错误，请稍后重试"
)

// errorStatus 业务错误对应的状态码与消息
var errorStatus = []struct {
	err    error
	status int
	msg    string
}{
	{domain.ErrNotFound, http.StatusNotFound, "玩家或邮件不存在"},
	{domain.ErrInvalidMute, http.StatusBadRequest, "解除时间必须晚于当前时间"},
	{domain.ErrUnknownChannel, http.StatusBadRequest, "未知的日志通道"},
	{domain.ErrDuplicateMailID, http.StatusConflict, "邮件编号已被占用"},
	{service.ErrInvalidDuration, http.StatusBadRequest, "禁言时长必须为正数"},
	{service.ErrEmptyMail, http.StatusBadRequest, "邮件内容不能为空"},
	{service.ErrRateLimited, http.StatusTooManyRequests, "发送过于频繁"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, MsgInvalidCredentials},
}

// respondError 按错误类型返回响应
func respondError(c *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			Error(c, e.status, e.msg)
			return
		}
	}
	_ = c.Error(err)
	Error(c, http.StatusInternalServerError, MsgInternalError)
}
