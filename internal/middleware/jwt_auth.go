package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cfchat/backend/internal/auth/jwt"
)

// 上下文中的运维人员名称
const ContextOperator = "operator"

// TokenAuthorizer 校验令牌与权限
type TokenAuthorizer interface {
	Authorize(token, scope string) (*jwt.Claims, error)
}

// JWTAuth 运维令牌认证中间件
type JWTAuth struct {
	tokens TokenAuthorizer
	log    *zap.Logger
}

// NewJWTAuth 创建认证中间件
func NewJWTAuth(tokens TokenAuthorizer, log *zap.Logger) *JWTAuth {
	if log == nil {
		log = zap.NewNop()
	}
	return &JWTAuth{tokens: tokens, log: log}
}

// RequireScope 要求令牌包含指定权限
func (ja *JWTAuth) RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractBearer(c)
		if token == "" {
			abort(c, http.StatusUnauthorized, "需要运维令牌")
			return
		}

		claims, err := ja.tokens.Authorize(token, scope)
		switch {
		case err == nil:
		case errors.Is(err, jwt.ErrMissingScope):
			ja.log.Warn("token missing scope",
				zap.String("scope", scope),
				zap.String("ip", c.ClientIP()),
			)
			abort(c, http.StatusForbidden, "权限不足")
			return
		case errors.Is(err, jwt.ErrExpiredToken):
			abort(c, http.StatusUnauthorized, "令牌已过期")
			return
		default:
			ja.log.Warn("invalid token",
				zap.String("error", err.Error()),
				zap.String("ip", c.ClientIP()),
			)
			abort(c, http.StatusUnauthorized, "无效的运维令牌")
			return
		}

		c.Set(ContextOperator, claims.Operator)
		c.Next()
	}
}

// ExtractBearer 从 Authorization 头提取令牌
func ExtractBearer(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"code": status, "msg": msg})
}
