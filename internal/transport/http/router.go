package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"cfchat/backend/internal/auth"
	jwtpkg "cfchat/backend/internal/auth/jwt"
	"cfchat/backend/internal/config"
	"cfchat/backend/internal/health"
	"cfchat/backend/internal/middleware"
	"cfchat/backend/internal/monitoring"
	"cfchat/backend/internal/record"
	"cfchat/backend/internal/service"
	"cfchat/backend/internal/websocket"
)

// 运维接口请求体上限
const maxBodyBytes = 64 * 1024

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config     config.OpsConfig
	Records    *record.Store
	Mail       *service.MailService
	Moderation *service.ModerationService
	Health     *health.HealthChecker
	Metrics    *monitoring.Metrics
	JWTManager *jwtpkg.Manager // 为 nil 时只暴露指标与健康检查
	Operators  *auth.Operators
	Hub        *websocket.Hub
	Logger     *zap.Logger
}

// NewRouter 创建运维路由。
//
// 指标与健康检查总是可用；玩家与存储相关的端点需要 JWTManager。
func NewRouter(deps RouterDependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	monitor := middleware.NewMonitoringMiddleware(deps.Metrics, log)
	router.Use(monitor.HTTPMetrics())
	router.Use(monitor.PanicRecovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(maxBodyBytes))

	if len(deps.Config.CORSOrigins) > 0 {
		router.Use(gincors.New(corsConfig(deps.Config.CORSOrigins)))
	}

	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	router.GET("/health", gin.WrapH(deps.Health.Handler()))
	router.GET("/health/live", gin.WrapF(deps.Health.LiveHandler()))
	router.GET("/health/ready", gin.WrapF(deps.Health.ReadyHandler()))

	if deps.JWTManager == nil {
		log.Info("未配置运维令牌，玩家与存储端点已关闭")
		return router
	}

	var publisher Publisher = nopPublisher{}
	if deps.Hub != nil {
		publisher = deps.Hub
	}

	ops := &OpsHandler{
		records:   deps.Records,
		operators: deps.Operators,
		tokens:    deps.JWTManager,
		saves:     deps.Health,
		publisher: publisher,
		log:       log,
	}
	players := &PlayerHandler{
		records:    deps.Records,
		mail:       deps.Mail,
		moderation: deps.Moderation,
		log:        log,
	}
	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, log)

	api := router.Group("/ops")
	{
		api.POST("/token", ops.IssueToken)

		reload := api.Group("/reload", jwtAuth.RequireScope(jwtpkg.ScopeReload))
		{
			reload.POST("", ops.ReloadAll)
			reload.POST("/:player", ops.ReloadOne)
		}

		save := api.Group("/save", jwtAuth.RequireScope(jwtpkg.ScopeSave))
		{
			save.POST("", ops.SaveAll)
			save.POST("/:player", ops.SaveOne)
		}

		read := api.Group("/players", jwtAuth.RequireScope(jwtpkg.ScopeEvents))
		{
			read.GET("", players.List)
			read.GET("/:player", players.Get)
			read.GET("/:player/logs/:channel", players.Logs)
		}

		moderate := api.Group("/players", jwtAuth.RequireScope(jwtpkg.ScopeModerate))
		{
			moderate.POST("/:player/warnings", players.Warn)
			moderate.DELETE("/:player/warnings/:index", players.RemoveWarning)
			moderate.POST("/:player/mute", players.Mute)
			moderate.DELETE("/:player/mute", players.Unmute)
			moderate.POST("/:player/mail", players.SendMail)
		}

		if deps.Hub != nil {
			// 事件流自行校验令牌（浏览器无法设置升级请求的头）
			api.GET("/events", websocket.HandleWebSocket(deps.Hub))
		}
	}

	return router
}

func corsConfig(origins []string) gincors.Config {
	cfg := gincors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range cfg.AllowOrigins {
		if origin == "*" {
			cfg.AllowOrigins = nil
			cfg.AllowAllOrigins = true
			cfg.AllowCredentials = false
			break
		}
	}
	return cfg
}

type nopPublisher struct{}

func (nopPublisher) Publish(websocket.EventType, uuid.UUID, any) {}
