package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cfchat/backend/internal/auth"
	jwtpkg "cfchat/backend/internal/auth/jwt"
	"cfchat/backend/internal/config"
	"cfchat/backend/internal/directory"
	"cfchat/backend/internal/health"
	"cfchat/backend/internal/logger"
	"cfchat/backend/internal/monitoring"
	"cfchat/backend/internal/record"
	"cfchat/backend/internal/service"
	"cfchat/backend/internal/storage/backends"
	"cfchat/backend/internal/storage/filesystem"
	httptransport "cfchat/backend/internal/transport/http"
	"cfchat/backend/internal/watch"
	"cfchat/backend/internal/websocket"
)

// main 启动玩家记录服务：定时保存、文件监听与运维端点。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.NewLogger(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting cfchat record server",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	metrics := monitoring.NewMetrics()

	sections, err := backends.Open(cfg, "", log)
	if err != nil {
		log.Fatal("failed to open section storage", zap.Error(err))
	}
	dir := directory.NewFile(cfg.Directory.File, cfg.Directory.NameTTL, log)

	records := record.NewStore(sections, dir,
		record.WithLogger(log),
		record.WithObserver(metrics),
		record.WithSaveConcurrency(cfg.Records.SaveConcurrency),
	)
	report, err := records.ReloadAll()
	if err != nil {
		log.Fatal("failed to load player records", zap.Error(err))
	}
	if len(report.Failures) > 0 {
		log.Warn("部分玩家记录加载失败", zap.Int("failed", len(report.Failures)))
	}

	healthChecker := health.NewHealthChecker(sections, records, cfg.Records.SaveInterval, log)

	// 运维令牌（可选）
	var (
		tokens    *jwtpkg.Manager
		operators *auth.Operators
		hub       *websocket.Hub
	)
	if cfg.Ops.TokenSecret != "" {
		tokens = jwtpkg.NewManager(cfg.Ops.TokenSecret, cfg.Ops.TokenIssuer, cfg.Ops.TokenTTL)
		operators, err = auth.ParseOperators(cfg.Ops.Operators)
		if err != nil {
			log.Fatal("invalid operator list", zap.Error(err))
		}
		hub = websocket.NewHub(cfg.Ops.CORSOrigins, tokens, log)
		hub.SetGauge(metrics)
	}

	mailService := service.NewMailService(records, cfg.Mail, log)
	defer mailService.Close()
	mailService.SetMetrics(metrics)
	moderationService := service.NewModerationService(records, log)
	moderationService.SetMetrics(metrics)
	if hub != nil {
		mailService.SetPublisher(hub)
		moderationService.SetPublisher(hub)
	}

	// 告警
	saves := &saveState{}
	alertManager := monitoring.NewAlertManager(log)
	alertManager.AddReceiver(monitoring.NewLogAlertReceiver(log))
	if hub != nil {
		alertManager.AddReceiver(monitoring.FuncAlertReceiver(func(alert *monitoring.Alert) error {
			hub.Publish(websocket.EventAlert, uuid.Nil, alert)
			return nil
		}))
	}
	alertManager.AddRule(monitoring.SectionStoreRule(sections.Health))
	alertManager.AddRule(monitoring.SaveFailureRule(saves.Err))

	var httpServer *http.Server
	if cfg.Ops.Enabled {
		router := httptransport.NewRouter(httptransport.RouterDependencies{
			Config:     cfg.Ops,
			Records:    records,
			Mail:       mailService,
			Moderation: moderationService,
			Health:     healthChecker,
			Metrics:    metrics,
			JWTManager: tokens,
			Operators:  operators,
			Hub:        hub,
			Logger:     log,
		})
		httpServer = &http.Server{
			Addr:              cfg.Ops.Addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	if httpServer != nil {
		group.Go(func() error {
			log.Info("starting ops HTTP server", zap.String("address", httpServer.Addr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("HTTP server error", zap.Error(err))
				return err
			}
			return nil
		})
	}

	// 定时全量保存
	group.Go(func() error {
		records.Autosave(groupCtx, cfg.Records.SaveInterval, func(report *record.Report) {
			saves.Set(report.Err())
			if report.Err() == nil {
				healthChecker.MarkSaved(time.Now())
			}
		})
		return nil
	})

	// 手工修改数据文件时重新加载
	if fsStore, ok := sections.(*filesystem.Store); ok && cfg.Records.Watch {
		watcher := watch.New(fsStore, records, log, watch.WithReloadHook(func(id uuid.UUID, err error) {
			if err == nil && hub != nil {
				hub.Publish(websocket.EventReload, id, gin.H{"source": "file"})
			}
		}))
		group.Go(func() error {
			if err := watcher.Run(groupCtx); err != nil {
				// 监听失败不影响主流程
				log.Error("section watcher stopped", zap.Error(err))
			}
			return nil
		})
	} else if cfg.Records.Watch {
		log.Warn("file watching requires the filesystem driver", zap.String("driver", cfg.Storage.Driver))
	}

	if hub != nil {
		group.Go(func() error {
			log.Info("starting event hub")
			hub.Run(groupCtx)
			return nil
		})
	}

	group.Go(func() error {
		alertManager.StartMonitoring(groupCtx, time.Minute)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		if httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", zap.Error(err))
			}
		}
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server error", zap.Error(err))
	}

	// 退出前最后一次保存
	if err := records.SaveAll().Err(); err != nil {
		log.Error("final save incomplete", zap.Error(err))
	}
	dir.Close()
	if err := sections.Close(); err != nil {
		log.Warn("section storage close warning", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// saveState 记录最近一次定时保存的结果，供告警规则读取
type saveState struct {
	mu  sync.Mutex
	err error
}

func (s *saveState) Set(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *saveState) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
