package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"portfolio/backend/internal/auth"
	"portfolio/backend/internal/cache"
	"portfolio/backend/internal/config"
	"portfolio/backend/internal/health"
	"portfolio/backend/internal/logger"
	"portfolio/backend/internal/middleware"
	"portfolio/backend/internal/monitoring"
	"portfolio/backend/internal/notify"
	"portfolio/backend/internal/pool"
	"portfolio/backend/internal/ratelimit"
	"portfolio/backend/internal/service"
	"portfolio/backend/internal/storage/provider"
	"portfolio/backend/internal/storage/redis"
	httptransport "portfolio/backend/internal/transport/http"
	"portfolio/backend/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

// main 启动投稿 API、静态站点与后台任务。
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

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting portfolio server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.String("storage_driver", cfg.Storage.Driver),
	)

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化存储层，连接失败直接退出
	store, err := provider.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}
	if err := provider.Prepare(ctx, store, log); err != nil {
		log.Warn("storage maintenance failed, continuing", zap.Error(err))
	}

	gate := auth.NewGate(cfg.Admin.Key)
	if !gate.Configured() {
		log.Warn("admin key is not configured; all admin requests will answer 500")
	}

	// 初始化监控系统
	metrics := monitoring.NewMetrics()

	// Redis 为可选依赖，连接失败时使用进程内限流
	var (
		redisClient *redis.Client
		redisPinger health.Pinger
	)
	if cfg.Redis.Address != "" {
		redisClient, err = redis.New(ctx, cfg.Redis, log)
		if err != nil {
			log.Warn("redis unavailable, using in-process rate limiting", zap.Error(err))
			redisClient = nil
		} else {
			redisPinger = health.PingFunc(redisClient.Ping)
		}
	}

	healthChecker := health.NewHealthChecker(store, redisPinger, log)

	// 初始化告警系统
	alertManager := monitoring.NewAlertManager(log)
	alertManager.AddReceiver(monitoring.NewLogAlertReceiver(log))
	alertManager.AddRule(monitoring.HighMemoryUsageRule(512.0, metrics)) // 512MB
	alertManager.AddRule(monitoring.StorageConnectionRule(store, 5*time.Second))
	healthChecker.AddReadinessCheck("alerts", alertManager.ReadinessCheck())

	// 投稿限流
	buckets := cache.NewLocalCache(10*time.Minute, time.Minute)
	var limiter ratelimit.Limiter
	switch {
	case cfg.RateLimit.ContactPerMinute == 0:
		log.Info("contact rate limiting disabled")
	case redisClient != nil:
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.RateLimit.ContactPerMinute)
	default:
		limiter = ratelimit.NewLocalLimiter(cfg.RateLimit.ContactPerMinute, buckets)
	}

	// 初始化服务层与事件监听器
	submissionService := service.NewSubmissionService(store)
	submissionService.Subscribe(metrics)

	cors := middleware.NewCORSPolicy(cfg.CORS.AllowedOrigins)
	wsHub := websocket.NewHub(cors.OriginAllowed, metrics, log)
	submissionService.Subscribe(wsHub)

	workers := pool.NewWorkerPool(cfg.Notify.Workers, 100, log)
	if cfg.Notify.SMTPAddr != "" {
		submissionService.Subscribe(notify.New(cfg.Notify, workers, metrics, log))
		log.Info("submission email notifications enabled",
			zap.String("smtp_addr", cfg.Notify.SMTPAddr),
			zap.Strings("to", cfg.Notify.To),
		)
	}

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:            cfg,
		SubmissionService: submissionService,
		Gate:              gate,
		CORS:              cors,
		Limiter:           limiter,
		Health:            healthChecker,
		Metrics:           metrics,
		WebSocketHub:      wsHub,
		Logger:            log,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		return wsHub.Run(groupCtx)
	})

	// 通知协程池
	workers.Start(groupCtx)

	// 限流桶清理
	group.Go(func() error {
		return buckets.Run(groupCtx)
	})

	// 告警监控
	group.Go(func() error {
		log.Info("starting monitoring services")
		return alertManager.StartMonitoring(groupCtx, time.Minute)
	})

	// 运行时间指标
	group.Go(func() error {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				metrics.UpdateSystemUptime(healthChecker.Uptime())
			}
		}
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		workers.Stop()

		if err := store.Close(shutdownCtx); err != nil {
			log.Warn("storage close warning", zap.Error(err))
		}
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				log.Warn("redis close warning", zap.Error(err))
			}
		}

		log.Info("servers stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
