package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/blockpress/internal/cache"
	"github.com/blockpress/internal/config"
	"github.com/blockpress/internal/db"
	"github.com/blockpress/internal/logging"
	"github.com/blockpress/internal/metrics"
	"github.com/blockpress/internal/router"
	"github.com/blockpress/internal/scheduler"
	"github.com/blockpress/internal/service"
	"github.com/blockpress/internal/sweeper"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	logger := logging.New(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	// 初始化数据库
	if err := db.Init(db.Options{
		Driver: cfg.DatabaseDriver,
		DSN:    cfg.DatabaseDSN,
		Path:   cfg.DatabasePath,
	}); err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	if err := db.EnsureUser(db.DB, cfg.SuperRootUserName, cfg.SuperRootPassword); err != nil {
		logger.Fatal("failed to ensure admin user", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// redis 可选，未配置时每次浏览都计数
	var deduper service.ViewDeduper
	redisClient, err := cache.Connect(ctx, cfg.RedisURL, logger)
	if err != nil {
		logger.Warn("redis unavailable, view dedup disabled", zap.Error(err))
	} else if redisClient != nil {
		defer redisClient.Close()
		if cfg.ViewDedupWindow > 0 {
			deduper = cache.NewViewDeduper(redisClient)
		}
	}

	collectors := metrics.New()

	posts := service.NewPostService(db.DB, service.NewVersionStore(db.DB)).
		WithMetrics(collectors).
		WithLogger(logger.Named("posts"))
	sched := scheduler.New()
	if err := sched.Register(sweeper.New(posts, logger, collectors).Job(cfg.SweepInterval)); err != nil {
		logger.Fatal("failed to register publish sweeper", zap.Error(err))
	}
	sched.Start(ctx)

	// 设置并运行 Gin 服务器
	gin.SetMode(cfg.GinMode)
	r := router.SetupRouter(router.Deps{
		DB:      db.DB,
		Config:  cfg,
		Logger:  logger,
		Metrics: collectors,
		Deduper: deduper,
		Jobs:    sched,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	sched.Stop()

	if sqlDB, err := db.DB.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Info("server exited")
}
