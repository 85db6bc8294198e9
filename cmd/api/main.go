package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smm-orders/internal/core/config"
	"smm-orders/internal/core/database"
	"smm-orders/internal/core/httpclient"
	"smm-orders/internal/core/logger"
	"smm-orders/internal/core/metrics"
	"smm-orders/internal/core/proxy"
	"smm-orders/internal/core/ratelimit"
	"smm-orders/internal/core/requestdef"
	"smm-orders/internal/core/server"
	"smm-orders/internal/features/orders/adapters/gormstore"
	"smm-orders/internal/features/orders/adapters/smm"
	orderhandler "smm-orders/internal/features/orders/handler"
	"smm-orders/internal/features/orders/jobs"
	"smm-orders/internal/features/orders/registry"
	orderservice "smm-orders/internal/features/orders/service"

	"go.uber.org/zap"
)

// @title SMM Orders API
// @version 1.0
// @description Submits, reconciles and cancels orders placed with an SMM provider panel.
// @contact.name API Support
// @license.name MIT
// @host localhost:8080
// @BasePath /
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	l := logger.Get()
	l.Info("Application starting",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
	)

	db, err := database.Open(cfg.Database)
	if err != nil {
		l.Fatal("Failed to open database", zap.Error(err))
	}
	defer database.Close(db)

	if err := database.Migrate(db, gormstore.Models()...); err != nil {
		l.Fatal("Failed to migrate database", zap.Error(err))
	}

	m := metrics.New()

	var limiter ratelimit.Limiter
	if cfg.Redis.URL != "" {
		redisLimiter, err := ratelimit.NewRedisLimiter(cfg.Redis.URL)
		if err != nil {
			l.Fatal("Failed to configure Redis limiter", zap.Error(err))
		}
		defer redisLimiter.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = redisLimiter.Ping(pingCtx)
		cancel()
		if err != nil {
			l.Fatal("Redis unreachable", zap.Error(err))
		}
		limiter = redisLimiter
		l.Info("Using Redis rate limiter")
	} else {
		limiter = ratelimit.NewMemoryLimiter()
		l.Warn("REDIS_URL not set, rate limiting is local to this process")
	}

	httpClient := httpclient.NewClient(httpclient.DefaultTimeout,
		httpclient.WithProxy(proxy.FromConfig(cfg.Proxy)),
		httpclient.WithMetrics(m),
	)
	sender := requestdef.NewSender(httpClient,
		requestdef.WithLimiter(limiter),
		requestdef.WithMetrics(m),
		requestdef.WithDebugHeader(cfg.IsDevelopment()),
	)

	// Initialize the provider client and run Health Check
	smmClient := smm.NewClient(cfg.Provider, sender, smm.WithMetrics(m))
	healthCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := smmClient.HealthCheck(healthCtx); err != nil {
		l.Warn("SMM provider health check failed", zap.Error(err))
	} else {
		l.Info("SMM provider connection verified")
	}
	cancel()

	providers := registry.NewDefaultRegistry(smmClient)

	// Initialize Order Service & Handler
	store := gormstore.NewStore(db)
	orderService := orderservice.NewOrderService(store, gormstore.NewUnitOfWorkFactory(db), providers,
		orderservice.WithMetrics(m),
	)
	orderHandler := orderhandler.NewOrderHandler(orderService)

	syncJob := jobs.NewSyncJob(store, orderService, cfg.Sync.Schedule, cfg.Sync.BatchSize)
	if err := syncJob.Start(); err != nil {
		l.Fatal("Failed to start status sync job", zap.Error(err))
	}
	defer syncJob.Stop()

	srv := server.New(cfg, m)

	// Register Routes
	orderHandler.Register(srv.App)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		l.Info("Shutting down")
		if err := srv.Shutdown(); err != nil {
			l.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	if err := srv.Run(); err != nil {
		l.Fatal("Server failed to start", zap.Error(err))
	}
}
