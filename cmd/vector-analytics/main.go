package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/radiusdt/vector-analytics/internal/analytics"
	"github.com/radiusdt/vector-analytics/internal/cache"
	"github.com/radiusdt/vector-analytics/internal/config"
	"github.com/radiusdt/vector-analytics/internal/database"
	"github.com/radiusdt/vector-analytics/internal/httpserver"
	"github.com/radiusdt/vector-analytics/internal/kv"
	"github.com/radiusdt/vector-analytics/internal/metrics"
	"github.com/radiusdt/vector-analytics/internal/middleware"
	"github.com/radiusdt/vector-analytics/internal/realtime"
	"github.com/radiusdt/vector-analytics/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg)
	defer logger.Sync()

	logger.Info("starting Vector-Analytics",
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
		zap.String("store_driver", cfg.Store.Driver),
	)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics("vector_analytics")
	}

	ctx := context.Background()

	// Metric store: configured backend, degrading to in-memory when the
	// backend is unreachable.
	var store storage.MetricStore
	var campaigns storage.CampaignRepo

	switch cfg.Store.Driver {
	case "postgres":
		db, err := database.NewPostgresDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Warn("PostgreSQL not available, using in-memory storage", zap.Error(err))
		} else {
			defer db.Close()
			store = storage.NewPostgresMetricStore(db.Pool)
			campaigns = storage.NewPostgresCampaignRepo(db.Pool)
		}
	case "clickhouse":
		ch, err := database.NewClickHouseDB(ctx, cfg.ClickHouse, logger)
		if err != nil {
			logger.Warn("ClickHouse not available, using in-memory storage", zap.Error(err))
		} else {
			defer ch.Close()
			store = storage.NewClickHouseMetricStore(ch.Conn)
		}
	}
	if store == nil {
		store = storage.NewInMemoryMetricStore()
	}
	if campaigns == nil {
		campaigns = storage.NewInMemoryCampaignRepo()
	}

	// Cache store and broadcast broker: Redis in production, in-memory when
	// Redis is unreachable (single-instance degraded mode).
	var kvStore kv.Store
	var broker kv.Broker

	redisDB, err := database.NewRedisDB(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis not available, cache and fan-out run in-process only", zap.Error(err))
		kvStore = kv.NewMemoryStore()
		broker = kv.NewMemoryBroker()
	} else {
		defer redisDB.Close()
		kvStore = kv.NewRedisStore(redisDB.Client)
		broker = kv.NewRedisBroker(redisDB.Client)
	}

	aggCache := cache.New(kvStore, cfg.Cache.TTL, logger, m)
	service := analytics.NewService(store, campaigns, aggCache, logger, m)

	hub := realtime.NewHub(cfg.Realtime, service, broker, logger, m)
	service.SetNotifier(hub)
	defer hub.Close()

	hubCtx, hubCancel := context.WithCancel(ctx)
	defer hubCancel()
	go func() {
		if err := hub.Run(hubCtx); err != nil && hubCtx.Err() == nil {
			logger.Error("broadcast listener stopped", zap.Error(err))
		}
	}()

	// Create HTTP server
	deps := &httpserver.Dependencies{
		Service: service,
		Hub:     hub,
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
	}

	handler := httpserver.NewServer(deps)

	// Middleware chain: recovery outermost, then logging, rate limit, auth.
	rateLimit := middleware.NewRateLimitMiddleware(cfg.RateLimit, logger)
	rateLimit.SetMetrics(m)
	auth := middleware.NewAuthMiddleware(cfg.Auth, logger)
	logging := middleware.NewLoggingMiddleware(logger)
	recovery := middleware.NewRecoveryMiddleware(logger)

	handler = auth.Handler(handler)
	handler = rateLimit.Handler(handler)
	handler = logging.Handler(handler)
	handler = recovery.Handler(handler)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket connections are long-lived
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	hubCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func setupLogger(cfg *config.Config) *zap.Logger {
	var zapCfg zap.Config

	if cfg.IsDevelopment() {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	// Set log level
	switch cfg.Log.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}

	return logger
}
