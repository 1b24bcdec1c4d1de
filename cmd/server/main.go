package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hargapangan/pangan-monitor/config"
	"github.com/hargapangan/pangan-monitor/internal/app/controller"
	"github.com/hargapangan/pangan-monitor/internal/app/repository"
	"github.com/hargapangan/pangan-monitor/internal/app/service"
	"github.com/hargapangan/pangan-monitor/internal/cache"
	"github.com/hargapangan/pangan-monitor/internal/db"
	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/internal/middleware"
	"github.com/hargapangan/pangan-monitor/internal/router"
	"github.com/hargapangan/pangan-monitor/internal/storage"
	"github.com/hargapangan/pangan-monitor/internal/websocket"
	"github.com/hargapangan/pangan-monitor/pkg/logger"
	"github.com/hargapangan/pangan-monitor/pkg/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	logCfg := logger.ForEnvironment(cfg.Server.Environment)
	logger.Initialize(logCfg)

	logger.Info("Starting Pangan Monitor Server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"upstream":    cfg.Upstream.BaseURL,
		"log_level":   logCfg.Level,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// National feed cache: Redis when enabled, in-process otherwise
	var snapshotCache cache.SnapshotCache
	if cfg.Redis.Enabled {
		if err := redis.Init(&cfg.Redis); err != nil {
			logger.Warn("Redis unavailable, using in-memory cache", map[string]interface{}{
				"error": err.Error(),
			})
			snapshotCache = cache.NewMemorySnapshotCache(cfg.Reconcile.SnapshotTTL)
		} else {
			snapshotCache = cache.NewRedisSnapshotCache(redis.GetClient(), cfg.Reconcile.SnapshotTTL)
			defer func() {
				if err := redis.Close(); err != nil {
					logger.Error("Failed to close Redis connection", err)
				}
			}()
		}
	} else {
		snapshotCache = cache.NewMemorySnapshotCache(cfg.Reconcile.SnapshotTTL)
	}

	// Price backend client
	client, err := hargaapi.NewClient(hargaapi.Config{
		BaseURL:  cfg.Upstream.BaseURL,
		Timeout:  cfg.Upstream.Timeout,
		PageSize: cfg.Upstream.PageSize,
	})
	if err != nil {
		logger.Fatal("Failed to create price backend client", err)
	}

	// Evidence uploads are optional
	var evidence storage.EvidenceStorage
	if cfg.S3.Bucket != "" {
		evidence = storage.NewS3Storage(
			cfg.S3.Region,
			cfg.S3.Bucket,
			cfg.S3.AccessKeyID,
			cfg.S3.SecretAccessKey,
			cfg.S3.BaseURL,
			cfg.S3.PresignExpiry,
		)
	}

	// Initialize repositories
	overrideRepo := repository.NewOverrideRepository(db.GetDB())
	snapshotRepo := repository.NewSnapshotRepository(db.GetDB())

	// Live feed
	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()

	comparisonService := service.NewComparisonService(client, snapshotCache, snapshotRepo)
	feed := websocket.NewFeed(comparisonService, hub, 2*cfg.Upstream.Timeout)
	hub.SetRefreshHandler(func(c *websocket.Client) {
		feed.Refresh(c.Session, c.CommodityID)
	})
	hub.SetRoomEmptyHandler(feed.Forget)

	// Initialize services
	priceService := service.NewPriceService(client, snapshotCache, snapshotRepo, feed)
	trendService := service.NewTrendService(client, snapshotRepo, cfg.Reconcile.TrendLookbackDays)
	overrideService := service.NewOverrideService(
		client,
		snapshotCache,
		snapshotRepo,
		overrideRepo,
		evidence,
		cfg.Reconcile.OverrideApprovalThreshold,
		feed,
	)

	// Initialize controllers
	priceController := controller.NewPriceController(priceService)
	comparisonController := controller.NewComparisonController(comparisonService, trendService)
	overrideController := controller.NewOverrideController(overrideService)
	liveController := controller.NewLiveController(hub, feed, cfg.CORS.AllowedOrigins)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	// Setup router
	r := router.NewRouter(
		priceController,
		comparisonController,
		overrideController,
		liveController,
		authMiddleware,
		cfg,
	)
	r.AddHealthCheck("database", db.Ping)
	if redis.GetClient() != nil {
		r.AddHealthCheck("redis", redis.Ping)
	}
	engine := r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: engine,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}
	feed.Wait()

	logger.Info("Server stopped successfully")
}
