package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/timmy/kinflick/internal/api"
	"github.com/timmy/kinflick/internal/config"
	"github.com/timmy/kinflick/internal/logger"
	"github.com/timmy/kinflick/internal/metrics"
	"github.com/timmy/kinflick/internal/repository"
	"github.com/timmy/kinflick/internal/service"
	"github.com/timmy/kinflick/internal/storage"
)

func main() {
	// Initialize logger from LOG_* / APP_ENV
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	photoRepo := repository.NewPhotoRepository(db)
	diaryRepo := repository.NewDiaryRepository(db)

	// Initialize storage (local, R2, S3)
	ctx := context.Background()
	objectStorage, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	if !cfg.Inference.HasCredential() {
		appLogger.Warn("CLAUDE_API_KEY is not set; diary generation will be rejected")
	}

	// Initialize services
	captionService := service.NewCaptionService(
		service.NewAnthropicClient(&cfg.Inference),
		service.NewPhotoReader(objectStorage, cfg.Inference.Timeout),
		service.NewCaptionConfig(cfg),
		appLogger,
		m,
	)
	photoService := service.NewPhotoService(photoRepo, objectStorage, appLogger, &cfg.Upload)
	diaryService := service.NewDiaryService(diaryRepo, photoRepo, captionService, appLogger, &service.DiaryConfig{
		MaxConcurrentBatches: cfg.Caption.MaxConcurrentBatches,
	})

	deps := &api.Dependencies{
		Photos:  photoService,
		Diaries: diaryService,
		Ping: func(ctx context.Context) error {
			return repository.Ping(ctx, db)
		},
		Metrics: m,
		Logger:  appLogger,
	}
	if local, ok := objectStorage.(*storage.LocalStorage); ok && strings.HasPrefix(cfg.Storage.PublicURL, "/") {
		deps.UploadsPath = strings.TrimSuffix(cfg.Storage.PublicURL, "/")
		deps.UploadsDir = local.BaseDir()
	}

	// Setup router
	router := api.SetupRouter(deps, cfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	appLogger.Info("Server exited")
}
