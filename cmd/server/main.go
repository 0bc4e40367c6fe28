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

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/f1-velocity/internal/api"
	"github.com/stitts-dev/f1-velocity/internal/api/middleware"
	"github.com/stitts-dev/f1-velocity/internal/dataset"
	"github.com/stitts-dev/f1-velocity/internal/prediction"
	"github.com/stitts-dev/f1-velocity/internal/providers"
	"github.com/stitts-dev/f1-velocity/internal/services"
	"github.com/stitts-dev/f1-velocity/internal/stats"
	"github.com/stitts-dev/f1-velocity/internal/training"
	"github.com/stitts-dev/f1-velocity/pkg/config"
	"github.com/stitts-dev/f1-velocity/pkg/database"
	"github.com/stitts-dev/f1-velocity/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logger
	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	log.WithFields(logrus.Fields{
		"env":          cfg.Env,
		"port":         cfg.Port,
		"data_dir":     cfg.DataDir,
		"artifact_dir": cfg.ArtifactDir,
	}).Info("Starting f1-velocity server")

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Prediction artifacts; the server still starts without them so that
	// they can be produced and loaded later via /admin/reload
	predictor := prediction.NewService(cfg.ArtifactDir, log)
	if err := predictor.Reload(); err != nil {
		log.WithError(err).Warn("Prediction artifacts not loaded, run `f1ctl train` and POST /api/v1/admin/reload")
	}

	deps := api.Dependencies{
		Predictor: predictor,
		Logger:    log,
	}

	// Stats views over the raw tables
	db, err := database.NewConnection(cfg.StatsDSN, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to open stats database: %v", err)
	}
	defer db.Close()

	if tables, err := dataset.Load(cfg.DataDir); err != nil {
		log.WithError(err).Warn("Raw tables unavailable, stats endpoints disabled")
	} else {
		store := stats.NewStore(db, log)
		if _, err := store.Load(ctx, tables); err != nil {
			log.Fatalf("Failed to load stats tables: %v", err)
		}
		deps.Stats = store
		if sqlDB, err := db.DB.DB(); err == nil {
			deps.Database = sqlDB
		}
	}

	// Images: synced lookups first, then live lookups when a key is configured
	var fetcher services.ImageFetcher
	breakers := services.NewImageBreaker(cfg, log)
	client, err := services.NewImageClient(ctx, cfg, breakers, log)
	switch {
	case err == nil:
		fetcher = client
		deps.Breakers = breakers
	case errors.Is(err, providers.ErrMissingAPIKey):
		log.Info("APISPORTS_API_KEY not set, serving synced and fallback images only")
	default:
		log.Fatalf("Failed to create image client: %v", err)
	}
	images := services.NewImageService(cfg.ArtifactDir, fetcher, cfg.FallbackImageURL, log)
	if err := images.Load(); err != nil {
		log.WithError(err).Warn("Image lookups not loaded")
	}
	deps.Images = images

	// Scheduled retraining
	if cfg.RetrainSchedule != "" {
		trainer := training.NewTrainer(cfg.DataDir, cfg.ArtifactDir, log)
		scheduler := services.NewRetrainScheduler(trainer, log, predictor)
		if err := scheduler.Start(cfg.RetrainSchedule); err != nil {
			log.Fatalf("Failed to start retrain scheduler: %v", err)
		}
		defer scheduler.Stop()
		deps.Retrain = scheduler
	}

	// Setup Gin router
	router := gin.New()
	if cfg.IsProduction() {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.WithError(err).Warn("Failed to reset trusted proxies")
		}
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.CORS(cfg.CorsOrigins))

	api.SetupRoutes(router, deps)

	for _, route := range router.Routes() {
		log.Debugf("%s %s", route.Method, route.Path)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithService("f1-velocity").Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
