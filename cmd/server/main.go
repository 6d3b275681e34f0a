package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iconidentify/reelgrabba/internal/api"
	"github.com/iconidentify/reelgrabba/internal/api/handler"
	"github.com/iconidentify/reelgrabba/internal/app"
	"github.com/iconidentify/reelgrabba/internal/config"
	"github.com/iconidentify/reelgrabba/internal/service"
	"github.com/iconidentify/reelgrabba/internal/worker"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("reelgrabba %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting reelgrabba",
		"version", Version,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Server.Validate(); err != nil {
		logger.Error("invalid server config", "error", err)
		os.Exit(1)
	}
	if wt := cfg.Server.WriteTimeout; wt > 0 && wt <= cfg.Acquire.Timeout {
		logger.Warn("write timeout does not outlast acquire timeout; slow acquisitions will be cut off",
			"write_timeout", wt, "acquire_timeout", cfg.Acquire.Timeout)
	}

	// Initialize dependencies
	initCtx, cancelInit := context.WithTimeout(context.Background(), 5*time.Minute)
	pipeline, err := app.NewPipeline(initCtx, cfg, logger)
	cancelInit()
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	if version, err := pipeline.FFmpeg.Version(context.Background()); err == nil {
		logger.Info("ffmpeg ready", "path", pipeline.FFmpeg.FFmpegPath(), "version", version)
	}

	jobRepo, closeRepo, err := app.OpenJobRepository(cfg.Store)
	if err != nil {
		logger.Error("failed to open job store", "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	// Initialize services
	acqSvc := service.NewAcquisitionService(
		pipeline.Orchestrator,
		jobRepo,
		service.AcquisitionConfig{
			SizeBudget:  cfg.Media.MaxFileSize,
			Timeout:     cfg.Acquire.Timeout,
			ArtifactTTL: cfg.Acquire.ArtifactTTL,
			MaxRetries:  cfg.Worker.MaxRetries,
		},
		logger,
	)

	// Initialize handlers
	acqHandler := handler.NewAcquisitionHandler(acqSvc, logger)
	healthHandler := handler.NewHealthHandler(jobRepo, pipeline.FFmpeg, cfg.Media.DownloadPath)

	// Setup router
	router := api.NewRouter(acqHandler, healthHandler, api.RouterConfig{
		APIKey:         cfg.Server.APIKey,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		RequestTimeout: cfg.Acquire.Timeout + time.Minute,
	}, logger)

	// Initialize worker pool
	pool := worker.NewPool(
		worker.Config{
			Workers:      cfg.Worker.Count,
			PollInterval: cfg.Worker.PollInterval,
		},
		jobRepo,
		acqSvc,
		acqSvc,
		logger,
	)

	// Start worker pool
	pool.Start()

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting new requests
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Stop workers (allow in-flight jobs to complete)
	if err := pool.Stop(25 * time.Second); err != nil {
		logger.Error("worker pool shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
