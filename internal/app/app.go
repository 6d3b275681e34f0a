// Package app wires configuration into the acquisition pipeline so the
// server and the CLI build it the same way.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/lrstanley/go-ytdlp"

	"github.com/iconidentify/reelgrabba/internal/acquire"
	"github.com/iconidentify/reelgrabba/internal/compress"
	"github.com/iconidentify/reelgrabba/internal/config"
	"github.com/iconidentify/reelgrabba/internal/extractor"
	"github.com/iconidentify/reelgrabba/internal/repository"
	"github.com/iconidentify/reelgrabba/pkg/ffmpeg"
)

// Pipeline bundles the orchestrator with the tools it was built from.
type Pipeline struct {
	Orchestrator *acquire.Orchestrator
	FFmpeg       *ffmpeg.VideoProcessor
}

// NewPipeline resolves the external tools and builds the orchestrator.
// The download directory is created when missing.
func NewPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if err := os.MkdirAll(cfg.Media.DownloadPath, 0755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}

	ytdlpPath := cfg.Tools.YtDlpPath
	if cfg.Tools.AutoInstallYtDlp && ytdlpPath == "" {
		resolved, err := ytdlp.Install(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("install yt-dlp: %w", err)
		}
		ytdlpPath = resolved.Executable
		logger.Info("yt-dlp ready", "path", resolved.Executable, "version", resolved.Version)
	}

	proc, err := ffmpeg.NewVideoProcessor(cfg.Tools.FFmpegPath, cfg.Tools.FFprobePath)
	if err != nil {
		return nil, err
	}

	compressor := compress.NewService(proc, TranscodeConfig(cfg.Compress), logger)
	fetcher := extractor.NewYtDlpFetcher(ytdlpPath, logger)

	return &Pipeline{
		Orchestrator: acquire.NewOrchestrator(fetcher, compressor, cfg.Media.DownloadPath, logger),
		FFmpeg:       proc,
	}, nil
}

// TranscodeConfig maps the compress section onto the ffmpeg recipe.
func TranscodeConfig(c config.CompressConfig) ffmpeg.TranscodeConfig {
	return ffmpeg.TranscodeConfig{
		Preset:       c.Preset,
		CRF:          c.CRF,
		Width:        c.Width,
		AudioBitrate: c.AudioBitrate,
	}
}

// OpenJobRepository returns the configured job store and a function that
// closes it.
func OpenJobRepository(cfg config.StoreConfig) (repository.JobRepository, func() error, error) {
	switch cfg.Driver {
	case "", "memory":
		return repository.NewInMemoryJobRepository(), func() error { return nil }, nil
	case "sqlite":
		repo, err := repository.NewSQLiteJobRepository(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return repo, repo.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
