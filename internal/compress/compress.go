// Package compress shrinks oversized downloads with ffmpeg so they fit a byte budget.
package compress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/iconidentify/reelgrabba/internal/domain"
	"github.com/iconidentify/reelgrabba/pkg/ffmpeg"
)

// Transcoder re-encodes one file into another.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string, cfg ffmpeg.TranscodeConfig) error
}

// Compressor shrinks a video to fit a byte budget.
type Compressor interface {
	// Compress returns the path of a new file no larger than budgetBytes.
	// The input file is left untouched. On any error no output file remains.
	Compress(ctx context.Context, inputPath string, budgetBytes int64) (string, error)
}

// Service implements Compressor with a fixed transcode recipe. Compression is
// best effort: a result that is still over budget is discarded.
type Service struct {
	transcoder Transcoder
	cfg        ffmpeg.TranscodeConfig
	logger     *slog.Logger
}

// NewService creates a compression service.
func NewService(transcoder Transcoder, cfg ffmpeg.TranscodeConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		transcoder: transcoder,
		cfg:        cfg,
		logger:     logger,
	}
}

// OutputPath returns <base>_compressed.mp4 for an input path.
func OutputPath(inputPath string) string {
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "_compressed.mp4"
}

// Compress implements Compressor.
func (s *Service) Compress(ctx context.Context, inputPath string, budgetBytes int64) (string, error) {
	outputPath := OutputPath(inputPath)
	logger := s.logger.With("input", inputPath, "output", outputPath)

	if err := s.transcoder.Transcode(ctx, inputPath, outputPath, s.cfg); err != nil {
		s.discard(logger, outputPath)
		return "", fmt.Errorf("%w: %v", domain.ErrCompressionFailed, err)
	}

	stat, err := os.Stat(outputPath)
	if err != nil {
		return "", fmt.Errorf("%w: stat output: %v", domain.ErrCompressionFailed, err)
	}

	if stat.Size() > budgetBytes {
		logger.Info("compressed file still over budget",
			"size_bytes", stat.Size(),
			"budget_bytes", budgetBytes,
		)
		s.discard(logger, outputPath)
		return "", fmt.Errorf("%w: %d > %d bytes", domain.ErrOverBudget, stat.Size(), budgetBytes)
	}

	logger.Info("video compressed", "size_bytes", stat.Size())
	return outputPath, nil
}

func (s *Service) discard(logger *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to remove compression output", "path", path, "error", err)
	}
}
