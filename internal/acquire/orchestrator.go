// Package acquire runs the bounded-size acquisition pipeline: detect the
// platform, download, then compress or fall back to a degraded re-download.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/iconidentify/reelgrabba/internal/compress"
	"github.com/iconidentify/reelgrabba/internal/domain"
	"github.com/iconidentify/reelgrabba/internal/extractor"
	"github.com/iconidentify/reelgrabba/internal/platform"
)

// Acquirer turns a request into a single Outcome.
type Acquirer interface {
	Acquire(ctx context.Context, req domain.AcquisitionRequest) domain.Outcome
}

// Orchestrator implements Acquirer. It holds no per-request state, so one
// instance serves concurrent requests.
type Orchestrator struct {
	fetcher     extractor.Fetcher
	compressor  compress.Compressor
	downloadDir string
	logger      *slog.Logger
}

// NewOrchestrator creates an orchestrator writing into downloadDir, which
// must already exist.
func NewOrchestrator(fetcher extractor.Fetcher, compressor compress.Compressor, downloadDir string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		fetcher:     fetcher,
		compressor:  compressor,
		downloadDir: downloadDir,
		logger:      logger,
	}
}

// DownloadDir returns the directory artifacts are written to.
func (o *Orchestrator) DownloadDir() string {
	return o.downloadDir
}

// Acquire implements Acquirer. It never panics and never returns an error;
// every failure becomes domain.Failure. On success the caller owns the
// artifact file and must delete it.
func (o *Orchestrator) Acquire(ctx context.Context, req domain.AcquisitionRequest) (outcome domain.Outcome) {
	logger := o.logger.With("request_url", req.URL)

	budget := req.SizeBudgetBytes
	if budget <= 0 {
		budget = domain.DefaultSizeBudget
	}

	// pending is the file this request currently owns on disk.
	var pending string
	defer func() {
		if r := recover(); r != nil {
			logger.Error("acquisition panicked", "panic", r)
			o.remove(logger, pending)
			outcome = domain.Failure(fmt.Sprintf("internal error: %v", r))
		}
	}()

	tag := platform.Detect(req.URL)
	policy := platform.PolicyFor(tag, budget)
	template := extractor.Template(o.downloadDir)
	logger = logger.With("platform", tag.String())

	logger.Info("downloading", "policy", policy.Name())
	path, meta, err := o.fetcher.Fetch(ctx, req.URL, policy, template)
	if err != nil {
		logger.Warn("download failed", "error", err)
		return domain.Failure(domain.NewAcquisitionError("", "download", err).Error())
	}
	pending = path

	size, err := fileSize(path)
	if err != nil {
		logger.Warn("download produced no file", "path", path, "error", err)
		return domain.Failure(domain.NewAcquisitionError("", "download", fmt.Errorf("%w: no file produced", domain.ErrDownloadFailed)).Error())
	}

	if size <= budget {
		logger.Info("download within budget", "size_bytes", size)
		return domain.Success(domain.MediaArtifact{
			LocalPath: path,
			Metadata:  meta,
			SizeBytes: size,
			Platform:  tag,
		})
	}

	logger.Info("download over budget, compressing", "size_bytes", size, "budget_bytes", budget)
	compressed, err := o.compressor.Compress(ctx, path, budget)
	if err == nil {
		o.remove(logger, path)
		pending = compressed

		csize, err := fileSize(compressed)
		if err != nil {
			return domain.Failure(domain.NewAcquisitionError("", "compress", fmt.Errorf("%w: %v", domain.ErrCompressionFailed, err)).Error())
		}
		// The compressed file has no metadata of its own; the download's is reused.
		return domain.Success(domain.MediaArtifact{
			LocalPath:  compressed,
			Metadata:   meta,
			SizeBytes:  csize,
			Platform:   tag,
			Compressed: true,
		})
	}

	logger.Info("compression did not fit, retrying with degraded policy", "error", err)
	o.remove(logger, path)
	pending = ""

	path, meta, err = o.fetcher.Fetch(ctx, req.URL, domain.DegradedPolicy(), template)
	if err != nil {
		logger.Warn("degraded download failed", "error", err)
		return domain.Failure(domain.NewAcquisitionError("", "retry", err).Error())
	}
	pending = path

	size, err = fileSize(path)
	if err != nil {
		logger.Warn("degraded download produced no file", "path", path, "error", err)
		return domain.Failure(domain.NewAcquisitionError("", "retry", fmt.Errorf("%w: no file produced", domain.ErrDownloadFailed)).Error())
	}

	if size > budget {
		logger.Info("degraded download still over budget", "size_bytes", size, "budget_bytes", budget)
		o.remove(logger, path)
		pending = ""
		return domain.Failure(domain.ErrTooLarge.Error())
	}

	logger.Info("degraded download within budget", "size_bytes", size)
	return domain.Success(domain.MediaArtifact{
		LocalPath: path,
		Metadata:  meta,
		SizeBytes: size,
		Platform:  tag,
	})
}

func (o *Orchestrator) remove(logger *slog.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to remove file", "path", path, "error", err)
	}
}

func fileSize(path string) (int64, error) {
	if path == "" {
		return 0, os.ErrNotExist
	}
	stat, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}
