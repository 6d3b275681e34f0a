package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/iconidentify/reelgrabba/internal/domain"
	"github.com/iconidentify/reelgrabba/internal/repository"
)

// ErrShutdownTimeout is returned when workers don't stop within timeout.
var ErrShutdownTimeout = errors.New("worker pool shutdown timed out")

// Processor runs one acquisition job.
type Processor interface {
	Process(ctx context.Context, job *domain.Job) (domain.MediaArtifact, error)
}

// Sweeper releases artifacts nobody collected in time.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Pool manages a pool of workers for processing acquisition jobs.
type Pool struct {
	workers       int
	pollInterval  time.Duration
	sweepInterval time.Duration
	jobRepo       repository.JobRepository
	processor     Processor
	sweeper       Sweeper
	logger        *slog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Config holds worker pool configuration.
type Config struct {
	Workers       int
	PollInterval  time.Duration
	SweepInterval time.Duration
}

// NewPool creates a new worker pool. A nil sweeper disables artifact sweeping.
func NewPool(
	cfg Config,
	jobRepo repository.JobRepository,
	processor Processor,
	sweeper Sweeper,
	logger *slog.Logger,
) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		workers:       cfg.Workers,
		pollInterval:  cfg.PollInterval,
		sweepInterval: cfg.SweepInterval,
		jobRepo:       jobRepo,
		processor:     processor,
		sweeper:       sweeper,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start launches all workers and the sweeper.
func (p *Pool) Start() {
	p.logger.Info("starting worker pool", "workers", p.workers)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	if p.sweeper != nil {
		p.wg.Add(1)
		go p.sweep()
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop(timeout time.Duration) error {
	p.logger.Info("stopping worker pool")
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	logger := p.logger.With("worker_id", id)
	logger.Info("worker started")

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			logger.Info("worker stopping")
			return
		case <-ticker.C:
			// Drain the queue before waiting for the next tick.
			for p.processNextJob(logger) {
				if p.ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// processNextJob reports whether a job was taken from the queue.
func (p *Pool) processNextJob(logger *slog.Logger) bool {
	job, err := p.jobRepo.Dequeue(p.ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNoJobs) {
			logger.Error("failed to dequeue job", "error", err)
		}
		return false
	}

	logger = logger.With("job_id", job.ID, "request_url", job.URL)
	logger.Info("processing job")

	// Dequeue already claimed the job; keep the local copy in step.
	job.MarkProcessing()
	if err := p.jobRepo.Update(p.ctx, job); err != nil {
		logger.Error("failed to update job status", "error", err)
		return true
	}

	artifact, err := p.processor.Process(p.ctx, job)
	if err != nil {
		p.handleJobFailure(logger, job, err)
		return true
	}

	job.MarkCompleted(artifact)
	ctx, cancel := p.updateContext()
	defer cancel()
	if err := p.jobRepo.Update(ctx, job); err != nil {
		// An unrecorded completion is never swept, so the file goes now.
		logger.Error("failed to mark job completed", "error", err)
		if rmErr := os.Remove(artifact.LocalPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warn("failed to remove unrecorded artifact", "path", artifact.LocalPath, "error", rmErr)
		}
		job.Artifact = nil
		p.handleJobFailure(logger, job, fmt.Errorf("record completion: %w", err))
		return true
	}

	logger.Info("job completed successfully",
		"path", artifact.LocalPath,
		"size_bytes", artifact.SizeBytes,
		"compressed", artifact.Compressed,
	)
	return true
}

func (p *Pool) handleJobFailure(logger *slog.Logger, job *domain.Job, err error) {
	job.MarkFailed(err.Error())

	if job.CanRetry() {
		logger.Warn("job failed, will retry",
			"error", err,
			"attempt", job.Attempts,
			"max_retries", job.MaxRetries,
		)
	} else {
		logger.Error("job failed permanently",
			"error", err,
			"attempts", job.Attempts,
		)
	}

	ctx, cancel := p.updateContext()
	defer cancel()
	if updateErr := p.jobRepo.Update(ctx, job); updateErr != nil {
		logger.Error("failed to update job after failure", "error", updateErr)
	}
}

// updateContext outlives Stop so a finished job's outcome is still recorded.
func (p *Pool) updateContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(p.ctx), 5*time.Second)
}

func (p *Pool) sweep() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.sweeper.SweepExpired(p.ctx); err != nil {
				p.logger.Error("artifact sweep failed", "error", err)
			}
		}
	}
}
