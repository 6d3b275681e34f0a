package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iconidentify/reelgrabba/internal/acquire"
	"github.com/iconidentify/reelgrabba/internal/domain"
	"github.com/iconidentify/reelgrabba/internal/platform"
	"github.com/iconidentify/reelgrabba/internal/repository"
)

// AcquisitionConfig holds the knobs the service applies to every request.
type AcquisitionConfig struct {
	SizeBudget  int64
	Timeout     time.Duration
	ArtifactTTL time.Duration
	MaxRetries  int
}

// AcquisitionService queues acquisition jobs, runs them through the
// pipeline and manages the lifetime of the produced files.
type AcquisitionService struct {
	acquirer acquire.Acquirer
	jobRepo  repository.JobRepository
	cfg      AcquisitionConfig
	logger   *slog.Logger
}

// NewAcquisitionService creates a new acquisition service.
func NewAcquisitionService(
	acquirer acquire.Acquirer,
	jobRepo repository.JobRepository,
	cfg AcquisitionConfig,
	logger *slog.Logger,
) *AcquisitionService {
	if cfg.SizeBudget <= 0 {
		cfg.SizeBudget = domain.DefaultSizeBudget
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.ArtifactTTL <= 0 {
		cfg.ArtifactTTL = 15 * time.Minute
	}
	return &AcquisitionService{
		acquirer: acquirer,
		jobRepo:  jobRepo,
		cfg:      cfg,
		logger:   logger,
	}
}

// SubmitResponse is returned after queueing an acquisition.
type SubmitResponse struct {
	JobID    domain.JobID
	URL      string
	Platform domain.PlatformTag
	Status   domain.JobStatus
}

// Submit queues an acquisition for a single video URL.
func (s *AcquisitionService) Submit(ctx context.Context, url string) (*SubmitResponse, error) {
	url = strings.TrimSpace(url)
	tag := platform.Detect(url)
	if tag == domain.PlatformUnknown {
		return nil, domain.ErrUnsupportedURL
	}

	jobID := domain.JobID("job_" + uuid.New().String()[:8])
	job := domain.NewJob(jobID, url, tag, s.cfg.MaxRetries)

	if err := s.jobRepo.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	s.logger.Info("acquisition submitted",
		"job_id", jobID,
		"request_url", url,
		"platform", tag,
	)

	return &SubmitResponse{
		JobID:    jobID,
		URL:      url,
		Platform: tag,
		Status:   job.Status,
	}, nil
}

// SubmitMessage scans chat message text for the first supported video link
// and queues it.
func (s *AcquisitionService) SubmitMessage(ctx context.Context, content string) (*SubmitResponse, error) {
	url, _, ok := platform.ExtractLink(content)
	if !ok {
		return nil, domain.ErrNoLink
	}
	return s.Submit(ctx, url)
}

// Process runs one job through the pipeline under the configured timeout.
// The returned error carries the failure reason of the outcome.
func (s *AcquisitionService) Process(ctx context.Context, job *domain.Job) (domain.MediaArtifact, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	outcome := s.acquirer.Acquire(ctx, domain.AcquisitionRequest{
		URL:             job.URL,
		SizeBudgetBytes: s.cfg.SizeBudget,
	})

	artifact, ok := outcome.Artifact()
	if !ok {
		return domain.MediaArtifact{}, errors.New(outcome.Reason())
	}
	return artifact, nil
}

// AcquireNow runs the pipeline synchronously for one URL. The caller owns
// the artifact of a successful outcome and must delete it.
func (s *AcquisitionService) AcquireNow(ctx context.Context, url string) (domain.Outcome, error) {
	url = strings.TrimSpace(url)
	if platform.Detect(url) == domain.PlatformUnknown {
		return domain.Outcome{}, domain.ErrUnsupportedURL
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	return s.acquirer.Acquire(ctx, domain.AcquisitionRequest{
		URL:             url,
		SizeBudgetBytes: s.cfg.SizeBudget,
	}), nil
}

// Get returns a job by ID.
func (s *AcquisitionService) Get(ctx context.Context, jobID domain.JobID) (*domain.Job, error) {
	return s.jobRepo.Get(ctx, jobID)
}

// List returns recent jobs, newest first.
func (s *AcquisitionService) List(ctx context.Context, limit int) ([]*domain.Job, error) {
	return s.jobRepo.List(ctx, limit)
}

// Stats returns queue statistics.
func (s *AcquisitionService) Stats(ctx context.Context) (*repository.QueueStats, error) {
	return s.jobRepo.Stats(ctx)
}

// Artifact borrows the file of a completed job. The file stays on disk until
// Release is called or the borrow window expires.
func (s *AcquisitionService) Artifact(ctx context.Context, jobID domain.JobID) (domain.MediaArtifact, error) {
	job, err := s.jobRepo.Get(ctx, jobID)
	if err != nil {
		return domain.MediaArtifact{}, err
	}

	if !job.Status.IsFinished() {
		return domain.MediaArtifact{}, domain.ErrJobNotFinished
	}
	if !job.HasArtifact() {
		return domain.MediaArtifact{}, domain.ErrArtifactGone
	}

	if _, err := os.Stat(job.Artifact.LocalPath); err != nil {
		s.logger.Warn("artifact file missing", "job_id", jobID, "path", job.Artifact.LocalPath, "error", err)
		job.MarkReleased()
		if err := s.jobRepo.Update(ctx, job); err != nil {
			s.logger.Error("failed to mark artifact released", "job_id", jobID, "error", err)
		}
		return domain.MediaArtifact{}, domain.ErrArtifactGone
	}

	return *job.Artifact, nil
}

// Release deletes the artifact file of a job. Releasing twice is a no-op.
func (s *AcquisitionService) Release(ctx context.Context, jobID domain.JobID) error {
	job, err := s.jobRepo.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.HasArtifact() {
		return nil
	}
	return s.release(ctx, job)
}

func (s *AcquisitionService) release(ctx context.Context, job *domain.Job) error {
	if err := os.Remove(job.Artifact.LocalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove artifact",
			"job_id", job.ID,
			"path", job.Artifact.LocalPath,
			"error", err,
		)
	}

	job.MarkReleased()
	if err := s.jobRepo.Update(ctx, job); err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	s.logger.Info("artifact released", "job_id", job.ID)
	return nil
}

// SweepExpired deletes artifacts whose borrow window has elapsed and returns
// how many were released.
func (s *AcquisitionService) SweepExpired(ctx context.Context) (int, error) {
	jobs, err := s.jobRepo.ListUnreleased(ctx, time.Now().Add(-s.cfg.ArtifactTTL))
	if err != nil {
		return 0, fmt.Errorf("list unreleased: %w", err)
	}

	released := 0
	for _, job := range jobs {
		if err := s.release(ctx, job); err != nil {
			s.logger.Error("failed to release expired artifact", "job_id", job.ID, "error", err)
			continue
		}
		released++
	}

	if released > 0 {
		s.logger.Info("expired artifacts swept", "count", released)
	}
	return released, nil
}
