package repository

import (
	"context"
	"time"

	"github.com/iconidentify/reelgrabba/internal/domain"
)

// JobRepository manages the acquisition job queue and job history.
type JobRepository interface {
	// Enqueue adds a job to the queue.
	Enqueue(ctx context.Context, job *domain.Job) error

	// Dequeue claims the next queued or retrying job (FIFO) and marks it
	// processing, so two workers never receive the same job.
	Dequeue(ctx context.Context) (*domain.Job, error)

	// Update modifies job state.
	Update(ctx context.Context, job *domain.Job) error

	// Get retrieves a job by ID.
	Get(ctx context.Context, id domain.JobID) (*domain.Job, error)

	// List returns the most recently created jobs, newest first.
	List(ctx context.Context, limit int) ([]*domain.Job, error)

	// ListPending returns all queued/retrying jobs.
	ListPending(ctx context.Context) ([]*domain.Job, error)

	// ListUnreleased returns completed jobs whose artifact is still on disk
	// and that finished before the cutoff.
	ListUnreleased(ctx context.Context, finishedBefore time.Time) ([]*domain.Job, error)

	// Stats returns queue statistics.
	Stats(ctx context.Context) (*QueueStats, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

// QueueStats contains job queue statistics.
type QueueStats struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Retrying   int `json:"retrying"`
}

func (s *QueueStats) add(status domain.JobStatus, n int) {
	switch status {
	case domain.JobStatusQueued:
		s.Queued += n
	case domain.JobStatusProcessing:
		s.Processing += n
	case domain.JobStatusCompleted:
		s.Completed += n
	case domain.JobStatusFailed:
		s.Failed += n
	case domain.JobStatusRetrying:
		s.Retrying += n
	}
}

func isPending(status domain.JobStatus) bool {
	return status == domain.JobStatusQueued || status == domain.JobStatusRetrying
}

// cloneJob copies a job so callers never share state with the store.
func cloneJob(j *domain.Job) *domain.Job {
	c := *j
	if j.Artifact != nil {
		a := *j.Artifact
		c.Artifact = &a
	}
	if j.ReleasedAt != nil {
		t := *j.ReleasedAt
		c.ReleasedAt = &t
	}
	return &c
}
