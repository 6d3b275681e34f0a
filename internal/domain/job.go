package domain

import (
	"time"
)

// JobID is a unique identifier for a job.
type JobID string

// String returns the string representation of the JobID.
func (id JobID) String() string {
	return string(id)
}

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// IsFinished reports whether the job reached a terminal state.
func (s JobStatus) IsFinished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is one queued acquisition request.
type Job struct {
	ID         JobID
	URL        string
	Platform   PlatformTag
	Status     JobStatus
	Attempts   int
	MaxRetries int
	LastError  string
	Artifact   *MediaArtifact
	ReleasedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewJob creates a new queued acquisition job.
func NewJob(id JobID, url string, platform PlatformTag, maxRetries int) *Job {
	now := time.Now()
	return &Job{
		ID:         id,
		URL:        url,
		Platform:   platform,
		Status:     JobStatusQueued,
		Attempts:   0,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// CanRetry returns true if the job can be retried.
func (j *Job) CanRetry() bool {
	return j.Attempts < j.MaxRetries
}

// MarkProcessing updates the job status to processing.
func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.UpdatedAt = time.Now()
}

// MarkCompleted records the produced artifact and completes the job.
func (j *Job) MarkCompleted(artifact MediaArtifact) {
	j.Status = JobStatusCompleted
	j.Artifact = &artifact
	j.LastError = ""
	j.UpdatedAt = time.Now()
}

// MarkFailed updates the job status to failed with an error message.
func (j *Job) MarkFailed(err string) {
	j.Attempts++
	j.LastError = err
	j.UpdatedAt = time.Now()

	if j.CanRetry() {
		j.Status = JobStatusRetrying
	} else {
		j.Status = JobStatusFailed
	}
}

// MarkReleased records that the artifact file was handed off or expired.
func (j *Job) MarkReleased() {
	now := time.Now()
	j.ReleasedAt = &now
	j.UpdatedAt = now
}

// HasArtifact reports whether a completed job still holds an unreleased file.
func (j *Job) HasArtifact() bool {
	return j.Status == JobStatusCompleted && j.Artifact != nil && j.ReleasedAt == nil
}
