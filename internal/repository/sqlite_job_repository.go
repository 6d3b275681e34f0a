package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iconidentify/reelgrabba/internal/domain"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteJobRepository implements JobRepository on a SQLite database file.
// Job history survives restarts; artifact files do not, which the
// sweeper handles by releasing jobs whose files are gone.
type SQLiteJobRepository struct {
	db *sql.DB
}

// NewSQLiteJobRepository opens (or creates) the database at path.
func NewSQLiteJobRepository(path string) (*SQLiteJobRepository, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("sqlite: mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	if err := initJobSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}

	return &SQLiteJobRepository{db: db}, nil
}

func initJobSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS jobs (
		id          TEXT PRIMARY KEY,
		url         TEXT NOT NULL,
		platform    TEXT NOT NULL,
		status      TEXT NOT NULL,
		attempts    INTEGER NOT NULL DEFAULT 0,
		max_retries INTEGER NOT NULL DEFAULT 0,
		last_error  TEXT NOT NULL DEFAULT '',
		artifact    TEXT,
		released_at TEXT,
		queued_at   TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_status_queued ON jobs (status, queued_at);`)
	return err
}

// Close closes the database.
func (r *SQLiteJobRepository) Close() error {
	return r.db.Close()
}

// Enqueue adds a job to the queue.
func (r *SQLiteJobRepository) Enqueue(ctx context.Context, job *domain.Job) error {
	artifact, err := encodeArtifact(job.Artifact)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO jobs (id, url, platform, status, attempts, max_retries, last_error,
		                   artifact, released_at, queued_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(job.ID), job.URL, string(job.Platform), string(job.Status),
		job.Attempts, job.MaxRetries, job.LastError,
		artifact, formatTimePtr(job.ReleasedAt), formatTime(time.Now()),
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert job: %w", err)
	}
	return nil
}

// Dequeue claims the next pending job (FIFO).
func (r *SQLiteJobRepository) Dequeue(ctx context.Context) (*domain.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM jobs WHERE status IN (?, ?) ORDER BY queued_at, rowid LIMIT 1`,
		string(domain.JobStatusQueued), string(domain.JobStatusRetrying),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoJobs
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: select pending: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		string(domain.JobStatusProcessing), formatTime(time.Now()), id,
	); err != nil {
		return nil, fmt.Errorf("sqlite: claim job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit: %w", err)
	}

	return r.Get(ctx, domain.JobID(id))
}

// Update modifies job state.
func (r *SQLiteJobRepository) Update(ctx context.Context, job *domain.Job) error {
	artifact, err := encodeArtifact(job.Artifact)
	if err != nil {
		return err
	}

	// Retrying jobs go to the back of the queue.
	var requeue any
	if job.Status == domain.JobStatusRetrying {
		requeue = formatTime(time.Now())
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, attempts = ?, max_retries = ?, last_error = ?,
		        artifact = ?, released_at = ?, updated_at = ?,
		        queued_at = COALESCE(?, queued_at)
		 WHERE id = ?`,
		string(job.Status), job.Attempts, job.MaxRetries, job.LastError,
		artifact, formatTimePtr(job.ReleasedAt), formatTime(job.UpdatedAt),
		requeue, string(job.ID),
	)
	if err != nil {
		return fmt.Errorf("sqlite: update job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

const jobColumns = `id, url, platform, status, attempts, max_retries, last_error,
	artifact, released_at, created_at, updated_at`

// Get retrieves a job by ID.
func (r *SQLiteJobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, string(id))
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	return job, err
}

// List returns the most recently created jobs, newest first.
func (r *SQLiteJobRepository) List(ctx context.Context, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = -1
	}
	return r.query(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
}

// ListPending returns all pending/retrying jobs.
func (r *SQLiteJobRepository) ListPending(ctx context.Context) ([]*domain.Job, error) {
	return r.query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status IN (?, ?) ORDER BY queued_at, rowid`,
		string(domain.JobStatusQueued), string(domain.JobStatusRetrying),
	)
}

// ListUnreleased returns completed jobs still holding an artifact.
func (r *SQLiteJobRepository) ListUnreleased(ctx context.Context, finishedBefore time.Time) ([]*domain.Job, error) {
	return r.query(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE status = ? AND artifact IS NOT NULL AND released_at IS NULL AND updated_at < ?
		 ORDER BY updated_at`,
		string(domain.JobStatusCompleted), formatTime(finishedBefore),
	)
}

// Stats returns queue statistics.
func (r *SQLiteJobRepository) Stats(ctx context.Context) (*QueueStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: stats: %w", err)
	}
	defer rows.Close()

	stats := &QueueStats{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("sqlite: scan stats: %w", err)
		}
		stats.add(domain.JobStatus(status), n)
	}
	return stats, rows.Err()
}

// Ping reports whether the database is reachable.
func (r *SQLiteJobRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteJobRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Job, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(s rowScanner) (*domain.Job, error) {
	var (
		job                  domain.Job
		id, platform, status string
		artifact, releasedAt sql.NullString
		createdAt, updatedAt string
	)

	if err := s.Scan(&id, &job.URL, &platform, &status, &job.Attempts, &job.MaxRetries,
		&job.LastError, &artifact, &releasedAt, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlite: scan job: %w", err)
	}

	job.ID = domain.JobID(id)
	job.Platform = domain.PlatformTag(platform)
	job.Status = domain.JobStatus(status)
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)

	if artifact.Valid {
		var a domain.MediaArtifact
		if err := json.Unmarshal([]byte(artifact.String), &a); err != nil {
			return nil, fmt.Errorf("sqlite: decode artifact: %w", err)
		}
		job.Artifact = &a
	}
	if releasedAt.Valid {
		t := parseTime(releasedAt.String)
		job.ReleasedAt = &t
	}

	return &job, nil
}

func encodeArtifact(a *domain.MediaArtifact) (any, error) {
	if a == nil {
		return nil, nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode artifact: %w", err)
	}
	return string(data), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
