package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/reelgrabba/internal/domain"
	"github.com/iconidentify/reelgrabba/internal/repository"
	"github.com/iconidentify/reelgrabba/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

// fakeAcquirer writes a small mp4 per request, or fails with reason.
type fakeAcquirer struct {
	mu     sync.Mutex
	dir    string
	reason string
	meta   domain.MediaMetadata
	// noFile reports success for a path that was never written.
	noFile bool
	calls  int
}

func (f *fakeAcquirer) Acquire(ctx context.Context, req domain.AcquisitionRequest) domain.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.reason != "" {
		return domain.Failure(f.reason)
	}

	path := filepath.Join(f.dir, "clip.mp4")
	if f.noFile {
		return domain.Success(domain.MediaArtifact{LocalPath: path, Metadata: f.meta, Platform: domain.PlatformTikTok})
	}
	if err := os.WriteFile(path, []byte("mp4-bytes"), 0644); err != nil {
		return domain.Failure(err.Error())
	}
	return domain.Success(domain.MediaArtifact{
		LocalPath:  path,
		Metadata:   f.meta,
		SizeBytes:  9,
		Platform:   domain.PlatformTikTok,
		Compressed: true,
	})
}

type testEnv struct {
	handler *AcquisitionHandler
	svc     *service.AcquisitionService
	repo    *repository.InMemoryJobRepository
	acq     *fakeAcquirer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	acq := &fakeAcquirer{dir: t.TempDir()}
	repo := repository.NewInMemoryJobRepository()
	svc := service.NewAcquisitionService(acq, repo, service.AcquisitionConfig{}, testLogger())
	return &testEnv{
		handler: NewAcquisitionHandler(svc, testLogger()),
		svc:     svc,
		repo:    repo,
		acq:     acq,
	}
}

// completedJob stores a finished job whose artifact is a real file.
func (e *testEnv) completedJob(t *testing.T, id string) (*domain.Job, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), id+".mp4")
	if err := os.WriteFile(path, []byte("artifact"), 0644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	job := domain.NewJob(domain.JobID(id), "https://www.tiktok.com/@u/video/1", domain.PlatformTikTok, 0)
	if err := e.repo.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job.MarkCompleted(domain.MediaArtifact{
		LocalPath: path,
		SizeBytes: 8,
		Platform:  domain.PlatformTikTok,
		Metadata:  domain.MediaMetadata{Title: ptr("clip"), HeightPixels: ptr(480)},
	})
	if err := e.repo.Update(context.Background(), job); err != nil {
		t.Fatalf("update: %v", err)
	}
	return job, path
}

// withURLParam attaches a chi route parameter to the request.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// mockJobRepository lets health tests control Ping and Stats.
type mockJobRepository struct {
	repository.JobRepository
	pingErr  error
	stats    *repository.QueueStats
	statsErr error
}

func (m *mockJobRepository) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *mockJobRepository) Stats(ctx context.Context) (*repository.QueueStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	if m.stats == nil {
		return &repository.QueueStats{}, nil
	}
	return m.stats, nil
}

var errStoreDown = errors.New("store down")

type toolStub bool

func (s toolStub) IsAvailable() bool { return bool(s) }
