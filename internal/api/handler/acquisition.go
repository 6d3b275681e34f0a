package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/reelgrabba/internal/domain"
	"github.com/iconidentify/reelgrabba/internal/repository"
	"github.com/iconidentify/reelgrabba/internal/service"
)

// AcquisitionService is the part of the service layer the HTTP API drives.
type AcquisitionService interface {
	Submit(ctx context.Context, url string) (*service.SubmitResponse, error)
	SubmitMessage(ctx context.Context, content string) (*service.SubmitResponse, error)
	AcquireNow(ctx context.Context, url string) (domain.Outcome, error)
	Get(ctx context.Context, jobID domain.JobID) (*domain.Job, error)
	List(ctx context.Context, limit int) ([]*domain.Job, error)
	Stats(ctx context.Context) (*repository.QueueStats, error)
	Artifact(ctx context.Context, jobID domain.JobID) (domain.MediaArtifact, error)
	Release(ctx context.Context, jobID domain.JobID) error
}

// Name under which every artifact is served.
const downloadFilename = "video.mp4"

// AcquisitionHandler handles acquisition endpoints.
type AcquisitionHandler struct {
	acqSvc AcquisitionService
	logger *slog.Logger
}

// NewAcquisitionHandler creates a new acquisition handler.
func NewAcquisitionHandler(acqSvc AcquisitionService, logger *slog.Logger) *AcquisitionHandler {
	return &AcquisitionHandler{
		acqSvc: acqSvc,
		logger: logger,
	}
}

// SubmitRequest is the JSON body for queueing an acquisition. Exactly one
// of URL or Message is used; URL wins when both are set.
type SubmitRequest struct {
	URL     string `json:"url,omitempty"`
	Message string `json:"message,omitempty"`
}

// SubmitResponse is returned after queueing an acquisition.
type SubmitResponse struct {
	JobID    string `json:"job_id"`
	URL      string `json:"url"`
	Platform string `json:"platform"`
	Status   string `json:"status"`
}

// JobResponse describes one acquisition job.
type JobResponse struct {
	JobID      string    `json:"job_id"`
	URL        string    `json:"url"`
	Platform   string    `json:"platform"`
	Status     string    `json:"status"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error,omitempty"`
	Title      string    `json:"title,omitempty"`
	Uploader   string    `json:"uploader,omitempty"`
	Duration   string    `json:"duration,omitempty"`
	Quality    string    `json:"quality,omitempty"`
	SizeBytes  int64     `json:"size_bytes,omitempty"`
	Compressed bool      `json:"compressed,omitempty"`
	Available  bool      `json:"available"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ListResponse is the response for listing jobs.
type ListResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Limit int           `json:"limit"`
}

// AcquireRequest is the JSON body for a synchronous acquisition.
type AcquireRequest struct {
	URL string `json:"url"`
}

// Submit handles POST /api/v1/acquisitions
func (h *AcquisitionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		result *service.SubmitResponse
		err    error
	)
	switch {
	case strings.TrimSpace(req.URL) != "":
		result, err = h.acqSvc.Submit(r.Context(), req.URL)
	case strings.TrimSpace(req.Message) != "":
		result, err = h.acqSvc.SubmitMessage(r.Context(), req.Message)
	default:
		h.writeError(w, http.StatusBadRequest, "url or message is required")
		return
	}
	if err != nil {
		h.writeServiceError(w, "submit", err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, SubmitResponse{
		JobID:    result.JobID.String(),
		URL:      result.URL,
		Platform: result.Platform.String(),
		Status:   string(result.Status),
	})
}

// List handles GET /api/v1/acquisitions
func (h *AcquisitionHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	jobs, err := h.acqSvc.List(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, "list", err)
		return
	}

	resp := ListResponse{
		Jobs:  make([]JobResponse, 0, len(jobs)),
		Limit: limit,
	}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, newJobResponse(job))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/acquisitions/{jobID}
func (h *AcquisitionHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		h.writeError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job, err := h.acqSvc.Get(r.Context(), domain.JobID(jobID))
	if err != nil {
		h.writeServiceError(w, "get", err)
		return
	}

	h.writeJSON(w, http.StatusOK, newJobResponse(job))
}

// File handles GET /api/v1/acquisitions/{jobID}/file. The artifact is
// released once it has been streamed, so a file can be fetched only once.
func (h *AcquisitionHandler) File(w http.ResponseWriter, r *http.Request) {
	jobID := domain.JobID(chi.URLParam(r, "jobID"))
	if jobID == "" {
		h.writeError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	artifact, err := h.acqSvc.Artifact(r.Context(), jobID)
	if err != nil {
		h.writeServiceError(w, "artifact", err)
		return
	}

	sent := h.streamArtifact(w, artifact, nil, "job_id", jobID)

	// The client may have gone away, so release on a detached context.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 10*time.Second)
	defer cancel()
	if err := h.acqSvc.Release(ctx, jobID); err != nil {
		h.logger.Error("release artifact failed", "job_id", jobID, "error", err)
	}

	h.logger.Info("artifact delivered", "job_id", jobID, "bytes", sent)
}

// Acquire handles POST /api/v1/acquire. It runs the pipeline while the
// client waits and streams the resulting file with its metadata in
// X-Media-* headers. A pipeline failure is a 422 carrying the reason.
func (h *AcquisitionHandler) Acquire(w http.ResponseWriter, r *http.Request) {
	var req AcquireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		h.writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	outcome, err := h.acqSvc.AcquireNow(r.Context(), req.URL)
	if err != nil {
		h.writeServiceError(w, "acquire", err)
		return
	}

	artifact, ok := outcome.Artifact()
	if !ok {
		h.writeError(w, http.StatusUnprocessableEntity, outcome.Reason())
		return
	}
	defer func() {
		if err := os.Remove(artifact.LocalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.logger.Warn("failed to remove delivered artifact", "path", artifact.LocalPath, "error", err)
		}
	}()

	h.streamArtifact(w, artifact, setMediaHeaders, "request_url", req.URL)
}

// streamArtifact writes the artifact file as the response body and returns
// the number of bytes sent. extraHeaders, when set, runs only once the file
// is open, so an error response never carries media headers.
func (h *AcquisitionHandler) streamArtifact(
	w http.ResponseWriter,
	artifact domain.MediaArtifact,
	extraHeaders func(http.Header, domain.MediaArtifact),
	logKV ...any,
) int64 {
	f, err := os.Open(artifact.LocalPath)
	if err != nil {
		h.logger.Error("open artifact failed", append(logKV, "path", artifact.LocalPath, "error", err)...)
		h.writeError(w, http.StatusGone, domain.ErrArtifactGone.Error())
		return 0
	}
	defer f.Close()

	if extraHeaders != nil {
		extraHeaders(w.Header(), artifact)
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": downloadFilename}))
	if info, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, f)
	if err != nil {
		h.logger.Warn("stream artifact interrupted", append(logKV, "bytes", n, "error", err)...)
	}
	return n
}

// setMediaHeaders copies the known metadata fields into X-Media-* headers.
// Missing fields are left out. Text values are RFC 2047 encoded when they
// are not plain ASCII.
func setMediaHeaders(h http.Header, artifact domain.MediaArtifact) {
	meta := artifact.Metadata
	h.Set("X-Media-Platform", artifact.Platform.String())
	if meta.Title != nil && *meta.Title != "" {
		h.Set("X-Media-Title", headerText(*meta.Title))
	}
	if meta.Uploader != nil && *meta.Uploader != "" {
		h.Set("X-Media-Uploader", headerText(*meta.Uploader))
	}
	if meta.DurationSeconds != nil && *meta.DurationSeconds > 0 {
		h.Set("X-Media-Duration", strconv.Itoa(int(*meta.DurationSeconds)))
	}
	if meta.HeightPixels != nil && *meta.HeightPixels > 0 {
		h.Set("X-Media-Height", strconv.Itoa(*meta.HeightPixels))
	}
	if artifact.Compressed {
		h.Set("X-Media-Compressed", "true")
	}
}

func headerText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return mime.QEncoding.Encode("utf-8", s)
}

func newJobResponse(job *domain.Job) JobResponse {
	resp := JobResponse{
		JobID:     job.ID.String(),
		URL:       job.URL,
		Platform:  job.Platform.String(),
		Status:    string(job.Status),
		Attempts:  job.Attempts,
		Error:     job.LastError,
		Available: job.HasArtifact(),
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if job.Artifact != nil {
		meta := job.Artifact.Metadata
		resp.Title = meta.TitleOr("")
		resp.Uploader = meta.UploaderOr("")
		resp.Duration = meta.DurationLabel()
		resp.Quality = meta.QualityLabel()
		resp.SizeBytes = job.Artifact.SizeBytes
		resp.Compressed = job.Artifact.Compressed
	}
	return resp
}

// writeServiceError maps domain errors to HTTP status codes.
func (h *AcquisitionHandler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrUnsupportedURL):
		h.writeError(w, http.StatusBadRequest, "unsupported video URL")
	case errors.Is(err, domain.ErrNoLink):
		h.writeError(w, http.StatusBadRequest, "no supported video link in message")
	case errors.Is(err, domain.ErrJobNotFound):
		h.writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, domain.ErrJobNotFinished):
		h.writeError(w, http.StatusConflict, "job has not finished")
	case errors.Is(err, domain.ErrArtifactGone):
		h.writeError(w, http.StatusGone, "artifact no longer available")
	default:
		h.logger.Error(op+" failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

func (h *AcquisitionHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *AcquisitionHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
