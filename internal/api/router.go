package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/reelgrabba/internal/api/handler"
	mw "github.com/iconidentify/reelgrabba/internal/api/middleware"
)

// RouterConfig holds the settings the router needs beyond its handlers.
type RouterConfig struct {
	APIKey    string
	RateLimit float64
	RateBurst int
	// RequestTimeout bounds every request. Synchronous acquisitions run the
	// whole pipeline, so it must exceed the acquisition timeout.
	RequestTimeout time.Duration
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	acqHandler *handler.AcquisitionHandler,
	healthHandler *handler.HealthHandler,
	cfg RouterConfig,
	logger *slog.Logger,
) *chi.Mux {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Minute
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath) // Normalize paths (e.g., //ready -> /ready)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.Recovery(logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(mw.CORS)

	// Health endpoints (no auth)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	// API v1 (authenticated, rate limited)
	limiter := mw.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(cfg.APIKey))
		r.Use(limiter.Middleware)

		r.Get("/stats", healthHandler.Stats)

		r.Post("/acquire", acqHandler.Acquire)

		r.Post("/acquisitions", acqHandler.Submit)
		r.Get("/acquisitions", acqHandler.List)
		r.Get("/acquisitions/{jobID}", acqHandler.Get)
		r.Get("/acquisitions/{jobID}/file", acqHandler.File)
	})

	return r
}
