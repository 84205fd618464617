// Package diagnostics serves the narrow, read-only HTTP surface this repo
// exposes to operators: a liveness probe, a queue snapshot, a compressed
// history export, and the host's detected ffmpeg capabilities, plus the
// webhook ingress External Sync receives push notifications on. There is
// no mutation endpoint and no authentication surface, matching the
// teacher's health/debug handler conventions in internal/http/handlers.
package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jmylchreest/transcodarr/internal/externalsync"
	"github.com/jmylchreest/transcodarr/internal/ffmpeg"
	"github.com/jmylchreest/transcodarr/internal/models"
	"github.com/jmylchreest/transcodarr/internal/repository"
)

// Dependencies are the collaborators the diagnostics HTTP server reads
// from; every field is optional, and a route whose dependency is missing
// reports 503, so a partially-started object graph can still expose liveness.
type Dependencies struct {
	QueueRepo    repository.QueueItemRepository
	HistoryRepo  repository.HistoryRepository
	ConnRepo     repository.ExternalConnectionRepository
	ProfileRepo  repository.ProfileRepository
	ExternalSync *externalsync.Service
	Logger       *slog.Logger

	// FFmpegBinary is the ffmpeg executable probed by /debug/capabilities.
	// Empty skips probing and the route reports unavailable.
	FFmpegBinary string

	// Version is reported by /healthz.
	Version string
}

// Server hosts the diagnostics HTTP surface on one chi router.
type Server struct {
	deps     Dependencies
	router   chi.Router
	srv      *http.Server
	detector *ffmpeg.BinaryDetector
}

// New builds a Server bound to addr (host:port), ready to ListenAndServe.
func New(addr string, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	s := &Server{deps: deps, router: r, detector: ffmpeg.NewBinaryDetector().WithCacheTTL(5 * time.Minute)}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/debug/queue", s.handleDebugQueue)
	r.Get("/debug/export", s.handleDebugExport)
	r.Get("/debug/capabilities", s.handleDebugCapabilities)
	r.Post("/webhooks/{kind}", s.handleWebhook)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": s.deps.Version,
		"time":    time.Now().UTC(),
	}
	writeJSON(w, http.StatusOK, body)
}

// queueSnapshot is the read-only shape /debug/queue reports: per-status
// counts plus the currently active items, never the full queue table.
type queueSnapshot struct {
	CountsByStatus map[models.QueueItemStatus]int64 `json:"counts_by_status"`
	Active         []*models.QueueItem              `json:"active"`
}

func (s *Server) handleDebugQueue(w http.ResponseWriter, r *http.Request) {
	if s.deps.QueueRepo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "queue repository not available"})
		return
	}

	ctx := r.Context()
	snapshot := queueSnapshot{CountsByStatus: map[models.QueueItemStatus]int64{}}

	for _, status := range []models.QueueItemStatus{
		models.StatusPending, models.StatusProcessing, models.StatusPaused,
		models.StatusCompleted, models.StatusFailed, models.StatusPermissionError,
	} {
		count, err := s.deps.QueueRepo.CountByStatus(ctx, status)
		if err != nil {
			s.deps.Logger.Warn("debug/queue count failed", "status", status, "error", err)
			continue
		}
		snapshot.CountsByStatus[status] = count
	}

	active, err := s.deps.QueueRepo.GetByStatus(ctx, models.StatusProcessing)
	if err != nil {
		s.deps.Logger.Warn("debug/queue active lookup failed", "error", err)
	} else {
		snapshot.Active = active
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// handleDebugCapabilities reports the ffmpeg build's detected codecs,
// encoders, decoders, formats, and hardware accelerators. Results are
// cached by the underlying detector, so repeated polling doesn't shell
// out to ffmpeg on every request.
func (s *Server) handleDebugCapabilities(w http.ResponseWriter, r *http.Request) {
	if s.deps.FFmpegBinary == "" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "ffmpeg capability probing not configured"})
		return
	}

	info, err := s.detector.Detect(r.Context())
	if err != nil {
		s.deps.Logger.Warn("debug/capabilities probe failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, info)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
