package diagnostics

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/transcodarr/internal/externalsync"
	"github.com/jmylchreest/transcodarr/internal/models"
)

const maxWebhookBodyBytes = 1 << 20 // 1 MiB, generous for a Sonarr/Radarr notification payload

// handleWebhook dispatches one /webhooks/{kind} push to the matching
// enabled ExternalConnection, per §6's "others return 200 ignored"
// contract: any error that isn't "no matching connection" still returns
// 200 so Sonarr/Radarr don't retry a payload this repo intentionally
// skipped.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.deps.ConnRepo == nil || s.deps.ProfileRepo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "external sync not available"})
		return
	}

	kind := models.ConnectionKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown connection kind"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reading request body"})
		return
	}

	payload, err := externalsync.ParseWebhookPayload(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid webhook payload"})
		return
	}

	outcome, err := s.dispatchWebhook(r.Context(), kind, payload)
	if err != nil {
		s.deps.Logger.Warn("webhook processing failed", "kind", kind, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}

func (s *Server) dispatchWebhook(ctx context.Context, kind models.ConnectionKind, payload externalsync.WebhookPayload) (externalsync.PushOutcome, error) {
	conns, err := s.deps.ConnRepo.GetEnabled(ctx)
	if err != nil {
		return externalsync.PushIgnored, err
	}

	var conn *models.ExternalConnection
	for _, c := range conns {
		if c.Kind == kind {
			conn = c
			break
		}
	}
	if conn == nil {
		return externalsync.PushIgnored, nil
	}

	profile, err := s.deps.ProfileRepo.GetDefault(ctx)
	if err != nil {
		return externalsync.PushIgnored, err
	}
	if profile == nil {
		return externalsync.PushIgnored, nil
	}
	if s.deps.ExternalSync == nil {
		return externalsync.PushIgnored, errors.New("external sync not available")
	}

	return s.deps.ExternalSync.HandlePush(ctx, conn, profile, payload)
}
