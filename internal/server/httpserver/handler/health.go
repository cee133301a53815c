package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/yndnr/filelink-go/internal/core/domain"
)

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: h.cfg.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready. It fails with 503 while the backend is
// unreachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.cfg.ReadyTimeout)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", "error", err)
			WriteDomainError(w, r, domain.ErrServiceUnavailable.WithDetails("storage backend unreachable"))
			return
		}
	}
	h.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status: "ready",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
