package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/filelink-go/internal/core/domain"
)

// Sweep handles POST /admin/v1/sweep.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	var req SweepRequest
	if err := decodeJSON(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if req.TTLSeconds < 0 {
		WriteDomainError(w, r, domain.ErrInvalidArgument.WithDetails("ttl_seconds must not be negative"))
		return
	}

	ttl := h.links.TTL()
	if req.TTLSeconds > 0 {
		d, err := domain.TTLFromSeconds(req.TTLSeconds)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		ttl = d
	}

	deleted, err := h.links.Sweep(r.Context(), ttl)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("manual sweep completed", "deleted", deleted, "ttl", ttl)
	h.writeJSON(w, r, http.StatusOK, SweepResponse{
		Deleted:    deleted,
		TTLSeconds: int64(ttl / time.Second),
		SweptAt:    time.Now().UTC().Format(time.RFC3339),
	})
}
