package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"github.com/yndnr/filelink-go/internal/core/domain"
	"github.com/yndnr/filelink-go/pkg/token"
)

// QR image bounds in pixels.
const (
	DefaultQRSize = 256
	MinQRSize     = 64
	MaxQRSize     = 1024
)

// CreateLink handles POST /api/v1/links.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	ref := domain.Reference{ChatID: req.ChatID, MessageID: req.MessageID}
	tok, err := h.links.Insert(r.Context(), ref, req.MaxUses)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, CreateLinkResponse{
		Token:    tok,
		DeepLink: domain.DeepLink(h.cfg.BotUsername, tok),
		MaxUses:  req.MaxUses,
	})
}

// ConsumeLink handles POST /api/v1/links/{token}/consume.
func (h *Handler) ConsumeLink(w http.ResponseWriter, r *http.Request) {
	ref, err := h.links.Consume(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, ConsumeLinkResponse{
		ChatID:    ref.ChatID,
		MessageID: ref.MessageID,
	})
}

// LinkQR handles GET /api/v1/links/{token}/qr.png. It renders the deep link
// without touching storage, so fetching the image never spends a use.
func (h *Handler) LinkQR(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")
	if !token.IsWellFormed(tok) {
		WriteDomainError(w, r, domain.ErrLinkNotFound)
		return
	}

	size := DefaultQRSize
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < MinQRSize || n > MaxQRSize {
			WriteDomainError(w, r, domain.ErrInvalidArgument.WithDetails(
				"size must be an integer between "+strconv.Itoa(MinQRSize)+" and "+strconv.Itoa(MaxQRSize)))
			return
		}
		size = n
	}

	png, err := qrcode.Encode(domain.DeepLink(h.cfg.BotUsername, tok), qrcode.Medium, size)
	if err != nil {
		h.handleServiceError(w, r, domain.ErrInternalServer.WithDetails("qr encoding failed").WithCause(err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
