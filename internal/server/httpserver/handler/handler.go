package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/filelink-go/internal/core/domain"
	"github.com/yndnr/filelink-go/internal/telemetry/logger"
)

const maxBodyBytes = 64 << 10

// LinkStore is the subset of service.LinkService the handlers need.
type LinkStore interface {
	Insert(ctx context.Context, ref domain.Reference, maxUses int) (string, error)
	Consume(ctx context.Context, token string) (domain.Reference, error)
	Sweep(ctx context.Context, ttl time.Duration) (int, error)
	TTL() time.Duration
}

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config configures a Handler.
type Config struct {
	// BotUsername is used to build deep links.
	BotUsername string

	// Version is reported by /health.
	Version string

	// ReadyTimeout bounds the backend ping in /ready.
	ReadyTimeout time.Duration
}

// Handler serves the FileLink HTTP API.
type Handler struct {
	links  LinkStore
	pinger Pinger
	cfg    Config
	logger *slog.Logger
}

// New creates a new Handler. pinger may be nil, in which case /ready only
// reports that the process is up.
func New(links LinkStore, pinger Pinger, cfg Config, log *slog.Logger) *Handler {
	if cfg.BotUsername == "" {
		cfg.BotUsername = domain.DefaultBotUsername
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 2 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		links:  links,
		pinger: pinger,
		cfg:    cfg,
		logger: log,
	}
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := logger.RequestIDFromContext(r.Context())
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// WriteError writes an error response with standard envelope format.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := logger.RequestIDFromContext(r.Context())
	response := NewErrorResponse(requestID, code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// WriteDomainError writes err using its code and the status derived from it.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err *domain.DomainError) {
	var details any
	if err.Details != "" {
		details = err.Details
	}
	WriteError(w, r, StatusForCode(err.Code), err.Code, err.Message, details)
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		if StatusForCode(de.Code) >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "request failed", "code", de.Code, "error", err)
		}
		WriteDomainError(w, r, de)
		return
	}

	h.logger.ErrorContext(r.Context(), "internal error", "error", err)
	WriteDomainError(w, r, domain.ErrInternalServer)
}

// StatusForCode maps an FL-<AREA>-<NNNN> code to an HTTP status. The first
// three digits of NNNN are the status; argument errors are always 400.
func StatusForCode(code string) int {
	if strings.HasPrefix(code, "FL-ARG-") {
		return http.StatusBadRequest
	}
	i := strings.LastIndex(code, "-")
	if i < 0 || len(code)-i != 5 {
		return http.StatusInternalServerError
	}
	status, err := strconv.Atoi(code[i+1 : i+4])
	if err != nil || status < 400 || status > 599 {
		return http.StatusInternalServerError
	}
	return status
}

// decodeJSON decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return domain.ErrBadRequest.WithDetails("invalid request body").WithCause(err)
	}
	return nil
}
