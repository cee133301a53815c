package httpserver

import (
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"

	"github.com/yndnr/filelink-go/internal/server/httpserver/handler"
	"github.com/yndnr/filelink-go/internal/telemetry/metric"
	"github.com/yndnr/filelink-go/pkg/token"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Links serves the link store operations.
	Links handler.LinkStore

	// Pinger backs /ready. Optional.
	Pinger handler.Pinger

	// Metrics records request metrics and serves /metrics. Optional.
	Metrics *metric.Registry

	// Logger for request logging.
	Logger *slog.Logger

	// AdminToken guards /admin/v1. Empty disables every admin route.
	AdminToken string

	// BotUsername is used to build deep links.
	BotUsername string

	// Version is reported by /health.
	Version string

	// RateLimitRPS and RateLimitBurst configure the per-IP limiter on
	// /api/v1. A non-positive RPS disables it.
	RateLimitRPS   float64
	RateLimitBurst int

	// TrustedProxies lists the peers whose X-Forwarded-For and X-Real-IP
	// headers are believed. Empty means the direct peer is always the client.
	TrustedProxies []netip.Prefix

	// EnableAudit enables audit logging for all requests.
	EnableAudit bool
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	h := handler.New(cfg.Links, cfg.Pinger, handler.Config{
		BotUsername: cfg.BotUsername,
		Version:     cfg.Version,
	}, log)

	r := chi.NewRouter()
	r.Use(Recover(log), RequestID(), ClientIP(cfg.TrustedProxies), Metrics(cfg.Metrics))
	if cfg.EnableAudit {
		r.Use(Audit(log))
	}
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		handler.WriteError(w, req, http.StatusNotFound, "FL-SYS-4040", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		handler.WriteError(w, req, http.StatusMethodNotAllowed, "FL-SYS-4050", "method not allowed", nil)
	})

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.Route("/api/v1/links", func(r chi.Router) {
		if cfg.RateLimitRPS > 0 {
			r.Use(RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		}
		r.Post("/", h.CreateLink)
		r.Post("/{token}/consume", h.ConsumeLink)
		r.Get("/{token}/qr.png", h.LinkQR)
	})

	var adminHash string
	if cfg.AdminToken != "" {
		adminHash = token.Hash(cfg.AdminToken)
	} else {
		log.Warn("admin token not configured, admin API disabled")
	}
	r.Route("/admin/v1", func(r chi.Router) {
		r.Use(AdminAuth(adminHash, log))
		r.Post("/sweep", h.Sweep)
	})

	return r
}
