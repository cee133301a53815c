package httpserver

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/filelink-go/internal/core/domain"
	"github.com/yndnr/filelink-go/internal/server/httpserver/handler"
	"github.com/yndnr/filelink-go/internal/telemetry/logger"
	"github.com/yndnr/filelink-go/internal/telemetry/metric"
	"github.com/yndnr/filelink-go/pkg/token"
)

// Middleware wraps an http.Handler with additional functionality.
type Middleware = func(http.Handler) http.Handler

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-ID"

// RequestID adds a unique request ID to each request. A well-formed ID sent
// by the client is kept.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(HeaderRequestID)
			if requestID == "" || len(requestID) > 64 || !token.IsWellFormed(requestID) {
				requestID = "req-" + ulid.Make().String()
			}

			w.Header().Set(HeaderRequestID, requestID)
			ctx := logger.WithRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestIDFromContext retrieves the request ID from context.
func GetRequestIDFromContext(r *http.Request) string {
	return logger.RequestIDFromContext(r.Context())
}

// Metrics records every request under its chi route pattern, so path
// parameters such as tokens never become label values.
func Metrics(reg *metric.Registry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			reg.ObserveHTTP(r.Method, routePattern(r), wrapped.statusCode, time.Since(start))
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// ipLimiter hands out one token bucket per client IP. Buckets idle for
// longer than ttl are dropped on the next cleanup.
type ipLimiter struct {
	mu          sync.Mutex
	visitors    map[string]*visitor
	limit       rate.Limit
	burst       int
	ttl         time.Duration
	lastCleanup time.Time
	now         func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(rps float64, burst int) *ipLimiter {
	if burst < 1 {
		burst = 1
	}
	return &ipLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(rps),
		burst:    burst,
		ttl:      3 * time.Minute,
		now:      time.Now,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastCleanup) > time.Minute {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.ttl {
				delete(l.visitors, k)
			}
		}
		l.lastCleanup = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *ipLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// RateLimit applies per-IP token bucket rate limiting.
func RateLimit(rps float64, burst int) Middleware {
	return rateLimit(newIPLimiter(rps, burst))
}

func rateLimit(l *ipLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(getClientIP(r)) {
				w.Header().Set("Retry-After", "1")
				handler.WriteDomainError(w, r, domain.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Audit logs request/response for audit trail.
func Audit(log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			attrs := []any{
				"request_id", GetRequestIDFromContext(r),
				"method", r.Method,
				"route", routePattern(r),
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"client_ip", getClientIP(r),
			}

			switch {
			case wrapped.statusCode >= 500:
				log.Error("request completed with error", attrs...)
			case wrapped.statusCode >= 400:
				log.Warn("request completed with client error", attrs...)
			default:
				log.Info("request completed", attrs...)
			}
		})
	}
}

// Recover recovers from panics and returns 500 error.
func Recover(log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("panic recovered",
						"request_id", GetRequestIDFromContext(r),
						"error", rec,
						"path", r.URL.Path,
					)
					handler.WriteDomainError(w, r, domain.ErrInternalServer)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// AdminAuth guards the admin API with a shared token compared against its
// SHA-256 hash. The token is read from "Authorization: Bearer <token>" or
// the X-Admin-Token header. An empty hash rejects every request.
func AdminAuth(tokenHash string, log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := extractAdminToken(r)
			if presented == "" {
				handler.WriteDomainError(w, r, domain.ErrUnauthorized.WithDetails("admin token not provided"))
				return
			}
			if !token.Verify(presented, tokenHash) {
				log.Warn("admin authentication failed",
					"request_id", GetRequestIDFromContext(r),
					"client_ip", getClientIP(r),
				)
				handler.WriteDomainError(w, r, domain.ErrUnauthorized.WithDetails("invalid admin token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractAdminToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.Header.Get("X-Admin-Token")
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
