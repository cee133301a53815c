// Package httpserver provides the HTTP/HTTPS server for FileLink.
//
// The router is built on go-chi/chi. Public link endpoints live under
// /api/v1, the manual sweep under /admin/v1 (guarded by the admin token),
// and /health, /ready and /metrics are unauthenticated.
//
// Middleware order, outermost first:
//
//	Recover -> RequestID -> Metrics -> Audit -> RateLimit -> [AdminAuth] -> handler
package httpserver
