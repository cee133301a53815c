// Package shutdown coordinates graceful process shutdown.
//
// Components register named hooks; on SIGINT, SIGTERM or an explicit
// Trigger the hooks run in reverse registration order under one shared
// deadline.
//
// Usage:
//
//	h := shutdown.NewHandler(30*time.Second, logger)
//	h.OnShutdown("storage", func(context.Context) error { return store.Close() })
//	h.OnShutdown("http", srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
