package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// DefaultTimeout bounds the time all hooks together may take.
const DefaultTimeout = 30 * time.Second

type hook struct {
	name string
	fn   func(context.Context) error
}

// Handler runs registered hooks when the process is asked to stop.
type Handler struct {
	timeout time.Duration
	logger  *slog.Logger
	signals []os.Signal

	mu       sync.Mutex
	hooks    []hook
	trigger  chan struct{}
	trigOnce sync.Once
	done     chan struct{}
}

// NewHandler creates a handler that reacts to SIGINT and SIGTERM.
func NewHandler(timeout time.Duration, logger *slog.Logger) *Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		timeout: timeout,
		logger:  logger,
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		trigger: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// OnShutdown registers a named hook. Hooks run in reverse order of
// registration, so components shut down before what they depend on.
func (h *Handler) OnShutdown(name string, fn func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook{name: name, fn: fn})
}

// Trigger starts shutdown without a signal, e.g. when a server fails.
func (h *Handler) Trigger() {
	h.trigOnce.Do(func() { close(h.trigger) })
}

// Wait blocks until a signal, Trigger or ctx cancellation, then runs every
// hook. The returned error joins all hook failures.
func (h *Handler) Wait(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, h.signals...)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		h.logger.Info("shutdown signal received", "signal", sig.String())
	case <-h.trigger:
		h.logger.Info("shutdown triggered")
	case <-ctx.Done():
		h.logger.Info("shutdown context cancelled")
	}

	return h.run()
}

func (h *Handler) run() error {
	defer close(h.done)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	hooks := append([]hook(nil), h.hooks...)
	h.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		hk := hooks[i]
		start := time.Now()
		if err := hk.fn(ctx); err != nil {
			h.logger.Error("shutdown hook failed", "hook", hk.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", hk.name, err))
			continue
		}
		h.logger.Debug("shutdown hook completed", "hook", hk.name, "elapsed", time.Since(start))
	}
	return errors.Join(errs...)
}

// Done returns a channel that closes when all hooks have run.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
