package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Updater fetches updates. *Client implements it.
type Updater interface {
	GetUpdates(ctx context.Context, offset int64) ([]Update, error)
}

// Handler processes one update. *Dispatcher implements it.
type Handler interface {
	Handle(ctx context.Context, u *Update)
}

const (
	minBackoff = time.Second
	maxBackoff = time.Minute
)

// Poller runs the getUpdates loop.
type Poller struct {
	api     Updater
	handler Handler
	logger  *slog.Logger

	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewPoller creates a Poller.
func NewPoller(api Updater, handler Handler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		api:        api,
		handler:    handler,
		logger:     logger,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
	}
}

// Run polls until ctx is cancelled and returns ctx.Err(). Transient API
// failures are retried with exponential backoff.
func (p *Poller) Run(ctx context.Context) error {
	var offset int64
	backoff := p.minBackoff

	p.logger.Info("telegram poller started")
	defer p.logger.Info("telegram poller stopped")

	for {
		updates, err := p.api.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := backoff
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
				wait = apiErr.RetryAfter
			}
			p.logger.Warn("getUpdates failed", "error", err, "retry_in", wait)
			if !sleep(ctx, wait) {
				return ctx.Err()
			}
			backoff = min(backoff*2, p.maxBackoff)
			continue
		}
		backoff = p.minBackoff

		for i := range updates {
			p.handler.Handle(ctx, &updates[i])
			offset = updates[i].UpdateID + 1
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
