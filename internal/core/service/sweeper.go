package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSweepInterval matches the hourly cleanup of the original bot.
const DefaultSweepInterval = time.Hour

// defaultSweepTimeout bounds a single background pass.
const defaultSweepTimeout = 5 * time.Minute

// Sweeper periodically removes expired links.
//
// A failed pass is logged and retried on the next tick; it never stops the
// loop.
type Sweeper struct {
	svc      *LinkService
	interval time.Duration
	logger   *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewSweeper creates a sweeper for svc. It does nothing until Start.
func NewSweeper(svc *LinkService, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		svc:      svc,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs one pass immediately and then one per interval, in the
// background.
func (s *Sweeper) Start() {
	s.startOnce.Do(func() {
		go s.loop()
	})
}

// Stop stops the loop and waits for an in-flight pass to finish.
// Stop on a sweeper that was never started returns immediately.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	started := true
	s.startOnce.Do(func() {
		started = false
		close(s.doneCh)
	})
	if started {
		<-s.doneCh
	}
}

// RunOnce performs a single pass with the configured TTL.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	n, err := s.svc.SweepExpired(ctx)
	if err != nil {
		s.logger.Warn("sweep failed, will retry", "error", err, "retry_in", s.interval)
		return 0, err
	}
	if n > 0 {
		s.logger.Info("cleaned up expired links", "deleted", n)
	}
	return n, nil
}

func (s *Sweeper) loop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.pass()
	for {
		select {
		case <-ticker.C:
			s.pass()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Sweeper) pass() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultSweepTimeout)
	defer cancel()

	// Abort the pass on Stop.
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	_, _ = s.RunOnce(ctx)
}
