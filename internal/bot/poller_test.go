package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// scriptedUpdater replays batches, then blocks until ctx is done.
type scriptedUpdater struct {
	mu      sync.Mutex
	batches []func() ([]Update, error)
	offsets []int64
}

func (s *scriptedUpdater) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	s.mu.Lock()
	s.offsets = append(s.offsets, offset)
	if len(s.batches) > 0 {
		next := s.batches[0]
		s.batches = s.batches[1:]
		s.mu.Unlock()
		return next()
	}
	s.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

type recordingHandler struct {
	mu   sync.Mutex
	ids  []int64
	done chan struct{}
	want int
}

func (h *recordingHandler) Handle(_ context.Context, u *Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids = append(h.ids, u.UpdateID)
	if len(h.ids) == h.want {
		close(h.done)
	}
}

func TestPoller_Run(t *testing.T) {
	api := &scriptedUpdater{batches: []func() ([]Update, error){
		func() ([]Update, error) { return []Update{{UpdateID: 5}, {UpdateID: 6}}, nil },
		func() ([]Update, error) { return nil, errors.New("bad gateway") },
		func() ([]Update, error) { return nil, &APIError{Code: 429, RetryAfter: time.Millisecond} },
		func() ([]Update, error) { return []Update{{UpdateID: 7}}, nil },
	}}
	h := &recordingHandler{done: make(chan struct{}), want: 3}

	p := NewPoller(api, h, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.minBackoff = time.Millisecond
	p.maxBackoff = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		t.Fatal("updates not handled")
	}
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	// The call after the last batch may or may not start before cancel.
	want := []int64{0, 7, 7, 7}
	if len(api.offsets) < len(want) {
		t.Fatalf("offsets = %v, want prefix %v", api.offsets, want)
	}
	for i := range want {
		if api.offsets[i] != want[i] {
			t.Fatalf("offsets = %v, want prefix %v", api.offsets, want)
		}
	}
	if len(api.offsets) > len(want) && api.offsets[len(want)] != 8 {
		t.Errorf("offset after last batch = %d, want 8", api.offsets[len(want)])
	}
}

func TestPoller_StopsDuringBackoff(t *testing.T) {
	api := &scriptedUpdater{batches: []func() ([]Update, error){
		func() ([]Update, error) { return nil, errors.New("down") },
	}}
	p := NewPoller(api, &recordingHandler{done: make(chan struct{})}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.minBackoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := p.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() = %v, want deadline exceeded", err)
	}
}
