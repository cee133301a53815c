package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
)

// syncBuffer is a bytes.Buffer safe for the sweeper goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func bufferLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func TestSweeper_RunOnce(t *testing.T) {
	t.Run("logs only when something was deleted", func(t *testing.T) {
		svc, repo := newTestService(t, LinkConfig{})
		log, buf := bufferLogger()
		sw := NewSweeper(svc, time.Hour, log)

		gomock.InOrder(
			repo.EXPECT().DeleteExpired(gomock.Any(), gomock.Any()).Return(0, nil),
			repo.EXPECT().DeleteExpired(gomock.Any(), gomock.Any()).Return(5, nil),
		)

		if n, err := sw.RunOnce(context.Background()); n != 0 || err != nil {
			t.Fatalf("RunOnce() = (%d, %v)", n, err)
		}
		if strings.Contains(buf.String(), "cleaned up expired links") {
			t.Error("empty pass should not log")
		}

		if n, err := sw.RunOnce(context.Background()); n != 5 || err != nil {
			t.Fatalf("RunOnce() = (%d, %v)", n, err)
		}
		out := buf.String()
		if !strings.Contains(out, "cleaned up expired links") || !strings.Contains(out, "deleted=5") {
			t.Errorf("missing cleanup log, got %q", out)
		}
	})

	t.Run("failure is logged at warn", func(t *testing.T) {
		svc, repo := newTestService(t, LinkConfig{})
		log, buf := bufferLogger()
		sw := NewSweeper(svc, time.Hour, log)

		repo.EXPECT().DeleteExpired(gomock.Any(), gomock.Any()).Return(0, errors.New("db gone"))

		if _, err := sw.RunOnce(context.Background()); err == nil {
			t.Fatal("RunOnce() should return the error")
		}
		if !strings.Contains(buf.String(), "level=WARN") {
			t.Errorf("expected a warn record, got %q", buf.String())
		}
	})
}

func TestSweeper_StartRunsImmediatelyAndSurvivesFailures(t *testing.T) {
	svc, repo := newTestService(t, LinkConfig{})
	sw := NewSweeper(svc, 10*time.Millisecond, quietLogger())

	calls := make(chan struct{}, 16)
	repo.EXPECT().DeleteExpired(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, time.Time) (int, error) {
			select {
			case calls <- struct{}{}:
			default:
			}
			return 0, errors.New("transient")
		}).
		MinTimes(3)

	sw.Start()
	sw.Start() // second Start is a no-op

	for i := 0; i < 3; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("sweep pass %d did not run", i+1)
		}
	}
	sw.Stop()
}

func TestSweeper_StopWithoutStart(t *testing.T) {
	svc, _ := newTestService(t, LinkConfig{})
	sw := NewSweeper(svc, time.Hour, nil)

	done := make(chan struct{})
	go func() {
		sw.Stop()
		sw.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() blocked on a sweeper that never started")
	}
}

func TestNewSweeper_DefaultInterval(t *testing.T) {
	sw := NewSweeper(nil, 0, nil)
	if sw.interval != DefaultSweepInterval {
		t.Errorf("interval = %v, want %v", sw.interval, DefaultSweepInterval)
	}
}
