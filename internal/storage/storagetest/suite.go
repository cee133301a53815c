package storagetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/filelink-go/internal/core/domain"
	"github.com/yndnr/filelink-go/internal/core/service"
)

// Store is the surface exercised by the suite.
type Store interface {
	service.LinkRepository
	Get(ctx context.Context, token string) (*domain.LinkEntry, error)
	Ping(ctx context.Context) error
	Close() error
}

// Factory returns a new empty store. The suite closes it.
type Factory func(t *testing.T) Store

// base is a fixed instant used for every entry; cutoffs are derived from it.
var base = time.Date(2026, 3, 14, 15, 9, 26, 535897000, time.UTC)

// Run executes the full suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, s Store)
	}{
		{"InsertAndGet", testInsertAndGet},
		{"InsertDuplicate", testInsertDuplicate},
		{"ConsumeMissing", testConsumeMissing},
		{"ConsumeSingleUse", testConsumeSingleUse},
		{"ConsumeUnlimited", testConsumeUnlimited},
		{"ConsumeExpiryBoundary", testConsumeExpiryBoundary},
		{"ConcurrentExhaustion", testConcurrentExhaustion},
		{"DeleteExpired", testDeleteExpired},
		{"DeleteExpiredIdempotent", testDeleteExpiredIdempotent},
		{"SweepRacesConsume", testSweepRacesConsume},
		{"CancelledContext", testCancelledContext},
		{"Ping", testPing},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

func entry(tok string, ref domain.Reference, maxUses int, createdAt time.Time) *domain.LinkEntry {
	return domain.NewLinkEntry(tok, ref, maxUses, createdAt)
}

func testInsertAndGet(t *testing.T, s Store) {
	ctx := context.Background()
	ref := domain.Reference{ChatID: -100123456789, MessageID: 42}

	require.NoError(t, s.Insert(ctx, entry("tok-insert-get", ref, 1, base)))

	got, err := s.Get(ctx, "tok-insert-get")
	require.NoError(t, err)
	assert.Equal(t, ref, got.Reference)
	assert.Equal(t, 1, got.MaxUses)
	assert.Equal(t, 0, got.Uses)
	assert.True(t, got.CreatedAt.Equal(base), "created_at = %v, want %v", got.CreatedAt, base)

	_, err = s.Get(ctx, "tok-absent")
	assert.ErrorIs(t, err, domain.ErrLinkNotFound)
}

func testInsertDuplicate(t *testing.T, s Store) {
	ctx := context.Background()
	first := domain.Reference{ChatID: -1001, MessageID: 1}
	second := domain.Reference{ChatID: -1002, MessageID: 2}

	require.NoError(t, s.Insert(ctx, entry("tok-dup", first, 0, base)))
	err := s.Insert(ctx, entry("tok-dup", second, 5, base.Add(time.Minute)))
	assert.ErrorIs(t, err, domain.ErrTokenConflict)

	got, err := s.Get(ctx, "tok-dup")
	require.NoError(t, err)
	assert.Equal(t, first, got.Reference, "existing entry must be left untouched")
	assert.Equal(t, 0, got.MaxUses)
}

func testConsumeMissing(t *testing.T, s Store) {
	_, err := s.Consume(context.Background(), "tok-never-issued", base.Add(-time.Hour))
	assert.ErrorIs(t, err, domain.ErrLinkNotFound)
}

func testConsumeSingleUse(t *testing.T, s Store) {
	ctx := context.Background()
	ref := domain.Reference{ChatID: -100123456789, MessageID: 42}
	cutoff := base.Add(-time.Hour)

	require.NoError(t, s.Insert(ctx, entry("tok-single", ref, 1, base)))

	got, err := s.Consume(ctx, "tok-single", cutoff)
	require.NoError(t, err)
	assert.Equal(t, ref, got)

	_, err = s.Consume(ctx, "tok-single", cutoff)
	assert.ErrorIs(t, err, domain.ErrLinkNotFound)

	stored, err := s.Get(ctx, "tok-single")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Uses, "failed consume must not count a use")
}

func testConsumeUnlimited(t *testing.T, s Store) {
	ctx := context.Background()
	ref := domain.Reference{ChatID: -100999, MessageID: 7}
	cutoff := base.Add(-time.Hour)

	require.NoError(t, s.Insert(ctx, entry("tok-unlimited", ref, domain.Unlimited, base)))

	for i := 0; i < 50; i++ {
		got, err := s.Consume(ctx, "tok-unlimited", cutoff)
		require.NoError(t, err, "consume #%d", i+1)
		require.Equal(t, ref, got)
	}

	stored, err := s.Get(ctx, "tok-unlimited")
	require.NoError(t, err)
	assert.Equal(t, 50, stored.Uses)
}

func testConsumeExpiryBoundary(t *testing.T, s Store) {
	ctx := context.Background()
	ref := domain.Reference{ChatID: -1003, MessageID: 3}

	require.NoError(t, s.Insert(ctx, entry("tok-boundary", ref, 0, base)))

	// Created one second after the cutoff: still live.
	got, err := s.Consume(ctx, "tok-boundary", base.Add(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, ref, got)

	// Created exactly at the cutoff: still live.
	_, err = s.Consume(ctx, "tok-boundary", base)
	require.NoError(t, err)

	// Created one second before the cutoff: expired.
	_, err = s.Consume(ctx, "tok-boundary", base.Add(time.Second))
	assert.ErrorIs(t, err, domain.ErrLinkNotFound)

	stored, err := s.Get(ctx, "tok-boundary")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Uses)
}

func testConcurrentExhaustion(t *testing.T, s Store) {
	const callers = 100
	cutoff := base.Add(-time.Hour)

	for _, k := range []int{1, 3, 10} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			ctx := context.Background()
			tok := fmt.Sprintf("tok-race-%d", k)
			ref := domain.Reference{ChatID: -1004, MessageID: int64(k)}
			require.NoError(t, s.Insert(ctx, entry(tok, ref, k, base)))

			var wg sync.WaitGroup
			var successes, notFound atomic.Int64
			start := make(chan struct{})
			failures := make(chan error, callers)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					got, err := s.Consume(ctx, tok, cutoff)
					switch {
					case err == nil:
						if got != ref {
							failures <- fmt.Errorf("consume returned %v, want %v", got, ref)
							return
						}
						successes.Add(1)
					case errors.Is(err, domain.ErrLinkNotFound):
						notFound.Add(1)
					default:
						failures <- err
					}
				}()
			}
			close(start)
			wg.Wait()
			close(failures)

			for err := range failures {
				t.Errorf("unexpected consume result: %v", err)
			}
			assert.Equal(t, int64(k), successes.Load())
			assert.Equal(t, int64(callers-k), notFound.Load())

			stored, err := s.Get(ctx, tok)
			require.NoError(t, err)
			assert.Equal(t, k, stored.Uses)
		})
	}
}

func testDeleteExpired(t *testing.T, s Store) {
	ctx := context.Background()
	now := base
	ttl := 7 * 24 * time.Hour

	old := entry("tok-8d", domain.Reference{ChatID: -1005, MessageID: 1}, 0, now.Add(-8*24*time.Hour))
	fresh := entry("tok-6d", domain.Reference{ChatID: -1005, MessageID: 2}, 0, now.Add(-6*24*time.Hour))
	require.NoError(t, s.Insert(ctx, old))
	require.NoError(t, s.Insert(ctx, fresh))

	cutoff := domain.ExpiryCutoff(now, ttl)
	n, err := s.DeleteExpired(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Get(ctx, "tok-8d")
	assert.ErrorIs(t, err, domain.ErrLinkNotFound)

	got, err := s.Consume(ctx, "tok-6d", cutoff)
	require.NoError(t, err)
	assert.Equal(t, fresh.Reference, got)
}

func testDeleteExpiredIdempotent(t *testing.T, s Store) {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		e := entry(fmt.Sprintf("tok-sweep-%d", i), domain.Reference{ChatID: -1006, MessageID: int64(i + 1)}, 1,
			base.Add(-time.Duration(i)*time.Hour))
		require.NoError(t, s.Insert(ctx, e))
	}

	// Entries at base-3h and base-4h are older than the cutoff.
	cutoff := base.Add(-150 * time.Minute)
	n, err := s.DeleteExpired(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.DeleteExpired(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for i := 0; i < 3; i++ {
		_, err := s.Get(ctx, fmt.Sprintf("tok-sweep-%d", i))
		assert.NoError(t, err)
	}
}

// testSweepRacesConsume sweeps repeatedly while consumers hit both the
// expiring and the live half of the store.
func testSweepRacesConsume(t *testing.T, s Store) {
	const (
		perHalf   = 200
		consumers = 16
	)
	ctx := context.Background()
	cutoff := base.Add(-24 * time.Hour)

	tokens := make([]string, 0, 2*perHalf)
	for i := 0; i < perHalf; i++ {
		old := fmt.Sprintf("tok-stale-%03d", i)
		live := fmt.Sprintf("tok-live-%03d", i)
		ref := domain.Reference{ChatID: -1008, MessageID: int64(i + 1)}
		require.NoError(t, s.Insert(ctx, entry(old, ref, 0, base.Add(-48*time.Hour))))
		require.NoError(t, s.Insert(ctx, entry(live, ref, 0, base)))
		tokens = append(tokens, old, live)
	}

	var wg sync.WaitGroup
	var liveHits atomic.Int64
	start := make(chan struct{})
	failures := make(chan error, consumers*len(tokens))
	for c := 0; c < consumers; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for _, tok := range tokens {
				_, err := s.Consume(ctx, tok, cutoff)
				switch {
				case err == nil:
					if strings.HasPrefix(tok, "tok-stale-") {
						failures <- fmt.Errorf("expired %s was consumed", tok)
						continue
					}
					liveHits.Add(1)
				case errors.Is(err, domain.ErrLinkNotFound):
					if strings.HasPrefix(tok, "tok-live-") {
						failures <- fmt.Errorf("live %s reported not found", tok)
					}
				default:
					failures <- fmt.Errorf("consume %s: %w", tok, err)
				}
			}
		}()
	}

	consumed := make(chan struct{})
	done := make(chan struct{})
	swept := 0
	var sweepErr error
	go func() {
		defer close(done)
		<-start
		for {
			// One more pass after the consumers finish catches anything
			// the racing passes left behind.
			finished := false
			select {
			case <-consumed:
				finished = true
			default:
			}
			n, err := s.DeleteExpired(ctx, cutoff)
			swept += n
			if err != nil {
				sweepErr = err
				return
			}
			if finished {
				return
			}
		}
	}()

	close(start)
	wg.Wait()
	close(consumed)
	<-done
	close(failures)

	for err := range failures {
		t.Error(err)
	}
	require.NoError(t, sweepErr)
	assert.Equal(t, perHalf, swept)
	assert.Equal(t, int64(consumers*perHalf), liveHits.Load())

	for i := 0; i < perHalf; i++ {
		_, err := s.Get(ctx, fmt.Sprintf("tok-stale-%03d", i))
		assert.ErrorIs(t, err, domain.ErrLinkNotFound)

		stored, err := s.Get(ctx, fmt.Sprintf("tok-live-%03d", i))
		require.NoError(t, err)
		assert.Equal(t, consumers, stored.Uses)
	}
}

func testCancelledContext(t *testing.T, s Store) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Insert(ctx, entry("tok-cancelled", domain.Reference{ChatID: -1007, MessageID: 1}, 0, base))
	require.Error(t, err)

	_, err = s.Get(context.Background(), "tok-cancelled")
	assert.ErrorIs(t, err, domain.ErrLinkNotFound, "cancelled insert must not persist")
}

func testPing(t *testing.T, s Store) {
	assert.NoError(t, s.Ping(context.Background()))
}
