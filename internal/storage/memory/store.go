package memory

import (
	"context"
	"time"

	"github.com/yndnr/filelink-go/internal/core/domain"
	"github.com/yndnr/filelink-go/internal/core/service"
	"github.com/yndnr/filelink-go/pkg/cmap"
)

// Store provides in-memory link storage.
type Store struct {
	links *cmap.Map[*domain.LinkEntry]
}

// Option configures the Store.
type Option func(*storeOptions)

type storeOptions struct {
	shards int
}

// WithShards sets the number of map shards (power of two).
func WithShards(n int) Option {
	return func(o *storeOptions) {
		o.shards = n
	}
}

// New creates a new in-memory store.
func New(opts ...Option) *Store {
	o := storeOptions{shards: cmap.DefaultShardCount}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{links: cmap.NewWithShards[*domain.LinkEntry](o.shards)}
}

// Insert stores a new entry.
func (s *Store) Insert(ctx context.Context, entry *domain.LinkEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	if !s.links.SetIfAbsent(entry.Token, entry.Clone()) {
		return domain.ErrTokenConflict
	}
	return nil
}

// Consume resolves token and counts one use.
func (s *Store) Consume(ctx context.Context, token string, cutoff time.Time) (domain.Reference, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reference{}, err
	}

	var (
		ref   domain.Reference
		found bool
	)
	s.links.Compute(token, func(e *domain.LinkEntry, ok bool) (*domain.LinkEntry, cmap.Action) {
		if !ok || !e.Consumable(cutoff) {
			return e, cmap.Keep
		}
		next := e.Clone()
		next.Uses++
		ref, found = next.Reference, true
		return next, cmap.Store
	})

	if !found {
		return domain.Reference{}, domain.ErrLinkNotFound
	}
	return ref, nil
}

// DeleteExpired removes entries created before cutoff.
func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.links.DeleteFunc(func(_ string, e *domain.LinkEntry) bool {
		return e.IsExpired(cutoff)
	}), nil
}

// Get returns a copy of the stored entry regardless of its state.
func (s *Store) Get(_ context.Context, token string) (*domain.LinkEntry, error) {
	e, ok := s.links.Get(token)
	if !ok {
		return nil, domain.ErrLinkNotFound
	}
	return e.Clone(), nil
}

// Shards returns the number of lock shards.
func (s *Store) Shards() int {
	return s.links.ShardCount()
}

// Count returns the number of stored entries.
func (s *Store) Count() int {
	return s.links.Count()
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

var _ service.LinkRepository = (*Store)(nil)
