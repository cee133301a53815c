package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yndnr/filelink-go/internal/core/domain"
	"github.com/yndnr/filelink-go/internal/telemetry/metric"
	"github.com/yndnr/filelink-go/pkg/token"
)

//go:generate mockgen -source=link.go -destination=mock_repository_test.go -package=service

// LinkRepository defines the storage interface for link entries.
//
// Every method is a single all-or-nothing unit against the backing store.
// A cancelled ctx may abort an operation but never leaves it half applied.
type LinkRepository interface {
	// Insert persists a new entry. It returns domain.ErrTokenConflict when the
	// token already exists and must leave the existing entry untouched.
	Insert(ctx context.Context, entry *domain.LinkEntry) error

	// Consume resolves token and increments its use counter by one, as a
	// single atomic step per token. Entries created before cutoff and
	// exhausted entries are reported as domain.ErrLinkNotFound and are not
	// modified.
	Consume(ctx context.Context, token string, cutoff time.Time) (domain.Reference, error)

	// DeleteExpired removes every entry created before cutoff and returns how
	// many were removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}

// Link store defaults.
const (
	DefaultMaxInsertAttempts = 3
)

// LinkConfig configures a LinkService.
type LinkConfig struct {
	// TTL is the age after which a link can no longer be consumed.
	TTL time.Duration

	// MaxInsertAttempts bounds token generation retries on collision.
	MaxInsertAttempts int

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time

	// Generate produces candidate tokens. Defaults to token.Generate.
	Generate token.Generator
}

// DefaultLinkConfig returns the production defaults.
func DefaultLinkConfig() LinkConfig {
	return LinkConfig{
		TTL:               domain.DefaultTTL,
		MaxInsertAttempts: DefaultMaxInsertAttempts,
		Now:               time.Now,
		Generate:          token.Generate,
	}
}

// LinkService implements the link store operations on top of a
// LinkRepository.
type LinkService struct {
	repo    LinkRepository
	cfg     LinkConfig
	logger  *slog.Logger
	metrics *metric.Registry
}

// Option configures a LinkService.
type Option func(*LinkService)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *LinkService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics enables metrics recording.
func WithMetrics(m *metric.Registry) Option {
	return func(s *LinkService) {
		s.metrics = m
	}
}

// NewLinkService creates a new LinkService. Zero fields in cfg fall back to
// DefaultLinkConfig.
func NewLinkService(repo LinkRepository, cfg LinkConfig, opts ...Option) *LinkService {
	def := DefaultLinkConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.MaxInsertAttempts <= 0 {
		cfg.MaxInsertAttempts = def.MaxInsertAttempts
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	if cfg.Generate == nil {
		cfg.Generate = def.Generate
	}

	s := &LinkService{
		repo:   repo,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured link lifetime.
func (s *LinkService) TTL() time.Duration {
	return s.cfg.TTL
}

// ============================================================================
// Insert
// ============================================================================

// Insert stores a new link to ref and returns its token.
//
// maxUses of 0 means unlimited. Arguments are validated before any storage
// access. Token collisions are retried with a fresh token up to
// MaxInsertAttempts; running out returns domain.ErrStoreExhausted.
func (s *LinkService) Insert(ctx context.Context, ref domain.Reference, maxUses int) (string, error) {
	if maxUses < 0 {
		return "", domain.ErrInvalidArgument.WithDetails("max_uses must not be negative")
	}
	if err := ref.Validate(); err != nil {
		return "", err
	}

	start := time.Now()
	tok, err := s.insert(ctx, ref, maxUses)
	s.metrics.ObserveInsert(time.Since(start), err)
	return tok, err
}

func (s *LinkService) insert(ctx context.Context, ref domain.Reference, maxUses int) (string, error) {
	for attempt := 1; attempt <= s.cfg.MaxInsertAttempts; attempt++ {
		tok, err := s.cfg.Generate()
		if err != nil {
			s.logger.Error("token generation failed", "error", err)
			return "", domain.ErrInternalServer.WithDetails("token generation failed").WithCause(err)
		}

		entry := domain.NewLinkEntry(tok, ref, maxUses, s.cfg.Now())
		err = s.repo.Insert(ctx, entry)
		switch {
		case err == nil:
			s.logger.Debug("link created",
				"token", tok,
				"chat_id", ref.ChatID,
				"message_id", ref.MessageID,
				"max_uses", maxUses)
			return tok, nil
		case errors.Is(err, domain.ErrTokenConflict):
			s.metrics.ObserveCollision()
			s.logger.Warn("token collision, retrying", "attempt", attempt)
			continue
		default:
			return "", storageError(err)
		}
	}

	s.logger.Error("token collision retries exhausted, token source may be broken",
		"attempts", s.cfg.MaxInsertAttempts)
	return "", domain.ErrStoreExhausted.WithDetails(
		fmt.Sprintf("%d consecutive collisions", s.cfg.MaxInsertAttempts))
}

// ============================================================================
// Consume
// ============================================================================

// Consume resolves tok to its reference and counts one use.
//
// Absent, exhausted and expired tokens all yield domain.ErrLinkNotFound.
// Strings that can never be a token are rejected without a storage round
// trip.
func (s *LinkService) Consume(ctx context.Context, tok string) (domain.Reference, error) {
	if !token.IsWellFormed(tok) {
		s.metrics.ObserveConsume(0, false, nil)
		return domain.Reference{}, domain.ErrLinkNotFound
	}

	start := time.Now()
	cutoff := domain.ExpiryCutoff(s.cfg.Now(), s.cfg.TTL)
	ref, err := s.repo.Consume(ctx, tok, cutoff)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		s.metrics.ObserveConsume(elapsed, true, nil)
		return ref, nil
	case errors.Is(err, domain.ErrLinkNotFound):
		s.metrics.ObserveConsume(elapsed, false, nil)
		return domain.Reference{}, domain.ErrLinkNotFound
	default:
		s.metrics.ObserveConsume(elapsed, false, err)
		return domain.Reference{}, storageError(err)
	}
}

// ============================================================================
// Sweep
// ============================================================================

// Sweep deletes every entry older than ttl and returns how many were
// removed. Calling it again without new inserts returns 0.
func (s *LinkService) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, domain.ErrInvalidArgument.WithDetails("ttl must be positive")
	}

	start := time.Now()
	cutoff := domain.ExpiryCutoff(s.cfg.Now(), ttl)
	n, err := s.repo.DeleteExpired(ctx, cutoff)
	s.metrics.ObserveSweep(time.Since(start), n, err)
	if err != nil {
		return 0, storageError(err)
	}
	return n, nil
}

// SweepExpired sweeps with the configured TTL.
func (s *LinkService) SweepExpired(ctx context.Context) (int, error) {
	return s.Sweep(ctx, s.cfg.TTL)
}

// storageError maps repository failures to the domain error taxonomy.
// Domain errors raised by the repository itself pass through.
func storageError(err error) error {
	if domain.IsDomainError(err, "") {
		return err
	}
	return domain.ErrStorageError.WithCause(err)
}
