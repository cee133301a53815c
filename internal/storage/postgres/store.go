package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yndnr/filelink-go/internal/core/domain"
	"github.com/yndnr/filelink-go/internal/core/service"
)

// uniqueViolation is the SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// Config configures the PostgreSQL backend.
type Config struct {
	// DSN is a postgres:// connection URL.
	DSN string

	// MaxConns caps the pool size. Zero keeps the pgx default.
	MaxConns int32

	// ConnectTimeout bounds the initial connection and ping.
	ConnectTimeout time.Duration

	// Migrate runs the embedded migrations on Open.
	Migrate bool
}

// DefaultConfig returns the defaults for dsn.
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:            dsn,
		MaxConns:       10,
		ConnectTimeout: 5 * time.Second,
		Migrate:        true,
	}
}

const (
	insertSQL = `INSERT INTO file_links (token, from_chat_id, from_message_id, created_at, max_uses, uses)
		VALUES ($1, $2, $3, $4, $5, $6)`

	consumeSQL = `UPDATE file_links SET uses = uses + 1
		WHERE token = $1 AND created_at >= $2 AND (max_uses = 0 OR uses < max_uses)
		RETURNING from_chat_id, from_message_id`

	deleteExpiredSQL = `DELETE FROM file_links WHERE created_at < $1`

	getSQL = `SELECT token, from_chat_id, from_message_id, created_at, max_uses, uses
		FROM file_links WHERE token = $1`
)

// Store is the PostgreSQL link backend.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to the database and optionally migrates it.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: dsn is required")
	}
	if log == nil {
		log = slog.Default()
	}

	if cfg.Migrate {
		if err := Migrate(cfg.DSN, log); err != nil {
			return nil, err
		}
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	log.Info("postgres store opened",
		"host", poolCfg.ConnConfig.Host,
		"database", poolCfg.ConnConfig.Database,
		"max_conns", poolCfg.MaxConns)

	return &Store{pool: pool}, nil
}

// Insert stores a new entry.
func (s *Store) Insert(ctx context.Context, entry *domain.LinkEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, insertSQL,
		entry.Token,
		entry.Reference.ChatID,
		entry.Reference.MessageID,
		entry.CreatedAt,
		entry.MaxUses,
		entry.Uses,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrTokenConflict
		}
		return fmt.Errorf("postgres: insert: %w", err)
	}
	return nil
}

// Consume resolves token and counts one use.
func (s *Store) Consume(ctx context.Context, token string, cutoff time.Time) (domain.Reference, error) {
	var ref domain.Reference
	err := s.pool.QueryRow(ctx, consumeSQL, token, cutoff).Scan(&ref.ChatID, &ref.MessageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Reference{}, domain.ErrLinkNotFound
		}
		return domain.Reference{}, fmt.Errorf("postgres: consume: %w", err)
	}
	return ref, nil
}

// DeleteExpired removes entries created before cutoff.
func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, deleteExpiredSQL, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete expired: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Get returns the stored entry regardless of its state.
func (s *Store) Get(ctx context.Context, token string) (*domain.LinkEntry, error) {
	var e domain.LinkEntry
	err := s.pool.QueryRow(ctx, getSQL, token).Scan(
		&e.Token,
		&e.Reference.ChatID,
		&e.Reference.MessageID,
		&e.CreatedAt,
		&e.MaxUses,
		&e.Uses,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLinkNotFound
		}
		return nil, fmt.Errorf("postgres: get: %w", err)
	}
	e.CreatedAt = domain.NormalizeTime(e.CreatedAt)
	return &e, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

var _ service.LinkRepository = (*Store)(nil)
