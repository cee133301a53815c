package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yndnr/filelink-go/internal/core/domain"
	"github.com/yndnr/filelink-go/internal/core/service"
)

// Config configures the SQLite backend.
type Config struct {
	// Path is the database file. ":memory:" keeps it in RAM.
	Path string

	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration

	// LogLevel is the gorm log level: silent, error, warn or info.
	LogLevel string
}

// DefaultConfig returns the defaults for a database at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		BusyTimeout: 5 * time.Second,
		LogLevel:    "warn",
	}
}

// linkRow is the file_links table.
type linkRow struct {
	Token         string `gorm:"primaryKey;size:64"`
	FromChatID    int64  `gorm:"not null"`
	FromMessageID int64  `gorm:"not null"`
	CreatedAt     int64  `gorm:"not null;index;autoCreateTime:false"`
	MaxUses       int    `gorm:"not null;default:0"`
	Uses          int    `gorm:"not null;default:0"`
}

func (linkRow) TableName() string { return "file_links" }

func toRow(e *domain.LinkEntry) *linkRow {
	return &linkRow{
		Token:         e.Token,
		FromChatID:    e.Reference.ChatID,
		FromMessageID: e.Reference.MessageID,
		CreatedAt:     e.CreatedAt.UnixMicro(),
		MaxUses:       e.MaxUses,
		Uses:          e.Uses,
	}
}

func (r *linkRow) entry() *domain.LinkEntry {
	return &domain.LinkEntry{
		Token:     r.Token,
		Reference: domain.Reference{ChatID: r.FromChatID, MessageID: r.FromMessageID},
		CreatedAt: time.UnixMicro(r.CreatedAt).UTC(),
		MaxUses:   r.MaxUses,
		Uses:      r.Uses,
	}
}

// Store is the SQLite link backend.
type Store struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

// Open opens the database and migrates the schema.
func Open(cfg Config, log *slog.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if log == nil {
		log = slog.Default()
	}

	db, err := gorm.Open(sqlite.Open(dsn(cfg)), &gorm.Config{
		Logger:         newGormLogger(log, cfg.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite: pool: %w", err)
	}
	// SQLite has a single writer; one connection also keeps ":memory:"
	// databases alive across statements.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := db.AutoMigrate(&linkRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}

	log.Info("sqlite store opened", "path", cfg.Path)
	return &Store{db: db, sqlDB: sqlDB}, nil
}

func dsn(cfg Config) string {
	if cfg.Path == ":memory:" {
		return cfg.Path
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	sep := "?"
	if strings.Contains(cfg.Path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_journal_mode=WAL&_busy_timeout=%d", cfg.Path, sep, busy.Milliseconds())
}

// Insert stores a new entry.
func (s *Store) Insert(ctx context.Context, entry *domain.LinkEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Create(toRow(entry)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrTokenConflict
	}
	if err != nil {
		return fmt.Errorf("sqlite: insert: %w", err)
	}
	return nil
}

// Consume resolves token and counts one use.
func (s *Store) Consume(ctx context.Context, token string, cutoff time.Time) (domain.Reference, error) {
	var row linkRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&linkRow{}).
			Where("token = ? AND created_at >= ? AND (max_uses = 0 OR uses < max_uses)", token, cutoff.UnixMicro()).
			UpdateColumn("uses", gorm.Expr("uses + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrLinkNotFound
		}
		return tx.Select("from_chat_id", "from_message_id").
			Where("token = ?", token).
			Take(&row).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrLinkNotFound) {
			return domain.Reference{}, err
		}
		return domain.Reference{}, fmt.Errorf("sqlite: consume: %w", err)
	}
	return domain.Reference{ChatID: row.FromChatID, MessageID: row.FromMessageID}, nil
}

// DeleteExpired removes entries created before cutoff.
func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	res := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff.UnixMicro()).
		Delete(&linkRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("sqlite: delete expired: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// Get returns the stored entry regardless of its state.
func (s *Store) Get(ctx context.Context, token string) (*domain.LinkEntry, error) {
	var row linkRow
	err := s.db.WithContext(ctx).Where("token = ?", token).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get: %w", err)
	}
	return row.entry(), nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// gormWriter routes gorm's printf-style output to slog.
type gormWriter struct {
	log *slog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Warn(fmt.Sprintf(format, args...), "component", "gorm")
}

func newGormLogger(log *slog.Logger, level string) logger.Interface {
	lvl := logger.Warn
	switch strings.ToLower(level) {
	case "silent":
		lvl = logger.Silent
	case "error":
		lvl = logger.Error
	case "info":
		lvl = logger.Info
	}
	return logger.New(gormWriter{log: log}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
		Colorful:                  false,
	})
}

var _ service.LinkRepository = (*Store)(nil)
