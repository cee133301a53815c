package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/filelink-go/internal/core/domain"
	"github.com/yndnr/filelink-go/internal/core/service"
	"github.com/yndnr/filelink-go/internal/storage/memory"
	"github.com/yndnr/filelink-go/internal/storage/postgres"
	"github.com/yndnr/filelink-go/internal/storage/redis"
	"github.com/yndnr/filelink-go/internal/storage/sqlite"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Backends lists every backend name in a stable order.
var Backends = []string{BackendMemory, BackendBadger, BackendSQLite, BackendPostgres, BackendRedis}

// Backend is a link repository with lifecycle hooks.
type Backend interface {
	service.LinkRepository

	// Get returns the stored entry regardless of its state.
	Get(ctx context.Context, token string) (*domain.LinkEntry, error)

	// Ping reports whether the backend can serve requests.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend  string
	DataDir  string
	Badger   BadgerConfig

	// MemoryShards is the shard count of the memory backend.
	MemoryShards int

	SQLite   sqlite.Config
	Postgres postgres.Config
	Redis    redis.Config

	Logger *slog.Logger

	// Registerer receives backend-specific metrics when non-nil.
	Registerer prometheus.Registerer
}

// Open creates the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (Backend, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("backend", opts.Backend)

	switch opts.Backend {
	case BackendMemory, "":
		s := memory.New(memory.WithShards(opts.MemoryShards))
		if opts.Registerer != nil {
			gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "filelink_memory_links",
				Help: "Entries held by the in-memory backend, including expired ones not yet swept.",
			}, func() float64 { return float64(s.Count()) })
			if err := opts.Registerer.Register(gauge); err != nil {
				return nil, err
			}
		}
		log.Warn("using in-memory storage, links are lost on restart", "shards", s.Shards())
		return s, nil

	case BackendBadger:
		cfg := opts.Badger
		if cfg.Dir == "" && !cfg.InMemory {
			cfg.Dir = filepath.Join(opts.DataDir, "badger")
		}
		s, err := NewBadgerStore(cfg, log)
		if err != nil {
			return nil, err
		}
		if opts.Registerer != nil {
			if err := s.RegisterMetrics(opts.Registerer); err != nil {
				_ = s.Close()
				return nil, err
			}
		}
		return s, nil

	case BackendSQLite:
		cfg := opts.SQLite
		if cfg.Path == "" {
			cfg.Path = filepath.Join(opts.DataDir, "filelink.db")
		}
		return orNil(sqlite.Open(cfg, log))

	case BackendPostgres:
		return orNil(postgres.Open(ctx, opts.Postgres, log))

	case BackendRedis:
		return orNil(redis.Open(ctx, opts.Redis, log))

	default:
		return nil, fmt.Errorf("storage: unknown backend %q (want one of %v)", opts.Backend, Backends)
	}
}

// orNil keeps a failed constructor from returning a non-nil interface
// holding a nil pointer.
func orNil[B Backend](b B, err error) (Backend, error) {
	if err != nil {
		return nil, err
	}
	return b, nil
}

var (
	_ Backend = (*BadgerStore)(nil)
	_ Backend = (*memory.Store)(nil)
	_ Backend = (*sqlite.Store)(nil)
	_ Backend = (*postgres.Store)(nil)
	_ Backend = (*redis.Store)(nil)
)
