package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spaolacci/murmur3"

	"github.com/yndnr/filelink-go/internal/core/domain"
	"github.com/yndnr/filelink-go/internal/core/service"
)

const (
	linkKeyPrefix = "link/"

	// sweepBatchSize bounds the number of deletes per transaction so a large
	// sweep never hits badger.ErrTxnTooBig.
	sweepBatchSize = 1000

	maxTxnAttempts = 16
	lockStripes    = 64
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: store closed")

// BadgerStore is the embedded on-disk link backend.
//
// Entries are JSON values under "link/<token>". Transactions run with
// conflict detection and are retried on badger.ErrConflict. Consumes of
// one token are additionally serialized by a striped mutex so the retry
// path is only taken when a sweep overlaps.
type BadgerStore struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger

	locks [lockStripes]sync.Mutex

	lastGCTime atomic.Int64 // Unix milliseconds
	gcRuns     atomic.Uint64

	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewBadgerStore opens (or creates) a Badger database.
func NewBadgerStore(cfg BadgerConfig, logger *slog.Logger) (*BadgerStore, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: logger}
	opts.DetectConflicts = true
	opts.SyncWrites = cfg.SyncWrites
	if cfg.CacheSize > 0 {
		opts.BlockCacheSize = cfg.CacheSize
	}
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	if cfg.NumMemtables > 0 {
		opts.NumMemtables = cfg.NumMemtables
	}
	if cfg.NumLevelZeroTables > 0 {
		opts.NumLevelZeroTables = cfg.NumLevelZeroTables
	}
	if cfg.NumLevelZeroTablesStall > 0 {
		opts.NumLevelZeroTablesStall = cfg.NumLevelZeroTablesStall
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	s := &BadgerStore{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	go s.gcLoop()

	logger.Info("badger store opened",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"gc_interval", cfg.GCInterval)

	return s, nil
}

func linkKey(token string) []byte {
	return []byte(linkKeyPrefix + token)
}

func (s *BadgerStore) lockFor(token string) *sync.Mutex {
	return &s.locks[murmur3.Sum32([]byte(token))%lockStripes]
}

// update runs fn in a read-write transaction, retrying on conflict.
func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.db.IsClosed() {
			return ErrClosed
		}

		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if attempt >= maxTxnAttempts {
			return fmt.Errorf("badger: transaction conflict after %d attempts: %w", attempt, err)
		}
	}
}

func readEntry(item *badger.Item) (*domain.LinkEntry, error) {
	var e domain.LinkEntry
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &e)
	})
	if err != nil {
		return nil, fmt.Errorf("badger: decode %q: %w", item.Key(), err)
	}
	return &e, nil
}

// Insert stores a new entry.
func (s *BadgerStore) Insert(ctx context.Context, entry *domain.LinkEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	val, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("badger: encode entry: %w", err)
	}
	key := linkKey(entry.Token)

	return s.update(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch {
		case err == nil:
			return domain.ErrTokenConflict
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(key, val)
	})
}

// Consume resolves token and counts one use.
func (s *BadgerStore) Consume(ctx context.Context, token string, cutoff time.Time) (domain.Reference, error) {
	mu := s.lockFor(token)
	mu.Lock()
	defer mu.Unlock()

	key := linkKey(token)
	var ref domain.Reference

	err := s.update(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrLinkNotFound
			}
			return err
		}

		e, err := readEntry(item)
		if err != nil {
			return err
		}
		if !e.Consumable(cutoff) {
			return domain.ErrLinkNotFound
		}

		e.Uses++
		val, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("badger: encode entry: %w", err)
		}
		ref = e.Reference
		return txn.Set(key, val)
	})
	if err != nil {
		return domain.Reference{}, err
	}
	return ref, nil
}

// DeleteExpired removes entries created before cutoff in batches. Each
// batch is found with a read-only scan and deleted in a transaction that
// reads only the candidate keys, so consumes on live entries never
// conflict with it.
func (s *BadgerStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	prefix := []byte(linkKeyPrefix)
	seek := prefix
	total := 0

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if s.db.IsClosed() {
			return total, ErrClosed
		}

		var candidates [][]byte
		var next []byte
		err := s.db.View(func(txn *badger.Txn) error {
			var err error
			candidates, next, err = scanExpired(txn, prefix, seek, cutoff)
			return err
		})
		if err != nil {
			return total, err
		}

		if len(candidates) > 0 {
			n, err := s.deleteIfExpired(ctx, candidates, cutoff)
			total += n
			if err != nil {
				return total, err
			}
		}

		if next == nil || bytes.Equal(next, seek) {
			return total, nil
		}
		seek = next
	}
}

// deleteIfExpired deletes the keys that are still expired. A key removed
// in the meantime is skipped.
func (s *BadgerStore) deleteIfExpired(ctx context.Context, keys [][]byte, cutoff time.Time) (int, error) {
	var deleted int
	err := s.update(ctx, func(txn *badger.Txn) error {
		deleted = 0
		for _, k := range keys {
			item, err := txn.Get(k)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			e, err := readEntry(item)
			if err != nil {
				return err
			}
			if !e.IsExpired(cutoff) {
				continue
			}
			if err := txn.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

// scanExpired collects up to sweepBatchSize expired keys starting at seek.
// next is the first unexamined key, or nil when the prefix is exhausted.
func scanExpired(txn *badger.Txn, prefix, seek []byte, cutoff time.Time) (expired [][]byte, next []byte, err error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(seek); it.Valid(); it.Next() {
		item := it.Item()
		if len(expired) == sweepBatchSize {
			return expired, item.KeyCopy(nil), nil
		}
		e, err := readEntry(item)
		if err != nil {
			return nil, nil, err
		}
		if e.IsExpired(cutoff) {
			expired = append(expired, item.KeyCopy(nil))
		}
	}
	return expired, nil, nil
}

// Get returns the stored entry regardless of its state.
func (s *BadgerStore) Get(ctx context.Context, token string) (*domain.LinkEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var e *domain.LinkEntry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(linkKey(token))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrLinkNotFound
			}
			return err
		}
		e, err = readEntry(item)
		return err
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Ping reports whether the database is open.
func (s *BadgerStore) Ping(context.Context) error {
	if s.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

// GC runs value-log garbage collection until Badger has nothing left to
// rewrite and returns the number of rewritten files.
func (s *BadgerStore) GC(ctx context.Context) (int, error) {
	if s.cfg.InMemory {
		return 0, nil
	}

	start := time.Now()
	rewrites := 0
	for ctx.Err() == nil {
		err := s.db.RunValueLogGC(s.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
				break
			}
			return rewrites, fmt.Errorf("badger: gc: %w", err)
		}
		rewrites++
	}

	s.lastGCTime.Store(time.Now().UnixMilli())
	s.gcRuns.Add(1)

	s.logger.Debug("badger gc completed",
		"rewrites", rewrites,
		"elapsed", time.Since(start))

	return rewrites, nil
}

// Close stops the GC loop and closes the database.
func (s *BadgerStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh

		if cerr := s.db.Close(); cerr != nil {
			err = fmt.Errorf("badger: close db: %w", cerr)
			return
		}
		s.logger.Info("badger store closed")
	})
	return err
}

// RegisterMetrics exposes Badger size and GC gauges on reg.
func (s *BadgerStore) RegisterMetrics(reg prometheus.Registerer) error {
	size := func(pick func(lsm, vlog int64) int64) func() float64 {
		return func() float64 {
			if s.db.IsClosed() {
				return 0
			}
			return float64(pick(s.db.Size()))
		}
	}

	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "filelink",
			Subsystem: "badger",
			Name:      "lsm_size_bytes",
			Help:      "Badger LSM tree size in bytes",
		}, size(func(lsm, _ int64) int64 { return lsm })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "filelink",
			Subsystem: "badger",
			Name:      "value_log_size_bytes",
			Help:      "Badger value log size in bytes",
		}, size(func(_, vlog int64) int64 { return vlog })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "filelink",
			Subsystem: "badger",
			Name:      "last_gc_timestamp_seconds",
			Help:      "Unix timestamp of the last value-log GC run",
		}, func() float64 { return float64(s.lastGCTime.Load()) / 1000.0 }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "filelink",
			Subsystem: "badger",
			Name:      "gc_runs_total",
			Help:      "Number of completed value-log GC runs",
		}, func() float64 { return float64(s.gcRuns.Load()) }),
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("badger: register metrics: %w", err)
		}
	}
	return nil
}

// gcLoop runs periodic garbage collection.
func (s *BadgerStore) gcLoop() {
	defer close(s.doneCh)

	interval := s.cfg.GCInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := s.GC(ctx); err != nil {
				s.logger.Error("badger auto gc failed", "error", err)
			}
			cancel()

		case <-s.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

var _ service.LinkRepository = (*BadgerStore)(nil)
