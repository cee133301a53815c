package storage

import "time"

// BadgerConfig contains Badger tuning parameters for the embedded backend.
type BadgerConfig struct {
	// Dir is the database directory.
	Dir string

	// GCInterval is the interval between value-log GC runs.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the discard ratio passed to RunValueLogGC (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 64MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 256MB
	ValueLogFileSize int64

	// NumMemtables is the number of memtables.
	// Default: 2
	NumMemtables int

	// NumLevelZeroTables is the number of Level 0 tables before compaction.
	// Default: 5
	NumLevelZeroTables int

	// NumLevelZeroTablesStall is the number of Level 0 tables that stalls writes.
	// Default: 10
	NumLevelZeroTablesStall int

	// SyncWrites fsyncs after each write.
	// Default: true
	SyncWrites bool

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:                     dir,
		GCInterval:              10 * time.Minute,
		GCThreshold:             0.5,
		CacheSize:               64 << 20,  // 64MB
		ValueLogFileSize:        256 << 20, // 256MB
		NumMemtables:            2,
		NumLevelZeroTables:      5,
		NumLevelZeroTablesStall: 10,
		SyncWrites:              true,
	}
}
