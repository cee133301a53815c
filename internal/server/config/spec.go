package config

import "time"

// ServerConfig is the root configuration for filelink-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server" yaml:"server"`
	Storage  StorageSection  `koanf:"storage" yaml:"storage"`
	Link     LinkSection     `koanf:"link" yaml:"link"`
	Telegram TelegramSection `koanf:"telegram" yaml:"telegram"`
	Log      LogSection      `koanf:"log" yaml:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http" yaml:"http"`
	RESP RESPConfig `koanf:"resp" yaml:"resp"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr" yaml:"addr"`
	TLSCertFile string `koanf:"tls_cert_file" yaml:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file" yaml:"tls_key_file"`

	// AdminToken guards /admin routes. Empty disables them.
	AdminToken string `koanf:"admin_token" yaml:"admin_token"`

	// TrustedProxies are CIDRs or addresses allowed to set
	// X-Forwarded-For. Forwarding headers from anyone else are ignored.
	TrustedProxies []string `koanf:"trusted_proxies" yaml:"trusted_proxies"`

	ReadTimeout     time.Duration `koanf:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`

	RateLimit RateLimitConfig `koanf:"rate_limit" yaml:"rate_limit"`
}

// RESPConfig configures the Redis-protocol listener. AUTH on it checks
// server.http.admin_token.
type RESPConfig struct {
	Enabled     bool   `koanf:"enabled" yaml:"enabled"`
	Addr        string `koanf:"addr" yaml:"addr"`
	TLSCertFile string `koanf:"tls_cert_file" yaml:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file" yaml:"tls_key_file"`

	ReadTimeout  time.Duration `koanf:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" yaml:"idle_timeout"`

	// RateLimit applies per connection.
	RateLimit RateLimitConfig `koanf:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig configures the per-client request limiter.
type RateLimitConfig struct {
	Enabled bool    `koanf:"enabled" yaml:"enabled"`
	RPS     float64 `koanf:"rps" yaml:"rps"`
	Burst   int     `koanf:"burst" yaml:"burst"`
}

// StorageSection selects and configures the link backend.
type StorageSection struct {
	// Backend is one of memory, badger, sqlite, postgres, redis.
	Backend  string         `koanf:"backend" yaml:"backend"`
	DataDir  string         `koanf:"data_dir" yaml:"data_dir"`
	Memory   MemoryConfig   `koanf:"memory" yaml:"memory"`
	Badger   BadgerConfig   `koanf:"badger" yaml:"badger"`
	SQLite   SQLiteConfig   `koanf:"sqlite" yaml:"sqlite"`
	Postgres PostgresConfig `koanf:"postgres" yaml:"postgres"`
	Redis    RedisConfig    `koanf:"redis" yaml:"redis"`
}

// MemoryConfig tunes the volatile in-memory backend.
type MemoryConfig struct {
	// Shards is the number of lock shards; a power of two.
	Shards int `koanf:"shards" yaml:"shards"`
}

// BadgerConfig tunes the embedded Badger backend.
type BadgerConfig struct {
	GCInterval  time.Duration `koanf:"gc_interval" yaml:"gc_interval"`
	GCThreshold float64       `koanf:"gc_threshold" yaml:"gc_threshold"`
	CacheSizeMB int64         `koanf:"cache_size_mb" yaml:"cache_size_mb"`
	SyncWrites  bool          `koanf:"sync_writes" yaml:"sync_writes"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// Path defaults to <data_dir>/filelink.db.
	Path        string        `koanf:"path" yaml:"path"`
	BusyTimeout time.Duration `koanf:"busy_timeout" yaml:"busy_timeout"`
	LogLevel    string        `koanf:"log_level" yaml:"log_level"`
}

// PostgresConfig configures the PostgreSQL backend.
type PostgresConfig struct {
	DSN            string        `koanf:"dsn" yaml:"dsn"`
	MaxConns       int32         `koanf:"max_conns" yaml:"max_conns"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" yaml:"connect_timeout"`
	Migrate        bool          `koanf:"migrate" yaml:"migrate"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr      string `koanf:"addr" yaml:"addr"`
	Username  string `koanf:"username" yaml:"username"`
	Password  string `koanf:"password" yaml:"password"`
	DB        int    `koanf:"db" yaml:"db"`
	KeyPrefix string `koanf:"key_prefix" yaml:"key_prefix"`
}

// LinkSection configures link issuing and expiry.
type LinkSection struct {
	// TTL is how long a link stays consumable.
	TTL time.Duration `koanf:"ttl" yaml:"ttl"`

	// SweepInterval is the period of the expired-link cleanup.
	SweepInterval time.Duration `koanf:"sweep_interval" yaml:"sweep_interval"`

	MaxInsertAttempts int `koanf:"max_insert_attempts" yaml:"max_insert_attempts"`

	// TokenBytes is the entropy per token before encoding.
	TokenBytes int `koanf:"token_bytes" yaml:"token_bytes"`

	// BotUsername is used to build t.me deep links.
	BotUsername string `koanf:"bot_username" yaml:"bot_username"`
}

// TelegramSection configures the Telegram bot adapter.
type TelegramSection struct {
	Enabled     bool          `koanf:"enabled" yaml:"enabled"`
	BotToken    string        `koanf:"bot_token" yaml:"bot_token"`
	APIURL      string        `koanf:"api_url" yaml:"api_url"`
	PollTimeout time.Duration `koanf:"poll_timeout" yaml:"poll_timeout"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}
