package config

import (
	"time"

	"github.com/yndnr/filelink-go/internal/core/domain"
	"github.com/yndnr/filelink-go/internal/core/service"
	"github.com/yndnr/filelink-go/pkg/token"
)

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:5080"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultRateLimitRPS    = 20
	DefaultRateLimitBurst  = 40

	DefaultRESPAddr        = "127.0.0.1:6380"
	DefaultRESPIdleTimeout = 5 * time.Minute
	DefaultRESPCommandRate = 1000

	DefaultBackend         = "badger"
	DefaultDataDir         = "/var/lib/filelink-server/data"
	DefaultMemoryShards    = 32
	DefaultBadgerGCEvery   = 10 * time.Minute
	DefaultBadgerGCRatio   = 0.5
	DefaultBadgerCacheMB   = 64
	DefaultSQLiteBusy      = 5 * time.Second
	DefaultPostgresConns   = 10
	DefaultPostgresTimeout = 5 * time.Second
	DefaultRedisKeyPrefix  = "filelink:"

	DefaultTelegramAPIURL = "https://api.telegram.org"
	DefaultPollTimeout    = 30 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:            DefaultHTTPAddr,
				ReadTimeout:     DefaultReadTimeout,
				WriteTimeout:    DefaultWriteTimeout,
				ShutdownTimeout: DefaultShutdownTimeout,
				RateLimit: RateLimitConfig{
					Enabled: true,
					RPS:     DefaultRateLimitRPS,
					Burst:   DefaultRateLimitBurst,
				},
			},
			RESP: RESPConfig{
				Addr:         DefaultRESPAddr,
				ReadTimeout:  DefaultReadTimeout,
				WriteTimeout: DefaultWriteTimeout,
				IdleTimeout:  DefaultRESPIdleTimeout,
				RateLimit: RateLimitConfig{
					Enabled: true,
					RPS:     DefaultRESPCommandRate,
					Burst:   DefaultRESPCommandRate,
				},
			},
		},
		Storage: StorageSection{
			Backend: DefaultBackend,
			DataDir: DefaultDataDir,
			Memory:  MemoryConfig{Shards: DefaultMemoryShards},
			Badger: BadgerConfig{
				GCInterval:  DefaultBadgerGCEvery,
				GCThreshold: DefaultBadgerGCRatio,
				CacheSizeMB: DefaultBadgerCacheMB,
				SyncWrites:  true,
			},
			SQLite: SQLiteConfig{
				BusyTimeout: DefaultSQLiteBusy,
				LogLevel:    "warn",
			},
			Postgres: PostgresConfig{
				MaxConns:       DefaultPostgresConns,
				ConnectTimeout: DefaultPostgresTimeout,
				Migrate:        true,
			},
			Redis: RedisConfig{
				KeyPrefix: DefaultRedisKeyPrefix,
			},
		},
		Link: LinkSection{
			TTL:               domain.DefaultTTL,
			SweepInterval:     service.DefaultSweepInterval,
			MaxInsertAttempts: service.DefaultMaxInsertAttempts,
			TokenBytes:        token.DefaultLength,
			BotUsername:       domain.DefaultBotUsername,
		},
		Telegram: TelegramSection{
			APIURL:      DefaultTelegramAPIURL,
			PollTimeout: DefaultPollTimeout,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
