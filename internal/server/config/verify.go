package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/yndnr/filelink-go/internal/server/httpserver"
	"github.com/yndnr/filelink-go/internal/storage"
	"github.com/yndnr/filelink-go/pkg/token"
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"json", "text"}
)

// Verify validates the configuration and reports every problem found.
func Verify(cfg *ServerConfig) error {
	return errors.Join(
		verifyHTTP(&cfg.Server.HTTP),
		verifyRESP(&cfg.Server.RESP),
		verifyStorage(&cfg.Storage),
		verifyLink(&cfg.Link),
		verifyTelegram(&cfg.Telegram),
		verifyLog(&cfg.Log),
	)
}

func verifyHTTP(cfg *HTTPConfig) error {
	var errs []error
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		errs = append(errs, fmt.Errorf("server.http.addr %q: %w", cfg.Addr, err))
	}
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		errs = append(errs, errors.New("server.http.tls_cert_file and tls_key_file must be set together"))
	}
	for _, f := range []string{cfg.TLSCertFile, cfg.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			errs = append(errs, fmt.Errorf("server.http tls file: %w", err))
		}
	}
	if _, err := httpserver.ParseTrustedProxies(cfg.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("server.http.trusted_proxies: %w", err))
	}
	if cfg.RateLimit.Enabled && (cfg.RateLimit.RPS <= 0 || cfg.RateLimit.Burst < 1) {
		errs = append(errs, errors.New("server.http.rate_limit needs rps > 0 and burst >= 1 when enabled"))
	}
	return errors.Join(errs...)
}

func verifyRESP(cfg *RESPConfig) error {
	if !cfg.Enabled {
		return nil
	}
	var errs []error
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		errs = append(errs, fmt.Errorf("server.resp.addr %q: %w", cfg.Addr, err))
	}
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		errs = append(errs, errors.New("server.resp.tls_cert_file and tls_key_file must be set together"))
	}
	if cfg.RateLimit.Enabled && (cfg.RateLimit.RPS <= 0 || cfg.RateLimit.Burst < 1) {
		errs = append(errs, errors.New("server.resp.rate_limit needs rps > 0 and burst >= 1 when enabled"))
	}
	return errors.Join(errs...)
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Backend {
	case storage.BackendMemory:
		if n := cfg.Memory.Shards; n <= 0 || n&(n-1) != 0 {
			return fmt.Errorf("storage.memory.shards %d must be a positive power of two", n)
		}
		return nil
	case storage.BackendBadger:
		if cfg.DataDir == "" {
			return errors.New("storage.data_dir is required for the badger backend")
		}
		if cfg.Badger.GCThreshold <= 0 || cfg.Badger.GCThreshold >= 1 {
			return errors.New("storage.badger.gc_threshold must be in (0, 1)")
		}
		return nil
	case storage.BackendSQLite:
		if cfg.DataDir == "" && cfg.SQLite.Path == "" {
			return errors.New("storage.sqlite.path or storage.data_dir is required for the sqlite backend")
		}
		return nil
	case storage.BackendPostgres:
		if cfg.Postgres.DSN == "" {
			return errors.New("storage.postgres.dsn is required for the postgres backend")
		}
		if _, err := url.Parse(cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("storage.postgres.dsn: %w", err)
		}
		return nil
	case storage.BackendRedis:
		if cfg.Redis.Addr == "" {
			return errors.New("storage.redis.addr is required for the redis backend")
		}
		return nil
	default:
		return fmt.Errorf("storage.backend %q is not one of %s", cfg.Backend, strings.Join(storage.Backends, ", "))
	}
}

func verifyLink(cfg *LinkSection) error {
	var errs []error
	if cfg.TTL <= 0 {
		errs = append(errs, errors.New("link.ttl must be positive"))
	}
	if cfg.SweepInterval <= 0 {
		errs = append(errs, errors.New("link.sweep_interval must be positive"))
	}
	if cfg.MaxInsertAttempts < 1 {
		errs = append(errs, errors.New("link.max_insert_attempts must be at least 1"))
	}
	if cfg.TokenBytes < token.MinLength || cfg.TokenBytes > token.MaxLength {
		errs = append(errs, fmt.Errorf("link.token_bytes must be between %d and %d", token.MinLength, token.MaxLength))
	}
	return errors.Join(errs...)
}

func verifyTelegram(cfg *TelegramSection) error {
	if !cfg.Enabled {
		return nil
	}
	var errs []error
	if cfg.BotToken == "" {
		errs = append(errs, errors.New("telegram.bot_token is required when telegram.enabled"))
	}
	if u, err := url.Parse(cfg.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("telegram.api_url %q is not an absolute URL", cfg.APIURL))
	}
	if cfg.PollTimeout < 0 {
		errs = append(errs, errors.New("telegram.poll_timeout must not be negative"))
	}
	return errors.Join(errs...)
}

func verifyLog(cfg *LogSection) error {
	var errs []error
	if !slices.Contains(validLogLevels, strings.ToLower(cfg.Level)) {
		errs = append(errs, fmt.Errorf("log.level %q is not one of %v", cfg.Level, validLogLevels))
	}
	if !slices.Contains(validLogFormats, strings.ToLower(cfg.Format)) {
		errs = append(errs, fmt.Errorf("log.format %q is not one of %v", cfg.Format, validLogFormats))
	}
	return errors.Join(errs...)
}
