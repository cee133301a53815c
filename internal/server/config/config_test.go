package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/filelink-go/internal/core/domain"
	"github.com/yndnr/filelink-go/internal/infra/confloader"
	"github.com/yndnr/filelink-go/pkg/token"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.HTTP.Addr != DefaultHTTPAddr {
		t.Errorf("HTTP.Addr = %q, want %q", cfg.Server.HTTP.Addr, DefaultHTTPAddr)
	}
	if cfg.Storage.Backend != DefaultBackend {
		t.Errorf("Backend = %q, want %q", cfg.Storage.Backend, DefaultBackend)
	}
	if cfg.Link.TTL != 7*24*time.Hour {
		t.Errorf("Link.TTL = %v, want 7 days", cfg.Link.TTL)
	}
	if cfg.Link.SweepInterval != time.Hour {
		t.Errorf("Link.SweepInterval = %v, want 1h", cfg.Link.SweepInterval)
	}
	if cfg.Link.BotUsername != domain.DefaultBotUsername {
		t.Errorf("Link.BotUsername = %q", cfg.Link.BotUsername)
	}
	if cfg.Telegram.Enabled {
		t.Error("Telegram should be disabled by default")
	}
	if cfg.Log.Level != DefaultLogLevel || cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log = %+v", cfg.Log)
	}

	if err := Verify(cfg); err != nil {
		t.Errorf("Verify(Default()) error = %v", err)
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{"bad addr", func(c *ServerConfig) { c.Server.HTTP.Addr = "nope" }, "server.http.addr"},
		{"half tls", func(c *ServerConfig) { c.Server.HTTP.TLSCertFile = "cert.pem" }, "set together"},
		{"rate limit", func(c *ServerConfig) { c.Server.HTTP.RateLimit.RPS = 0 }, "rate_limit"},
		{"resp bad addr", func(c *ServerConfig) {
			c.Server.RESP.Enabled = true
			c.Server.RESP.Addr = "6380"
		}, "server.resp.addr"},
		{"resp rate limit", func(c *ServerConfig) {
			c.Server.RESP.Enabled = true
			c.Server.RESP.RateLimit.Burst = 0
		}, "server.resp.rate_limit"},
		{"trusted proxies", func(c *ServerConfig) {
			c.Server.HTTP.TrustedProxies = []string{"10.0.0.0/8", "lb.internal"}
		}, "server.http.trusted_proxies"},
		{"memory shards", func(c *ServerConfig) {
			c.Storage.Backend = "memory"
			c.Storage.Memory.Shards = 12
		}, "storage.memory.shards"},
		{"unknown backend", func(c *ServerConfig) { c.Storage.Backend = "mongo" }, "storage.backend"},
		{"badger without dir", func(c *ServerConfig) { c.Storage.DataDir = "" }, "data_dir"},
		{"badger gc ratio", func(c *ServerConfig) { c.Storage.Badger.GCThreshold = 1.5 }, "gc_threshold"},
		{"postgres without dsn", func(c *ServerConfig) { c.Storage.Backend = "postgres" }, "postgres.dsn"},
		{"redis without addr", func(c *ServerConfig) { c.Storage.Backend = "redis" }, "redis.addr"},
		{"sqlite without path", func(c *ServerConfig) {
			c.Storage.Backend = "sqlite"
			c.Storage.DataDir = ""
		}, "sqlite.path"},
		{"zero ttl", func(c *ServerConfig) { c.Link.TTL = 0 }, "link.ttl"},
		{"zero sweep", func(c *ServerConfig) { c.Link.SweepInterval = 0 }, "sweep_interval"},
		{"zero attempts", func(c *ServerConfig) { c.Link.MaxInsertAttempts = 0 }, "max_insert_attempts"},
		{"short tokens", func(c *ServerConfig) { c.Link.TokenBytes = 4 }, "token_bytes"},
		{"long tokens", func(c *ServerConfig) { c.Link.TokenBytes = 200 }, "token_bytes"},
		{"telegram without token", func(c *ServerConfig) { c.Telegram.Enabled = true }, "bot_token"},
		{"telegram bad url", func(c *ServerConfig) {
			c.Telegram.Enabled = true
			c.Telegram.BotToken = "123:abc"
			c.Telegram.APIURL = "not a url"
		}, "api_url"},
		{"log level", func(c *ServerConfig) { c.Log.Level = "verbose" }, "log.level"},
		{"log format", func(c *ServerConfig) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Verify(cfg)
			if err == nil {
				t.Fatal("Verify() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Verify() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestVerify_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Link.TTL = 0
	cfg.Log.Level = "loud"

	err := Verify(cfg)
	if err == nil || !strings.Contains(err.Error(), "link.ttl") || !strings.Contains(err.Error(), "log.level") {
		t.Errorf("Verify() error = %v, want both problems", err)
	}
}

func TestVerify_BackendsAccepted(t *testing.T) {
	for _, backend := range []string{"memory", "badger", "sqlite"} {
		cfg := Default()
		cfg.Storage.Backend = backend
		if err := Verify(cfg); err != nil {
			t.Errorf("backend %s: %v", backend, err)
		}
	}

	cfg := Default()
	cfg.Storage.Backend = "postgres"
	cfg.Storage.Postgres.DSN = "postgres://filelink:pw@db:5432/filelink"
	if err := Verify(cfg); err != nil {
		t.Errorf("postgres: %v", err)
	}

	cfg = Default()
	cfg.Storage.Backend = "redis"
	cfg.Storage.Redis.Addr = "localhost:6379"
	if err := Verify(cfg); err != nil {
		t.Errorf("redis: %v", err)
	}
}

func TestVerify_TokenBytesRange(t *testing.T) {
	for _, n := range []int{token.MinLength, token.DefaultLength, token.MaxLength} {
		cfg := Default()
		cfg.Link.TokenBytes = n
		if err := Verify(cfg); err != nil {
			t.Errorf("token_bytes %d: %v", n, err)
		}

		tok, err := token.GenerateWithLength(n)
		if err != nil {
			t.Fatalf("GenerateWithLength(%d): %v", n, err)
		}
		if !token.IsWellFormed(tok) {
			t.Errorf("token_bytes %d yields a token consume would reject", n)
		}
	}
}

func TestSanitize(t *testing.T) {
	cfg := Default()
	cfg.Server.HTTP.AdminToken = "admin-token-1234567890"
	cfg.Telegram.BotToken = "123456:ABCdefGHIjklMNOpqr"
	cfg.Storage.Redis.Password = "short"
	cfg.Storage.Postgres.DSN = "postgres://filelink:hunter2@db:5432/filelink"

	sanitized := Sanitize(cfg)

	if cfg.Server.HTTP.AdminToken != "admin-token-1234567890" {
		t.Error("Sanitize modified the original")
	}
	if strings.Contains(sanitized.Server.HTTP.AdminToken, "token-12345") {
		t.Errorf("admin token not masked: %q", sanitized.Server.HTTP.AdminToken)
	}
	if strings.Contains(sanitized.Telegram.BotToken, "ABCdef") {
		t.Errorf("bot token not masked: %q", sanitized.Telegram.BotToken)
	}
	if sanitized.Storage.Redis.Password != "****" {
		t.Errorf("redis password = %q", sanitized.Storage.Redis.Password)
	}
	if strings.Contains(sanitized.Storage.Postgres.DSN, "hunter2") {
		t.Errorf("dsn password leaked: %q", sanitized.Storage.Postgres.DSN)
	}
	if Sanitize(Default()).Server.HTTP.AdminToken != "" {
		t.Error("empty secret should stay empty")
	}
}

func TestLoad_FromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filelink.yaml")
	content := `
storage:
  backend: sqlite
  data_dir: /tmp/filelink
link:
  ttl: 72h
telegram:
  enabled: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FILELINK_TELEGRAM_BOT_TOKEN", "42:secret")
	t.Setenv("FILELINK_LINK_BOT_USERNAME", "mybot")

	cfg := Default()
	if err := confloader.NewLoader(confloader.WithConfigFile(path)).Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.Backend != "sqlite" || cfg.Storage.DataDir != "/tmp/filelink" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Link.TTL != 72*time.Hour {
		t.Errorf("ttl = %v", cfg.Link.TTL)
	}
	if cfg.Telegram.BotToken != "42:secret" || cfg.Link.BotUsername != "mybot" {
		t.Errorf("env not applied: telegram=%+v link=%+v", cfg.Telegram, cfg.Link)
	}
	// Defaults survive for keys the file does not mention.
	if cfg.Storage.Badger.GCThreshold != DefaultBadgerGCRatio {
		t.Errorf("gc_threshold = %v", cfg.Storage.Badger.GCThreshold)
	}
	if err := Verify(cfg); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}
