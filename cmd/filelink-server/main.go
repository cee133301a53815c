package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/yndnr/filelink-go/internal/bot"
	"github.com/yndnr/filelink-go/internal/core/service"
	"github.com/yndnr/filelink-go/internal/infra/buildinfo"
	"github.com/yndnr/filelink-go/internal/infra/certreload"
	"github.com/yndnr/filelink-go/internal/infra/confloader"
	"github.com/yndnr/filelink-go/internal/infra/shutdown"
	"github.com/yndnr/filelink-go/internal/server/config"
	"github.com/yndnr/filelink-go/internal/server/httpserver"
	"github.com/yndnr/filelink-go/internal/server/redisserver"
	"github.com/yndnr/filelink-go/internal/storage"
	"github.com/yndnr/filelink-go/internal/storage/postgres"
	"github.com/yndnr/filelink-go/internal/storage/redis"
	"github.com/yndnr/filelink-go/internal/storage/sqlite"
	"github.com/yndnr/filelink-go/internal/telemetry/logger"
	"github.com/yndnr/filelink-go/internal/telemetry/metric"
	"github.com/yndnr/filelink-go/pkg/token"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("filelink-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, slogLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	info := buildinfo.Get()
	log.Info("starting filelink-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownHandler := shutdown.NewHandler(cfg.Server.HTTP.ShutdownTimeout, slogLogger)
	metrics := metric.NewRegistry()

	backend, err := storage.Open(ctx, storageOptions(cfg, slogLogger, metrics))
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	// Hooks run in reverse, so storage closes last.
	shutdownHandler.OnShutdown("storage", func(context.Context) error {
		return backend.Close()
	})

	links := service.NewLinkService(backend, service.LinkConfig{
		TTL:               cfg.Link.TTL,
		MaxInsertAttempts: cfg.Link.MaxInsertAttempts,
		Generate:          token.NewGenerator(cfg.Link.TokenBytes),
	}, service.WithLogger(slogLogger), service.WithMetrics(metrics))

	sweeper := service.NewSweeper(links, cfg.Link.SweepInterval, slogLogger)
	sweeper.Start()
	shutdownHandler.OnShutdown("sweeper", func(context.Context) error {
		sweeper.Stop()
		return nil
	})

	trustedProxies, err := httpserver.ParseTrustedProxies(cfg.Server.HTTP.TrustedProxies)
	if err != nil {
		return fmt.Errorf("parse trusted proxies: %w", err)
	}
	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Links:          links,
		Pinger:         backend,
		Metrics:        metrics,
		Logger:         slogLogger,
		AdminToken:     cfg.Server.HTTP.AdminToken,
		BotUsername:    cfg.Link.BotUsername,
		Version:        info.Version,
		RateLimitRPS:   rateLimitRPS(cfg),
		RateLimitBurst: cfg.Server.HTTP.RateLimit.Burst,
		TrustedProxies: trustedProxies,
		EnableAudit:    true,
	})
	httpTLS, err := watchedTLS(ctx, "http", cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile, slogLogger, shutdownHandler)
	if err != nil {
		return fmt.Errorf("init http tls: %w", err)
	}
	httpServer := httpserver.New(httpserver.Config{
		Addr:         cfg.Server.HTTP.Addr,
		TLSConfig:    httpTLS,
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
	}, router, slogLogger)
	shutdownHandler.OnShutdown("http", httpServer.Shutdown)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil {
			log.Error("HTTP server error", "error", err)
			shutdownHandler.Trigger()
		}
	}()

	if cfg.Server.RESP.Enabled {
		if err := startRESP(ctx, cfg, links, slogLogger, shutdownHandler); err != nil {
			return fmt.Errorf("init resp server: %w", err)
		}
	}

	if cfg.Telegram.Enabled {
		if err := startBot(ctx, cfg, links, slogLogger, shutdownHandler); err != nil {
			return fmt.Errorf("init telegram bot: %w", err)
		}
	} else {
		log.Info("telegram bot disabled")
	}

	if *configFile != "" {
		if err := watchConfig(*configFile, slogLogger, shutdownHandler); err != nil {
			log.Warn("config hot reload unavailable", "error", err)
		}
	}

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(context.Background()); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger initializes the structured logger.
// Returns both the logger interface and slog.Logger for components that need it.
func initLogger(cfg *config.ServerConfig) (logger.Logger, *slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.SetDefault(log)

	return log, logger.Slog(log), nil
}

func storageOptions(cfg *config.ServerConfig, log *slog.Logger, metrics *metric.Registry) storage.Options {
	s := cfg.Storage

	badger := storage.DefaultBadgerConfig("")
	badger.GCInterval = s.Badger.GCInterval
	badger.GCThreshold = s.Badger.GCThreshold
	badger.CacheSize = s.Badger.CacheSizeMB << 20
	badger.SyncWrites = s.Badger.SyncWrites

	return storage.Options{
		Backend:      s.Backend,
		DataDir:      s.DataDir,
		MemoryShards: s.Memory.Shards,
		Badger:       badger,
		SQLite: sqlite.Config{
			Path:        s.SQLite.Path,
			BusyTimeout: s.SQLite.BusyTimeout,
			LogLevel:    s.SQLite.LogLevel,
		},
		Postgres: postgres.Config{
			DSN:            s.Postgres.DSN,
			MaxConns:       s.Postgres.MaxConns,
			ConnectTimeout: s.Postgres.ConnectTimeout,
			Migrate:        s.Postgres.Migrate,
		},
		Redis: redis.Config{
			Addr:      s.Redis.Addr,
			Username:  s.Redis.Username,
			Password:  s.Redis.Password,
			DB:        s.Redis.DB,
			KeyPrefix: s.Redis.KeyPrefix,
		},
		Logger:     log,
		Registerer: metrics.Prometheus(),
	}
}

func rateLimitRPS(cfg *config.ServerConfig) float64 {
	if !cfg.Server.HTTP.RateLimit.Enabled {
		return 0
	}
	return cfg.Server.HTTP.RateLimit.RPS
}

// watchedTLS returns a TLS config whose certificate follows certFile and
// keyFile on disk, or nil when TLS is not configured.
func watchedTLS(ctx context.Context, name, certFile, keyFile string, log *slog.Logger, sh *shutdown.Handler) (*tls.Config, error) {
	if certFile == "" || keyFile == "" {
		return nil, nil
	}

	reloader, err := certreload.New(certFile, keyFile, certreload.WithLogger(log.With("listener", name)))
	if err != nil {
		return nil, err
	}

	watchCtx, stop := context.WithCancel(ctx)
	go func() {
		if err := reloader.Run(watchCtx); err != nil {
			log.Warn("certificate hot reload unavailable", "listener", name, "error", err)
		}
	}()
	sh.OnShutdown(name+"-cert-watcher", func(context.Context) error {
		stop()
		return nil
	})
	return reloader.TLSConfig(), nil
}

// startRESP starts the Redis-protocol listener.
func startRESP(ctx context.Context, cfg *config.ServerConfig, links *service.LinkService, log *slog.Logger, sh *shutdown.Handler) error {
	rc := cfg.Server.RESP

	tlsCfg, err := watchedTLS(ctx, "resp", rc.TLSCertFile, rc.TLSKeyFile, log, sh)
	if err != nil {
		return err
	}

	var adminHash string
	if cfg.Server.HTTP.AdminToken != "" {
		adminHash = token.Hash(cfg.Server.HTTP.AdminToken)
	}

	respCfg := redisserver.Config{
		Addr:           rc.Addr,
		TLSConfig:      tlsCfg,
		ReadTimeout:    rc.ReadTimeout,
		WriteTimeout:   rc.WriteTimeout,
		IdleTimeout:    rc.IdleTimeout,
		AdminTokenHash: adminHash,
		BotUsername:    cfg.Link.BotUsername,
	}
	if rc.RateLimit.Enabled {
		respCfg.CommandRate = rc.RateLimit.RPS
		respCfg.CommandBurst = rc.RateLimit.Burst
	}

	srv := redisserver.New(respCfg, links, log.With("component", "resp"))
	sh.OnShutdown("resp", srv.Shutdown)

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Error("RESP server error", "error", err)
			sh.Trigger()
		}
	}()
	return nil
}

// startBot starts the Telegram poller. The bot username for deep links
// comes from getMe unless link.bot_username is set explicitly.
func startBot(ctx context.Context, cfg *config.ServerConfig, links *service.LinkService, log *slog.Logger, sh *shutdown.Handler) error {
	client, err := bot.NewClient(bot.ClientConfig{
		Token:       cfg.Telegram.BotToken,
		APIURL:      cfg.Telegram.APIURL,
		PollTimeout: cfg.Telegram.PollTimeout,
	})
	if err != nil {
		return err
	}

	username := cfg.Link.BotUsername
	meCtx, meCancel := context.WithTimeout(ctx, 10*time.Second)
	me, err := client.GetMe(meCtx)
	meCancel()
	switch {
	case err != nil:
		log.Warn("getMe failed, using configured bot username", "error", err, "username", username)
	case username != me.Username && username != config.Default().Link.BotUsername:
		log.Warn("configured bot username differs from the bot's own", "configured", username, "actual", me.Username)
	default:
		username = me.Username
	}

	dispatcher := bot.NewDispatcher(client, links, username, cfg.Link.TTL, log.With("component", "bot"))
	poller := bot.NewPoller(client, dispatcher, log.With("component", "bot"))

	pollCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := poller.Run(pollCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("telegram poller stopped", "error", err)
		}
	}()
	sh.OnShutdown("telegram", func(ctx context.Context) error {
		stop()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	log.Info("telegram bot started", "username", username)
	return nil
}

// watchConfig reloads log.level whenever the config file changes.
func watchConfig(path string, log *slog.Logger, sh *shutdown.Handler) error {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return err
	}

	w.OnChange(func(string) {
		cfg, err := loadConfig(path)
		if err != nil {
			log.Warn("ignoring invalid configuration change", "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	w.StartAsync()

	sh.OnShutdown("config-watcher", func(context.Context) error {
		return w.Stop()
	})
	return nil
}
