package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Config configures the HTTP server.
type Config struct {
	Addr         string
	TLSCertFile  string
	TLSKeyFile   string

	// TLSConfig takes precedence over the file pair, e.g. for certificates
	// reloaded from disk.
	TLSConfig *tls.Config

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	cfg        Config
	logger     *slog.Logger
}

// New creates a new HTTP server.
func New(cfg Config, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			TLSConfig:         cfg.TLSConfig,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		cfg:    cfg,
		logger: logger,
	}
}

// TLSEnabled reports whether the server serves HTTPS.
func (s *Server) TLSEnabled() bool {
	return s.cfg.TLSConfig != nil || (s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "")
}

// ListenAndServe listens on the configured address and serves until
// Shutdown. It returns nil after a graceful shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln, with TLS when configured.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http server listening", "addr", ln.Addr().String(), "tls", s.TLSEnabled())

	var err error
	switch {
	case s.cfg.TLSConfig != nil:
		err = s.httpServer.ServeTLS(ln, "", "")
	case s.TLSEnabled():
		err = s.httpServer.ServeTLS(ln, s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
	default:
		err = s.httpServer.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
