package redisserver

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Config holds the RESP server configuration.
type Config struct {
	// Addr is the TCP listen address.
	Addr string

	// TLSConfig enables TLS on the listener when non-nil.
	TLSConfig *tls.Config

	// ReadTimeout bounds reading one command once its first byte arrived.
	ReadTimeout time.Duration

	// WriteTimeout bounds flushing one reply.
	WriteTimeout time.Duration

	// IdleTimeout closes connections that send nothing for this long.
	IdleTimeout time.Duration

	// CommandRate and CommandBurst limit commands per connection.
	// A zero rate disables limiting.
	CommandRate  float64
	CommandBurst int

	// AdminTokenHash is token.Hash of the admin token. Empty disables
	// admin commands.
	AdminTokenHash string

	// BotUsername is used by LINK.DEEPLINK.
	BotUsername string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:6380",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  5 * time.Minute,
		CommandRate:  1000,
		CommandBurst: 1000,
	}
}

// Server accepts RESP connections and dispatches their commands.
type Server struct {
	cfg     Config
	handler *CommandHandler
	logger  *slog.Logger

	mu      sync.Mutex
	ln      net.Listener
	conns   map[*Conn]struct{}
	closing atomic.Bool
	wg      sync.WaitGroup
}

// Conn is a single client connection.
type Conn struct {
	netConn net.Conn
	br      *bufio.Reader
	w       replyWriter
	limiter *rate.Limiter

	// admin is set by a successful AUTH.
	admin bool
	// quit is set by QUIT; the connection closes after the reply.
	quit bool
}

func newConn(c net.Conn, cfg Config) *Conn {
	conn := &Conn{
		netConn: c,
		br:      bufio.NewReader(c),
		w:       replyWriter{bufio.NewWriter(c)},
	}
	if cfg.CommandRate > 0 {
		conn.limiter = rate.NewLimiter(rate.Limit(cfg.CommandRate), max(cfg.CommandBurst, 1))
	}
	return conn
}

// New creates a RESP server over links.
func New(cfg Config, links LinkStore, logger *slog.Logger) *Server {
	def := DefaultConfig()
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		cfg:     cfg,
		handler: NewCommandHandler(links, cfg.AdminTokenHash, cfg.BotUsername, logger),
		logger:  logger,
		conns:   make(map[*Conn]struct{}),
	}
}

// ListenAndServe listens on cfg.Addr and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. It returns nil once Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	if s.cfg.TLSConfig != nil {
		ln = tls.NewListener(ln, s.cfg.TLSConfig)
	}

	s.mu.Lock()
	if s.closing.Load() {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("resp server listening", "addr", ln.Addr().String(), "tls", s.cfg.TLSConfig != nil)

	for {
		nc, err := ln.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		c := newConn(nc, s.cfg)
		s.mu.Lock()
		if s.closing.Load() {
			s.mu.Unlock()
			nc.Close()
			return nil
		}
		s.conns[c] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.wg.Done()
			s.serveConn(c)
		}()
	}
}

// Addr returns the listening address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown stops accepting, waits for in-flight commands and closes every
// connection. Idle connections are closed right away.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closing.Store(true)

	s.mu.Lock()
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	// Unblock readers waiting for the next command.
	for c := range s.conns {
		_ = c.netConn.SetReadDeadline(time.Now())
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.mu.Lock()
		for c := range s.conns {
			c.netConn.Close()
		}
		s.mu.Unlock()
		return ctx.Err()
	}

	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

func (s *Server) serveConn(c *Conn) {
	defer func() {
		c.netConn.Close()
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
	}()

	remote := c.netConn.RemoteAddr().String()
	for {
		// Idle clients may wait long between commands; a started command
		// must arrive within ReadTimeout. The closing check follows the
		// deadline so it cannot undo the one Shutdown set.
		_ = c.netConn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		if s.closing.Load() {
			return
		}
		if _, err := c.br.Peek(1); err != nil {
			s.logDisconnect(remote, err)
			return
		}
		_ = c.netConn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

		args, err := ReadCommand(c.br)
		if err != nil {
			if errors.Is(err, ErrProtocol) || errors.Is(err, ErrLimitExceeded) {
				s.logger.Warn("resp protocol violation", "remote", remote, "error", err)
				c.w.err("ERR " + err.Error())
				s.flush(c)
			} else {
				s.logDisconnect(remote, err)
			}
			return
		}
		if len(args) == 0 {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ReadTimeout)
		s.handler.Handle(ctx, c, args)
		cancel()

		if !s.flush(c) || c.quit {
			return
		}
	}
}

func (s *Server) flush(c *Conn) bool {
	_ = c.netConn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return c.w.Flush() == nil
}

func (s *Server) logDisconnect(remote string, err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF), s.closing.Load():
	case errors.As(err, &netErr) && netErr.Timeout():
		s.logger.Debug("resp connection idle timeout", "remote", remote)
	default:
		s.logger.Debug("resp connection read error", "remote", remote, "error", err)
	}
}
