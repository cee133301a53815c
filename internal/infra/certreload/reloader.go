package certreload

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events a single renewal produces.
const DefaultDebounce = 500 * time.Millisecond

// Reloader serves the most recently loaded certificate.
type Reloader struct {
	certFile string
	keyFile  string
	debounce time.Duration
	logger   *slog.Logger

	mu   sync.RWMutex
	cert *tls.Certificate

	// onReload is called after every reload attempt. Tests use it.
	onReload func(error)
}

// Option configures a Reloader.
type Option func(*Reloader)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reloader) {
		r.logger = logger
	}
}

// WithDebounce sets how long to wait after the last file event before
// reloading.
func WithDebounce(d time.Duration) Option {
	return func(r *Reloader) {
		r.debounce = d
	}
}

// New loads certFile and keyFile and returns a Reloader serving them.
func New(certFile, keyFile string, opts ...Option) (*Reloader, error) {
	r := &Reloader{
		certFile: certFile,
		keyFile:  keyFile,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// GetCertificate implements tls.Config.GetCertificate.
func (r *Reloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert, nil
}

// TLSConfig returns a server TLS config backed by the Reloader.
func (r *Reloader) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: r.GetCertificate,
	}
}

// Run watches the certificate directories until ctx is cancelled.
// Directories are watched rather than files so atomic replace-by-rename
// is seen.
func (r *Reloader) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("certreload: create watcher: %w", err)
	}
	defer w.Close()

	dirs := map[string]struct{}{
		filepath.Dir(r.certFile): {},
		filepath.Dir(r.keyFile):  {},
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("certreload: watch %s: %w", dir, err)
		}
	}

	names := map[string]struct{}{
		filepath.Clean(r.certFile): {},
		filepath.Clean(r.keyFile):  {},
	}

	timer := time.NewTimer(r.debounce)
	timer.Stop()
	defer timer.Stop()

	r.logger.Info("watching certificate", "cert_file", r.certFile, "key_file", r.keyFile)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if _, ours := names[filepath.Clean(ev.Name)]; !ours {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			timer.Reset(r.debounce)

		case <-timer.C:
			err := r.load()
			if err != nil {
				r.logger.Error("certificate reload failed, keeping previous", "cert_file", r.certFile, "error", err)
			} else {
				r.logger.Info("certificate reloaded", "cert_file", r.certFile)
			}
			if r.onReload != nil {
				r.onReload(err)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				timer.Reset(r.debounce)
				continue
			}
			r.logger.Warn("certificate watcher error", "error", err)
		}
	}
}

func (r *Reloader) load() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("certreload: load key pair: %w", err)
	}

	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()
	return nil
}
