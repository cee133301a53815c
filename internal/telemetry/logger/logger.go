package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Logger is the application logger interface.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithContext(ctx context.Context) Logger
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string
	// Format is json or text ("console" is accepted as text).
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
	// AddSource records the calling file and line.
	AddSource bool
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Output: os.Stderr,
	}
}

// level is shared by every handler New builds, so SetLevel reaches loggers
// that were already handed out to components.
var level = new(slog.LevelVar)

// New builds a logger writing cfg.Format records to cfg.Output. Sensitive
// attributes are masked and request-scoped attributes stored with
// WithRequestID or AppendAttrs are added from the record's context.
func New(cfg Config) (Logger, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return redactSensitive(a)
		},
	}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		h = slog.NewJSONHandler(out, opts)
	case "text", "console":
		h = slog.NewTextHandler(out, opts)
	default:
		return nil, fmt.Errorf("logger: unknown format %q", cfg.Format)
	}

	level.Set(parseLevel(cfg.Level))
	return &slogLogger{sl: slog.New(contextHandler{h}), ctx: context.Background()}, nil
}

// SetLevel changes the level of every logger built by New.
func SetLevel(name string) {
	level.Set(parseLevel(name))
}

// GetLevel returns the current level name.
func GetLevel() string {
	return strings.ToLower(level.Level().String())
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type slogLogger struct {
	sl  *slog.Logger
	ctx context.Context
}

func (l *slogLogger) Debug(msg string, args ...any) { l.sl.DebugContext(l.ctx, msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.sl.InfoContext(l.ctx, msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.sl.WarnContext(l.ctx, msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.sl.ErrorContext(l.ctx, msg, args...) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{sl: l.sl.With(args...), ctx: l.ctx}
}

// WithContext binds ctx so its request ID and attributes reach every record.
func (l *slogLogger) WithContext(ctx context.Context) Logger {
	return &slogLogger{sl: l.sl, ctx: ctx}
}

// Slog returns the *slog.Logger behind l. Storage drivers, servers and the
// bot take a *slog.Logger; foreign Logger implementations get slog.Default().
func Slog(l Logger) *slog.Logger {
	if sl, ok := l.(*slogLogger); ok {
		return sl.sl
	}
	return slog.Default()
}

var defaultLogger atomic.Pointer[slogLogger]

func init() {
	l, _ := New(DefaultConfig())
	defaultLogger.Store(l.(*slogLogger))
}

// SetDefault replaces the process logger and installs its handler as the
// slog default, so libraries logging through slog are redacted as well.
func SetDefault(l Logger) {
	if sl, ok := l.(*slogLogger); ok {
		defaultLogger.Store(sl)
		slog.SetDefault(sl.sl)
	}
}

// Default returns the process logger.
func Default() Logger {
	return defaultLogger.Load()
}
