// Package logging configures structured logging with log/slog.
//
// Usage:
//
//	logging.Setup("info", "text")   // colored output through tint
//	logging.Setup("debug", "json")  // JSON lines on stdout
//
// Request-scoped loggers travel in the context:
//
//	ctx = logging.WithLogger(ctx, logger.With("procedure", p))
//	logging.FromContext(ctx).Info("...")
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Output formats accepted by Setup and New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

type ctxKey struct{}

// Setup installs the default logger. JSON goes to stdout, colored text to
// stderr.
func Setup(level, format string) *slog.Logger {
	var logger *slog.Logger
	if strings.EqualFold(format, FormatJSON) {
		logger = New(os.Stdout, ParseLevel(level), FormatJSON)
	} else {
		logger = New(os.Stderr, ParseLevel(level), FormatText)
	}
	slog.SetDefault(logger)
	return logger
}

// New builds a logger writing to w.
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	if strings.EqualFold(format, FormatJSON) {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
		NoColor:    !isTerminal(w),
	}))
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything else
// is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// WithLogger returns a copy of ctx carrying l.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
