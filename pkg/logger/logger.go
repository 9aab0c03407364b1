package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

// Options tunes the process logger. Zero values fall back to the
// environment defaults picked by Init.
type Options struct {
	Env    string
	Level  string
	Format string
	Output io.Writer
}

func Init(env string) {
	Configure(Options{Env: env})
}

// Configure builds the process logger and installs it as the slog default.
func Configure(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	level := slog.LevelDebug
	format := "text"
	if opts.Env == "production" {
		level = slog.LevelInfo
		format = "json"
	}
	if opts.Level != "" {
		level = parseLevel(opts.Level)
	}
	if opts.Format != "" {
		format = opts.Format
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	}

	defaultLogger = slog.New(handler).With("service", "receiptlens")
	slog.SetDefault(defaultLogger)
	return defaultLogger
}

func LoggerWrapper() *slog.Logger {
	if defaultLogger == nil {
		// lazy initialize a development logger to avoid nil pointer panics
		Init("development")
	}
	return defaultLogger
}

// Discard returns a logger that drops everything below error, for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
