package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const (
	// FormatJSON writes slog JSON records (default, stderr).
	FormatJSON = "json"
	// FormatConsole writes egress diagnostics like {"debug":"..."} to stdout.
	FormatConsole = "console"
)

var (
	once   sync.Once
	logger *slog.Logger
)

// Setup initializes the global logger.
// logic: default to INFO. If level is invalid, fallback to INFO.
// A nil writer selects stderr for json and stdout for console.
func Setup(level, format string, w io.Writer) {
	once.Do(func() {
		opts := &slog.HandlerOptions{
			Level: ParseLevel(level),
		}

		var handler slog.Handler
		switch strings.ToLower(format) {
		case FormatConsole:
			if w == nil {
				w = os.Stdout
			}
			handler = NewConsoleHandler(w, opts)
		default:
			if w == nil {
				w = os.Stderr
			}
			handler = slog.NewJSONHandler(w, opts)
		}
		logger = slog.New(handler)
		slog.SetDefault(logger)
	})
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Get returns the configured logger, or a default one if Setup hasn't been called.
func Get() *slog.Logger {
	if logger == nil {
		Setup("INFO", FormatJSON, nil)
	}
	return logger
}

// WithComponent returns a logger with the component field set.
func WithComponent(name string) *slog.Logger {
	return Get().With(slog.String("component", name))
}

// WithSurface returns a logger with the surface_id field set.
func WithSurface(id string) *slog.Logger {
	return Get().With(slog.String("surface_id", id))
}

// Info logs at INFO level.
func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

// Warn logs at WARN level.
func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

// Error logs at ERROR level.
func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}
