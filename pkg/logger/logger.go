package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

var (
	// Default is the default logger instance
	Default *slog.Logger
)

func init() {
	// Initialize with info level by default
	Default = New("info", os.Stdout)
}

// ParseLevel maps a configured level name to a slog level. Unknown names
// fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a new structured logger with the specified level and output
func New(level string, output io.Writer) *slog.Logger {
	return slog.New(newHandler("json", level, output))
}

// NewFanout creates a logger that writes every record to all outputs.
// The first output uses the requested format; the others always get JSON so
// that sweep log files stay machine readable.
func NewFanout(format, level string, outputs ...io.Writer) *slog.Logger {
	if len(outputs) == 0 {
		return New(level, os.Stdout)
	}
	if len(outputs) == 1 {
		return slog.New(newHandler(format, level, outputs[0]))
	}

	handlers := make([]slog.Handler, 0, len(outputs))
	handlers = append(handlers, newHandler(format, level, outputs[0]))
	for _, out := range outputs[1:] {
		handlers = append(handlers, newHandler("json", level, out))
	}
	return slog.New(slogmulti.Fanout(handlers...))
}

func newHandler(format, level string, output io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.ToLower(format) == "text" {
		return slog.NewTextHandler(output, opts)
	}
	return slog.NewJSONHandler(output, opts)
}

// SetDefault sets the default logger
func SetDefault(logger *slog.Logger) {
	Default = logger
	slog.SetDefault(logger)
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Default.Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	Default.Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Default.Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	Default.Error(msg, args...)
}

// With returns a logger with additional attributes
func With(args ...any) *slog.Logger {
	return Default.With(args...)
}
