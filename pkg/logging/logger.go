package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with application-specific functionality
type Logger struct {
	*slog.Logger
	closer io.Closer
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(level string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	handler := slog.NewJSONHandler(w, opts)
	return &Logger{Logger: slog.New(handler)}
}

// New creates a new logger with the specified level
func New(level string) *Logger {
	return newLogger(level, os.Stdout)
}

// NewWithFile creates a logger that writes every record to stdout and appends
// it to the file at path. If the file cannot be opened the logger falls back
// to stdout only and reports the problem once.
func NewWithFile(level, path string) *Logger {
	if path == "" {
		return New(level)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		logger := New(level)
		logger.Warn("log file unavailable, logging to stdout only", "path", path, "error", err)
		return logger
	}
	logger := newLogger(level, io.MultiWriter(os.Stdout, f))
	logger.closer = f
	return logger
}

// With returns a child logger carrying the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), closer: l.closer}
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Default returns a logger with default settings
func Default() *Logger {
	return New("info")
}
