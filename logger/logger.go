package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Options selects where and how the client logs. The terminal belongs to the
// UI, so an empty File discards every record.
type Options struct {
	Level  string
	File   string
	Format string
}

// New creates a logger and returns the function that closes its output.
func New(opts Options) (*slog.Logger, func() error, error) {
	var out io.Writer = io.Discard
	closeFn := func() error { return nil }

	if path := strings.TrimSpace(opts.File); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, err
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		out = file
		closeFn = file.Close
	}

	return slog.New(newHandler(out, opts)), closeFn, nil
}

// NewWriter creates a logger writing to w; used by tests and commands that
// print logs straight to stderr.
func NewWriter(w io.Writer, opts Options) *slog.Logger {
	return slog.New(newHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHandler(w io.Writer, opts Options) slog.Handler {
	level := getLogLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}
	if strings.EqualFold(opts.Format, "json") {
		return slog.NewJSONHandler(w, handlerOpts)
	}
	return slog.NewTextHandler(w, handlerOpts)
}

// getLogLevel converts string to slog.Level
func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
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
