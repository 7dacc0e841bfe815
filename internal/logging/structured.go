package logging

import (
	"log/slog"
	"os"
)

// NewStructuredLogger builds the process-wide slog.Logger used for
// operational events (session lifecycle, dispatch, broadcast delivery).
// JSON output when json is true, otherwise a human-readable text handler.
func NewStructuredLogger(json bool, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// WithComponent returns a logger scoped to a component name. A nil logger
// falls back to slog.Default so callers can skip injection in tests.
func WithComponent(l *slog.Logger, component string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", component)
}
