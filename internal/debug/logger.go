// Package debug builds the slog logger handed to every component.
package debug

import (
	"io"
	"log/slog"
)

// NewLogger returns a text logger on w. When enabled, debug records are
// written; otherwise only warnings and errors are.
func NewLogger(w io.Writer, enabled bool) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: Level(enabled)}))
}

// Level returns the minimum level for the given debug setting.
func Level(enabled bool) slog.Level {
	if enabled {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
