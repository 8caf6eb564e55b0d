package logging

import (
	"io"
	"log/slog"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// ParseLevel maps a config string (debug, info, warn, error) to a slog level.
// Unknown values fall back to info.
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

// NewConsole returns a logger that writes human-readable lines, used by the
// interactive client.
func NewConsole(w io.Writer, level string) *SlogLogger {
	h := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           charmlog.Level(ParseLevel(level)),
		ReportTimestamp: true,
		Prefix:          "almacen",
	})
	return NewSlogLogger(slog.New(h))
}

// NewJSON returns a logger that writes one JSON object per line, used by the
// bridge process.
func NewJSON(w io.Writer, level string) *SlogLogger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return NewSlogLogger(slog.New(h))
}

// NewNop discards everything.
func NewNop() *SlogLogger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
