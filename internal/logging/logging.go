// internal/logging/logging.go
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
)

// Component names used with logger.With("component", ...).
const (
	ComponentDevice   = "device"
	ComponentFilesys  = "filesys"
	ComponentBus      = "bus"
	ComponentWorkload = "workload"
)

// Formats accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", s)
}

// New builds a text or JSON logger writing to w.
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", FormatText:
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("logging: unknown format %q", format)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	// Go 1.21-compatible equivalent of slog.DiscardHandler (added in Go 1.24):
	// output goes to io.Discard and the level is high enough that Enabled is
	// always false.
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
}
