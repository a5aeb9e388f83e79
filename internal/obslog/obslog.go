// Package obslog configures the process-wide structured logger used
// for one-shot CLI/server output, following the teacher's slog setup
// shape. High-frequency per-run telemetry logging uses zerolog instead,
// via internal/telemetry's ConsoleObserver.
package obslog

import (
	"log/slog"
	"os"
	"strings"
)

// Setup creates and installs a JSON slog.Logger at the given level,
// returning it for callers that want an explicit handle.
func Setup(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// Logger returns a default info-level logger without installing it as
// the package-wide default.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
