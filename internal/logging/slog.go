// ABOUTME: Process-wide slog setup shared by the chatpilot binaries
// ABOUTME: Logs to stderr so the bridge's stdout stays a clean frame channel

package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the default logger with the configured level and format.
// Output always goes to stderr: the bridge daemon owns stdout for frames.
func Setup(level, format string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
