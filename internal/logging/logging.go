// Package logging configures the process-wide slog default handler.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures slog based on the LOG_LEVEL environment variable.
// Supported levels: debug, info, warn, error. Unset leaves the default
// handler (info, text, stderr) in place.
func Init() {
	levelStr, ok := os.LookupEnv("LOG_LEVEL")
	if !ok {
		return
	}

	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
