// Package logging configures the process-wide structured logger.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	once    sync.Once
	logger  *slog.Logger
)

// Init configures the default slog logger from environment variables.
//
// TASKENGINE_JSON_LOG=1 selects the JSON handler; anything else (including
// unset) selects the text handler. TASKENGINE_LOG_LEVEL accepts debug, info,
// warn, error (case-insensitive); defaults to info.
func Init() *slog.Logger {
	once.Do(func() {
		level := parseLevel(os.Getenv("TASKENGINE_LOG_LEVEL"))
		opts := &slog.HandlerOptions{Level: level}

		var handler slog.Handler
		if os.Getenv("TASKENGINE_JSON_LOG") == "1" {
			handler = slog.NewJSONHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(os.Stdout, opts)
		}

		logger = slog.New(handler)
		slog.SetDefault(logger)
	})

	return logger
}

// Get returns the process logger, initializing it with defaults if needed.
func Get() *slog.Logger {
	if logger == nil {
		return Init()
	}
	return logger
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

// With returns a logger scoped to a chain/task for structured fields.
func With(args ...any) *slog.Logger {
	return Get().With(args...)
}
