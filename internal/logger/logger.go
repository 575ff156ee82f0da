// Package logger builds the process-wide slog logger from the APP_ENV value.
package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON logger at info level in prod and a text logger at
// debug level everywhere else.
func New(env string) *slog.Logger {
	var h slog.Handler
	switch env {
	case "prod":
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	default:
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return slog.New(h)
}
