// Package logging builds the process-wide structured logger.
package logging

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger writing to stdout. The level is Debug in
// dev environments so that idempotent no-op events remain visible there.
func New(env string) *slog.Logger {
	level := slog.LevelInfo
	if env == "dev" || env == "test" {
		level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}
