package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. JSON output keeps log
// aggregation simple in deployment; tests construct their own loggers.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// Discard returns a logger that drops everything. Useful as a default when a
// component is constructed without WithLogger.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
