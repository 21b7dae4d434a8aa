// Package logging installs the process-wide slog logger.
package logging

import (
	"log/slog"
	"os"
)

// Init configures the default logger on stderr. Normal runs log warnings
// and errors only; verbose enables debug output for pipeline tracing.
func Init(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
