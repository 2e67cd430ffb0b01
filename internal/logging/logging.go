// Package logging is the core's debug channel (spec.md §7): structured
// diagnostics with file/line context, adapted from the teacher's
// relay/logger package (slog with a JSON handler).
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
)

// New creates a structured logger using slog with JSON output.
func New(output io.Writer, level slog.Level) *slog.Logger {
	if output == nil {
		output = os.Stderr
	}
	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// WithComponent creates a logger with a component attribute, the same
// convention the teacher's relay/logger.WithComponent uses.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// Debugf emits a debug-level diagnostic carrying the caller's file and
// line, mirroring sudo_debug_printf(SUDO_DEBUG_ERROR|SUDO_DEBUG_LINENO, ...)
// from the original C sources — Go has no preprocessor macro to capture
// this statically, so runtime.Caller supplies it instead.
func Debugf(logger *slog.Logger, msg string, args ...any) {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file, line = "unknown", 0
	}
	attrs := make([]any, 0, len(args)+4)
	attrs = append(attrs, slog.String("file", file), slog.Int("line", line))
	attrs = append(attrs, args...)
	logger.Log(context.Background(), slog.LevelDebug, msg, attrs...)
}

// Errno renders an error as a slog attribute alongside errno-style text,
// the way sudo_debug_printf(...|SUDO_DEBUG_ERRNO, ...) appends strerror().
func Errno(err error) slog.Attr {
	if err == nil {
		return slog.String("errno", "")
	}
	return slog.String("errno", err.Error())
}
