package logging

import "log/slog"

// EnableTrace turns on per-event logs from the filter loop.
// Off by default; they are noisy.
var EnableTrace = false

// Trace logs a message at DEBUG level, but only if EnableTrace is true.
func Trace(logger *slog.Logger, msg string, args ...any) {
	if EnableTrace {
		logger.Debug(msg, args...)
	}
}
