// Package observability provides structured logging, metrics and tracing
// for checkpoint stores and path backends.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds checkpoint context to a logger.
// Returns a new logger with root and backend fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "gs://bucket/ckpt", "gcs")
//	enriched.Info("saving") // includes root, backend
func EnrichLogger(logger *slog.Logger, root, backend string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("root", root),
		slog.String("backend", backend),
	)
}

// LogBackendInit logs the lazy initialization of a backend client.
func LogBackendInit(logger *slog.Logger, backend string, attrs ...slog.Attr) {
	if logger == nil {
		return
	}
	args := make([]any, 0, len(attrs)+1)
	args = append(args, slog.String("backend", backend))
	for _, a := range attrs {
		args = append(args, a)
	}
	logger.Info("backend initialized", args...)
}

// LogSaveStart logs the start of a snapshot save.
func LogSaveStart(logger *slog.Logger, path string, keys []string, write bool) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint save starting",
		slog.String("path", path),
		slog.Any("keys", keys),
		slog.Bool("write", write),
	)
}

// LogSaveComplete logs a committed (or dry-run) snapshot.
func LogSaveComplete(logger *slog.Logger, path string, durationMs float64, sizeBytes int64, write bool) {
	if logger == nil {
		return
	}
	msg := "checkpoint saved"
	if !write {
		msg = "checkpoint dry run completed"
	}
	logger.Info(msg,
		slog.String("path", path),
		slog.Float64("duration_ms", durationMs),
		slog.Int64("size_bytes", sizeBytes),
	)
}

// LogKeyError logs the failure of one saveable during save or load.
func LogKeyError(logger *slog.Logger, op, key, path string, err error) {
	if logger == nil {
		return
	}
	logger.Error("checkpoint key failed",
		slog.String("operation", op),
		slog.String("key", key),
		slog.String("path", path),
		slog.String("error", err.Error()),
	)
}

// LogLoadComplete logs a completed load. age is the time since the
// snapshot was taken, or zero when the directory name carries no
// timestamp.
func LogLoadComplete(logger *slog.Logger, path string, durationMs float64, age time.Duration) {
	if logger == nil {
		return
	}
	attrs := []any{
		slog.String("path", path),
		slog.Float64("duration_ms", durationMs),
	}
	if age > 0 {
		attrs = append(attrs, slog.Float64("age_seconds", age.Seconds()))
	}
	logger.Info("checkpoint loaded", attrs...)
}

// LogCleanup logs the removal of an old snapshot by retention.
func LogCleanup(logger *slog.Logger, path string, keep int) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint removed by retention",
		slog.String("path", path),
		slog.Int("keep", keep),
	)
}

// LogCleanupError logs a best-effort cleanup failure (non-fatal).
func LogCleanupError(logger *slog.Logger, path string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("cleanup failed",
		slog.String("path", path),
		slog.String("error", err.Error()),
	)
}

// LogCatalogError logs a failed snapshot catalog update. The catalog is an
// index only, so the snapshot itself is unaffected.
func LogCatalogError(logger *slog.Logger, op, path string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("snapshot catalog update failed",
		slog.String("operation", op),
		slog.String("path", path),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
