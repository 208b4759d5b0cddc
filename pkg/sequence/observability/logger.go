// Package observability provides structured logging, metrics, and tracing
// for sequence runs.
//
// Logging uses slog. Metrics and tracing use the global OpenTelemetry
// providers. All features are opt-in and have no-op implementations when
// disabled.
package observability

import "log/slog"

// EnrichLogger adds run context to a logger.
// Returns a new logger with run_id, step, and attempt fields.
func EnrichLogger(logger *slog.Logger, runID, step string, attempt int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("step", step),
		slog.Int("attempt", attempt),
	)
}

// LogRunStart logs the start of a sequence run.
func LogRunStart(logger *slog.Logger, kind, runID, start string) {
	if logger == nil {
		return
	}
	logger.Info("sequence run starting",
		slog.String("kind", kind),
		slog.String("run_id", runID),
		slog.String("start", start),
	)
}

// LogRunComplete logs successful run completion.
func LogRunComplete(logger *slog.Logger, kind, runID string, durationMs float64, stepCount int) {
	if logger == nil {
		return
	}
	logger.Info("sequence run completed",
		slog.String("kind", kind),
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("steps_executed", stepCount),
	)
}

// LogRunError logs run failure.
func LogRunError(logger *slog.Logger, kind, runID string, err error, durationMs float64, lastStep string) {
	if logger == nil {
		return
	}
	logger.Error("sequence run failed",
		slog.String("kind", kind),
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_step", lastStep),
	)
}

// LogStepStart logs step execution start.
func LogStepStart(logger *slog.Logger, step string) {
	if logger == nil {
		return
	}
	logger.Debug("step starting",
		slog.String("step", step),
	)
}

// LogStepComplete logs successful step completion.
func LogStepComplete(logger *slog.Logger, step string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("step completed",
		slog.String("step", step),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogStepError logs step execution error.
func LogStepError(logger *slog.Logger, step string, err error) {
	if logger == nil {
		return
	}
	logger.Error("step failed",
		slog.String("step", step),
		slog.String("error", err.Error()),
	)
}

// LogCheckpoint logs checkpoint creation.
func LogCheckpoint(logger *slog.Logger, step string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint saved",
		slog.String("step", step),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogCheckpointError logs checkpoint failure (non-fatal).
func LogCheckpointError(logger *slog.Logger, step string, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("checkpoint failed",
		slog.String("step", step),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}
