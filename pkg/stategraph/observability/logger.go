// Package observability provides structured logging, metrics and tracing
// for stategraph runs.
//
// Logging uses log/slog; metrics and tracing use OpenTelemetry and the
// global providers. Every feature is opt-in and has a no-op implementation
// when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds step context to a logger.
// Returns a new logger with thread_id, node_id and step fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "thread-123", "review", 3)
//	enriched.Info("doing work") // includes thread_id, node_id, step
func EnrichLogger(logger *slog.Logger, threadID, nodeID string, step int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("thread_id", threadID),
		slog.String("node_id", nodeID),
		slog.Int("step", step),
	)
}

// LogRunStart logs the start of a run and the node it begins at.
func LogRunStart(logger *slog.Logger, threadID, startNode string) {
	if logger == nil {
		return
	}
	logger.Info("graph run starting",
		slog.String("thread_id", threadID),
		slog.String("start_node", startNode),
	)
}

// LogRunComplete logs a run that reached END.
func LogRunComplete(logger *slog.Logger, threadID string, durationMs float64, steps int) {
	if logger == nil {
		return
	}
	logger.Info("graph run completed",
		slog.String("thread_id", threadID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("steps", steps),
	)
}

// LogRunError logs a failed run.
func LogRunError(logger *slog.Logger, threadID string, err error, durationMs float64, lastNode string) {
	if logger == nil {
		return
	}
	logger.Error("graph run failed",
		slog.String("thread_id", threadID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_node", lastNode),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, nodeID string, step int) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node_id", nodeID),
		slog.Int("step", step),
	)
}

// LogNodeComplete logs successful node completion and the chosen successor.
func LogNodeComplete(logger *slog.Logger, nodeID, next string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.String("next", next),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs node execution error.
func LogNodeError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogCheckpoint logs checkpoint creation.
func LogCheckpoint(logger *slog.Logger, nodeID string, sequence, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint saved",
		slog.String("node_id", nodeID),
		slog.Int("sequence", sequence),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogCheckpointError logs checkpoint failure (non-fatal).
func LogCheckpointError(logger *slog.Logger, nodeID string, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("checkpoint failed",
		slog.String("node_id", nodeID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// LogInterrupt logs a node parking the thread on an interrupt.
func LogInterrupt(logger *slog.Logger, threadID, nodeID, interruptID string) {
	if logger == nil {
		return
	}
	logger.Info("run interrupted",
		slog.String("thread_id", threadID),
		slog.String("node_id", nodeID),
		slog.String("interrupt_id", interruptID),
	)
}

// LogResume logs a parked thread being resumed.
func LogResume(logger *slog.Logger, threadID, nodeID string, sequence int) {
	if logger == nil {
		return
	}
	logger.Info("run resuming",
		slog.String("thread_id", threadID),
		slog.String("node_id", nodeID),
		slog.Int("sequence", sequence),
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
		return float64(time.Since(start).Milliseconds())
	}
}
