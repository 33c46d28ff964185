// Package observability provides structured logging, metrics and tracing
// for changefeed.
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

// EnrichLogger adds unit-of-work context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "uow-123")
//	enriched.Debug("resource added") // includes unit_of_work_id
func EnrichLogger(logger *slog.Logger, unitOfWorkID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("unit_of_work_id", unitOfWorkID))
}

// LogCommit logs a committed unit of work.
func LogCommit(logger *slog.Logger, unitOfWorkID string, tuples, events int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("unit of work committed",
		slog.String("unit_of_work_id", unitOfWorkID),
		slog.Int("tuple_count", tuples),
		slog.Int("event_count", events),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogDiscard logs a failed unit of work whose buffer was thrown away.
func LogDiscard(logger *slog.Logger, unitOfWorkID string, tuples int) {
	if logger == nil {
		return
	}
	logger.Debug("unit of work failed, buffer discarded",
		slog.String("unit_of_work_id", unitOfWorkID),
		slog.Int("tuple_count", tuples),
	)
}

// LogSuppressed logs a mutation hook dropped by suppression.
func LogSuppressed(logger *slog.Logger, hook, class, field string) {
	if logger == nil {
		return
	}
	attrs := []any{
		slog.String("hook", hook),
		slog.String("class", class),
	}
	if field != "" {
		attrs = append(attrs, slog.String("field", field))
	}
	logger.Debug("change suppressed", attrs...)
}

// LogResolutionFailure logs a provider that failed to resolve a related entity.
// The failure is non-fatal: the caller falls back to identity or no redirection.
func LogResolutionFailure(logger *slog.Logger, class, entityID, provider string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("resolution failed",
		slog.String("class", class),
		slog.String("entity_id", entityID),
		slog.String("provider", provider),
		slog.String("error", err.Error()),
	)
}

// LogPublishError logs a batch the publisher refused.
func LogPublishError(logger *slog.Logger, unitOfWorkID string, events int, err error) {
	if logger == nil {
		return
	}
	logger.Error("publish failed",
		slog.String("unit_of_work_id", unitOfWorkID),
		slog.Int("event_count", events),
		slog.String("error", err.Error()),
	)
}

// LogLifecycleMisuse logs a hook called in a state where it has no effect.
func LogLifecycleMisuse(logger *slog.Logger, unitOfWorkID, hook, state string) {
	if logger == nil {
		return
	}
	logger.Debug("hook ignored",
		slog.String("unit_of_work_id", unitOfWorkID),
		slog.String("hook", hook),
		slog.String("state", state),
	)
}

// LogDelivery logs a batch handed to a sink.
func LogDelivery(logger *slog.Logger, batchID, sink string, attempts int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("batch delivered",
		slog.String("batch_id", batchID),
		slog.String("sink", sink),
		slog.Int("attempts", attempts),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogDeliveryError logs a batch a sink could not accept after retries.
func LogDeliveryError(logger *slog.Logger, batchID, sink string, attempts int, err error) {
	if logger == nil {
		return
	}
	logger.Warn("delivery failed",
		slog.String("batch_id", batchID),
		slog.String("sink", sink),
		slog.Int("attempts", attempts),
		slog.String("error", err.Error()),
	)
}

// LogBatchDropped logs a batch rejected because the dispatch queue was full
// or closed.
func LogBatchDropped(logger *slog.Logger, batchID, reason string) {
	if logger == nil {
		return
	}
	logger.Error("batch dropped",
		slog.String("batch_id", batchID),
		slog.String("reason", reason),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
