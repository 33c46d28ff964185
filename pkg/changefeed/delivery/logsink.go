package delivery

import (
	"context"
	"log/slog"
)

// LogSink logs every delivered batch. Useful in development and as a
// fallback when no broker is configured.
type LogSink struct {
	logger *slog.Logger
}

var _ Sink = (*LogSink)(nil)

// NewLogSink creates a sink logging at info level.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Deliver implements Sink.
func (s *LogSink) Deliver(ctx context.Context, b Batch) error {
	events := make([]string, len(b.Events))
	for i, e := range b.Events {
		events[i] = e.String()
	}
	s.logger.InfoContext(ctx, "batch published",
		slog.String("batch_id", b.ID),
		slog.String("unit_of_work_id", b.UnitOfWorkID),
		slog.Int("event_count", len(b.Events)),
		slog.Any("events", events),
	)
	return nil
}
