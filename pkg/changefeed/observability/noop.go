package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
type NoopMetrics struct{}

var _ MetricsRecorder = NoopMetrics{}

// RecordTuples does nothing.
func (NoopMetrics) RecordTuples(_ context.Context, _ int) {}

// RecordSuppressed does nothing.
func (NoopMetrics) RecordSuppressed(_ context.Context, _, _ string) {}

// RecordCommit does nothing.
func (NoopMetrics) RecordCommit(_ context.Context, _ int, _ float64) {}

// RecordDiscard does nothing.
func (NoopMetrics) RecordDiscard(_ context.Context, _ int) {}

// RecordResolutionFailure does nothing.
func (NoopMetrics) RecordResolutionFailure(_ context.Context, _, _ string) {}

// RecordDelivery does nothing.
func (NoopMetrics) RecordDelivery(_ context.Context, _ string, _ error) {}

// NoopSpanManager is a SpanManager that does nothing.
type NoopSpanManager struct{}

var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

// StartCommitSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartCommitSpan(ctx context.Context, _ string, _ int) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartDeliverySpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartDeliverySpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
