package observability

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records changefeed metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordTuples records tuples appended to a unit-of-work buffer.
	RecordTuples(ctx context.Context, n int)

	// RecordSuppressed records a mutation hook dropped by suppression.
	RecordSuppressed(ctx context.Context, hook, class string)

	// RecordCommit records a committed unit of work, the events it published
	// and its latency in milliseconds.
	RecordCommit(ctx context.Context, events int, latencyMs float64)

	// RecordDiscard records a failed unit of work.
	RecordDiscard(ctx context.Context, tuples int)

	// RecordResolutionFailure records a provider that failed to resolve.
	RecordResolutionFailure(ctx context.Context, class, provider string)

	// RecordDelivery records one batch handed to a sink.
	RecordDelivery(ctx context.Context, sink string, err error)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	tuplesRecorded     metric.Int64Counter
	hooksSuppressed    metric.Int64Counter
	batchesPublished   metric.Int64Counter
	eventsPublished    metric.Int64Counter
	commitLatency      metric.Float64Histogram
	unitsDiscarded     metric.Int64Counter
	resolutionFailures metric.Int64Counter
	deliveries         metric.Int64Counter
	deliveryFailures   metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("changefeed")
	m := &otelMetrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.tuplesRecorded, "changefeed.tuples.recorded", "Number of (entity, event type) tuples buffered"},
		{&m.hooksSuppressed, "changefeed.hooks.suppressed", "Number of mutation hooks dropped by suppression"},
		{&m.batchesPublished, "changefeed.batches.published", "Number of non-empty batches published"},
		{&m.eventsPublished, "changefeed.events.published", "Number of output events published"},
		{&m.unitsDiscarded, "changefeed.units.discarded", "Number of failed units of work"},
		{&m.resolutionFailures, "changefeed.resolution.failures", "Number of origin, redirection or resolver failures"},
		{&m.deliveries, "changefeed.delivery.attempts", "Number of batches handed to a sink"},
		{&m.deliveryFailures, "changefeed.delivery.failures", "Number of batches a sink failed to accept"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	commitLatency, err := meter.Float64Histogram("changefeed.commit.latency_ms",
		metric.WithDescription("Time spent grouping and publishing a committed unit of work"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	m.commitLatency = commitLatency

	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordTuples records buffered tuples.
func (m *otelMetrics) RecordTuples(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	m.tuplesRecorded.Add(ctx, int64(n))
}

// RecordSuppressed records a suppressed hook.
func (m *otelMetrics) RecordSuppressed(ctx context.Context, hook, class string) {
	m.hooksSuppressed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("hook", hook),
		attribute.String("class", class),
	))
}

// RecordCommit records a committed unit of work.
func (m *otelMetrics) RecordCommit(ctx context.Context, events int, latencyMs float64) {
	if events > 0 {
		m.batchesPublished.Add(ctx, 1)
		m.eventsPublished.Add(ctx, int64(events))
	}
	m.commitLatency.Record(ctx, latencyMs)
}

// RecordDiscard records a failed unit of work.
func (m *otelMetrics) RecordDiscard(ctx context.Context, tuples int) {
	m.unitsDiscarded.Add(ctx, 1, metric.WithAttributes(attribute.Bool("empty", tuples == 0)))
}

// RecordResolutionFailure records a failed provider.
func (m *otelMetrics) RecordResolutionFailure(ctx context.Context, class, provider string) {
	m.resolutionFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("class", class),
		attribute.String("provider", provider),
	))
}

// RecordDelivery records a sink delivery.
func (m *otelMetrics) RecordDelivery(ctx context.Context, sink string, err error) {
	attrs := metric.WithAttributes(attribute.String("sink", sink))
	m.deliveries.Add(ctx, 1, attrs)
	if err != nil {
		m.deliveryFailures.Add(ctx, 1, attrs)
	}
}
