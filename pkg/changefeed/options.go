package changefeed

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/changefeed/pkg/changefeed/observability"
)

// engineConfig holds engine-wide settings shared by every unit of work.
type engineConfig struct {
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
	newID          func() string
	onPublishError func(*PublishError)
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
		newID:   uuid.NewString,
	}
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables metrics on the given recorder.
//
// Example:
//
//	engine, err := changefeed.New(tables, pub, changefeed.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(metrics observability.MetricsRecorder) Option {
	return func(c *engineConfig) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}

// WithTracing enables a commit span around grouping and publishing.
func WithTracing(spans observability.SpanManager) Option {
	return func(c *engineConfig) {
		if spans != nil {
			c.spans = spans
			c.tracingEnabled = true
		}
	}
}

// WithIDGenerator replaces the unit-of-work ID generator. Default: random UUIDs.
func WithIDGenerator(fn func() string) Option {
	return func(c *engineConfig) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithPublishErrorHandler registers a callback for batches the publisher
// refused. The error has already been logged.
func WithPublishErrorHandler(fn func(*PublishError)) Option {
	return func(c *engineConfig) {
		c.onPublishError = fn
	}
}
