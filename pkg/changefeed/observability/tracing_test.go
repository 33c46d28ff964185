package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest creates a test tracer provider with an in-memory span recorder.
func setupTracingTest(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	originalProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	tracer = otel.Tracer("changefeed")

	cleanup := func() {
		otel.SetTracerProvider(originalProvider)
		tracer = otel.Tracer("changefeed")
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	}
	return exporter, cleanup
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestStartCommitSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()
	_, span := sm.StartCommitSpan(context.Background(), "uow-1", 3)
	sm.EndSpanWithError(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "changefeed.commit", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)

	v, ok := attrValue(spans[0].Attributes, "unit_of_work.id")
	require.True(t, ok)
	assert.Equal(t, "uow-1", v.AsString())

	v, ok = attrValue(spans[0].Attributes, "unit_of_work.tuples")
	require.True(t, ok)
	assert.Equal(t, int64(3), v.AsInt64())
}

func TestStartDeliverySpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()
	ctx, span := sm.StartDeliverySpan(context.Background(), "batch-1", "redis")
	sm.AddSpanEvent(ctx, "retry", attribute.Int("attempt", 2))
	sm.EndSpanWithError(span, errors.New("connection refused"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "changefeed.deliver.redis", s.Name)
	assert.Equal(t, codes.Error, s.Status.Code)
	assert.Equal(t, "connection refused", s.Status.Description)
	require.Len(t, s.Events, 2, "retry event plus recorded error")
	assert.Equal(t, "retry", s.Events[0].Name)
}

func TestEndSpanWithErrorNilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		EndSpanWithError(nil, errors.New("ignored"))
	})
}

func TestAddSpanEventWithoutSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		AddSpanEvent(context.Background(), "orphan")
	})
}
