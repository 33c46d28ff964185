package delivery_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/randalmurphal/changefeed/pkg/changefeed/delivery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := delivery.NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, sink.Deliver(context.Background(), testBatch("b1", added, alert)))

	out := buf.String()
	assert.Contains(t, out, `"msg":"batch published"`)
	assert.Contains(t, out, `"batch_id":"b1"`)
	assert.Contains(t, out, `"event_count":2`)
	assert.Contains(t, out, "ResourceAdded@/redfish/v1/Chassis/1")
}

func TestLogSinkDefaultsLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = delivery.NewLogSink(nil).Deliver(context.Background(), testBatch("b1", added))
	})
}
