package delivery_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/changefeed/pkg/changefeed"
	"github.com/randalmurphal/changefeed/pkg/changefeed/delivery"
	"github.com/randalmurphal/changefeed/pkg/changefeed/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closeDispatcher(t *testing.T, d *delivery.Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
}

func TestDispatcherDeliversToEverySink(t *testing.T) {
	a, b := &memorySink{}, &memorySink{}
	d := delivery.NewDispatcher(
		delivery.WithSink("a", a),
		delivery.WithSink("b", b),
		delivery.WithRetry(fastRetry),
	)

	ctx := changefeed.ContextWithUnitOfWorkID(context.Background(), "uow-1")
	require.NoError(t, d.Publish(ctx, []resource.OutputEvent{added}))
	require.NoError(t, d.Publish(ctx, []resource.OutputEvent{updated, alert}))
	closeDispatcher(t, d)

	for _, sink := range []*memorySink{a, b} {
		batches := sink.Batches()
		require.Len(t, batches, 2)
		assert.Equal(t, []resource.OutputEvent{added}, batches[0].Events, "publish order is kept")
		assert.Equal(t, "uow-1", batches[0].UnitOfWorkID)
		assert.Len(t, batches[1].Events, 2)
	}
	assert.Equal(t, a.Batches()[0].ID, b.Batches()[0].ID, "sinks receive the same batch")
}

func TestDispatcherIgnoresEmptyPublish(t *testing.T) {
	sink := &memorySink{}
	d := delivery.NewDispatcher(delivery.WithSink("s", sink))
	require.NoError(t, d.Publish(context.Background(), nil))
	closeDispatcher(t, d)
	assert.Zero(t, sink.Calls())
}

func TestDispatcherRetriesTransientFailures(t *testing.T) {
	sink := &memorySink{failures: 2, err: errors.New("connection reset")}
	dlq := delivery.NewInMemoryDeadLetters(delivery.DeadLetterConfig{})
	d := delivery.NewDispatcher(
		delivery.WithSink("flaky", sink),
		delivery.WithRetry(fastRetry),
		delivery.WithDeadLetters(dlq),
	)

	require.NoError(t, d.Deliver(context.Background(), testBatch("b1", added)))
	closeDispatcher(t, d)

	assert.Equal(t, 3, sink.Calls())
	assert.Len(t, sink.Batches(), 1)
	assert.Zero(t, dlq.Len())
}

func TestDispatcherDeadLettersExhaustedDeliveries(t *testing.T) {
	boom := errors.New("broker unavailable")
	failing := &memorySink{failures: 100, err: boom}
	healthy := &memorySink{}
	dlq := delivery.NewInMemoryDeadLetters(delivery.DeadLetterConfig{})

	d := delivery.NewDispatcher(
		delivery.WithSink("failing", failing),
		delivery.WithSink("healthy", healthy),
		delivery.WithRetry(fastRetry),
		delivery.WithDeadLetters(dlq),
	)
	defer closeDispatcher(t, d)

	err := d.Deliver(context.Background(), testBatch("b1", added))
	require.Error(t, err)

	var deliveryErr *delivery.DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, "b1", deliveryErr.BatchID)
	assert.Equal(t, "failing", deliveryErr.Sink)
	assert.Equal(t, 3, deliveryErr.Attempts)
	assert.ErrorIs(t, err, boom)

	assert.Len(t, healthy.Batches(), 1, "one failing sink does not block the others")

	letters, err := dlq.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, "failing", letters[0].Sink)
	assert.Equal(t, "broker unavailable", letters[0].Error)

	t.Run("redrive delivers once the sink recovers", func(t *testing.T) {
		failing.mu.Lock()
		failing.failures = 0
		failing.mu.Unlock()

		n, err := d.Redrive(context.Background(), 10)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Zero(t, dlq.Len())
		assert.Len(t, failing.Batches(), 1)
	})
}

func TestDispatcherPermanentErrorsSkipRetries(t *testing.T) {
	sink := &memorySink{failures: 1, err: delivery.Permanent(errors.New("bad payload"))}
	d := delivery.NewDispatcher(delivery.WithSink("s", sink), delivery.WithRetry(fastRetry))
	defer closeDispatcher(t, d)

	err := d.Deliver(context.Background(), testBatch("b1", added))
	require.Error(t, err)
	assert.Equal(t, 1, sink.Calls())
}

func TestDispatcherDropsWhenQueueIsFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	blocking := delivery.SinkFunc(func(ctx context.Context, _ delivery.Batch) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})

	var mu sync.Mutex
	var dropped []error
	d := delivery.NewDispatcher(
		delivery.WithSink("slow", blocking),
		delivery.WithQueueSize(1),
		delivery.WithOnDrop(func(_ delivery.Batch, reason error) {
			mu.Lock()
			defer mu.Unlock()
			dropped = append(dropped, reason)
		}),
	)

	ctx := context.Background()
	require.NoError(t, d.Publish(ctx, []resource.OutputEvent{added}))
	<-started // worker holds the first batch
	require.NoError(t, d.Publish(ctx, []resource.OutputEvent{added}))

	err := d.Publish(ctx, []resource.OutputEvent{added})
	assert.ErrorIs(t, err, delivery.ErrQueueFull)

	close(release)
	closeDispatcher(t, d)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []error{delivery.ErrQueueFull}, dropped)
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := delivery.NewDispatcher()
	closeDispatcher(t, d)
	closeDispatcher(t, d)

	err := d.Publish(context.Background(), []resource.OutputEvent{added})
	assert.ErrorIs(t, err, delivery.ErrDispatcherClosed)
}

func TestDispatcherAsEnginePublisher(t *testing.T) {
	sink := &memorySink{}
	d := delivery.NewDispatcher(delivery.WithSink("memory", sink))

	var publisher changefeed.Publisher = d
	require.NoError(t, publisher.Publish(context.Background(), []resource.OutputEvent{updated}))
	closeDispatcher(t, d)

	require.Len(t, sink.Batches(), 1)
}
