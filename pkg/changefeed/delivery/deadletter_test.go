package delivery_test

import (
	"context"
	"testing"
	"time"

	"github.com/randalmurphal/changefeed/pkg/changefeed/delivery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryDeadLetters(t *testing.T) {
	ctx := context.Background()
	var enqueued []string
	q := delivery.NewInMemoryDeadLetters(delivery.DeadLetterConfig{
		MaxSize:   2,
		OnEnqueue: func(dl *delivery.DeadLetter) { enqueued = append(enqueued, dl.Batch.ID) },
	})

	base := time.Now()
	require.NoError(t, q.Enqueue(ctx, &delivery.DeadLetter{Batch: testBatch("b2"), Sink: "redis", FailedAt: base.Add(time.Second)}))
	require.NoError(t, q.Enqueue(ctx, &delivery.DeadLetter{Batch: testBatch("b1"), Sink: "redis", FailedAt: base}))
	assert.Equal(t, 2, q.Len())

	t.Run("full queue rejects new entries", func(t *testing.T) {
		err := q.Enqueue(ctx, &delivery.DeadLetter{Batch: testBatch("b3"), Sink: "redis"})
		assert.ErrorIs(t, err, delivery.ErrDeadLetterQueueFull)
	})

	t.Run("same batch and sink replaces", func(t *testing.T) {
		require.NoError(t, q.Enqueue(ctx, &delivery.DeadLetter{Batch: testBatch("b1"), Sink: "redis", Attempts: 6, FailedAt: base}))
		assert.Equal(t, 2, q.Len())
	})

	t.Run("list is oldest first", func(t *testing.T) {
		letters, err := q.List(ctx, 0)
		require.NoError(t, err)
		require.Len(t, letters, 2)
		assert.Equal(t, "b1", letters[0].Batch.ID)
		assert.Equal(t, 6, letters[0].Attempts)
		assert.Equal(t, "b2", letters[1].Batch.ID)

		letters, err = q.List(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, letters, 1)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, q.Remove(ctx, "b1", "redis"))
		assert.ErrorIs(t, q.Remove(ctx, "b1", "redis"), delivery.ErrNotFound)
		assert.Equal(t, 1, q.Len())
	})

	assert.Equal(t, []string{"b2", "b1", "b1"}, enqueued)
}

func TestInMemoryDeadLettersStampsFailureTime(t *testing.T) {
	q := delivery.NewInMemoryDeadLetters(delivery.DeadLetterConfig{})
	dl := &delivery.DeadLetter{Batch: testBatch("b1"), Sink: "log"}
	require.NoError(t, q.Enqueue(context.Background(), dl))
	assert.False(t, dl.FailedAt.IsZero())
}
