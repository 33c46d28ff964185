package delivery

import "context"

// Sink accepts delivered batches. Deliver may be called concurrently for
// different batches and may be retried for the same batch, so implementations
// should be idempotent on Batch.ID where they persist anything.
type Sink interface {
	Deliver(ctx context.Context, b Batch) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, b Batch) error

// Deliver calls f(ctx, b).
func (f SinkFunc) Deliver(ctx context.Context, b Batch) error {
	return f(ctx, b)
}
