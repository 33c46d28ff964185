package changefeed

import (
	"context"

	"github.com/randalmurphal/changefeed/pkg/changefeed/resource"
)

// Publisher receives the batch of a committed unit of work. Publish is called
// at most once per unit of work, never for a failed one and never with an
// empty batch. Implementations should hand the batch off without blocking on
// delivery.
type Publisher interface {
	Publish(ctx context.Context, events []resource.OutputEvent) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, events []resource.OutputEvent) error

// Publish calls f(ctx, events).
func (f PublisherFunc) Publish(ctx context.Context, events []resource.OutputEvent) error {
	return f(ctx, events)
}

type unitOfWorkIDKey struct{}

// ContextWithUnitOfWorkID returns a context carrying the unit-of-work ID.
// The context handed to Publish always carries it.
func ContextWithUnitOfWorkID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, unitOfWorkIDKey{}, id)
}

// UnitOfWorkIDFromContext returns the unit-of-work ID stored in ctx, or "".
func UnitOfWorkIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(unitOfWorkIDKey{}).(string)
	return id
}
