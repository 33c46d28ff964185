package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/randalmurphal/changefeed/pkg/changefeed"
	"github.com/randalmurphal/changefeed/pkg/changefeed/resource"
)

// Batch is the unit of delivery: the events of one committed unit of work.
type Batch struct {
	ID           string                 `json:"id"`
	UnitOfWorkID string                 `json:"unit_of_work_id,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
	Events       []resource.OutputEvent `json:"events"`
}

// NewBatch wraps events in a batch with a fresh ID. The unit-of-work ID is
// taken from ctx when present.
func NewBatch(ctx context.Context, events []resource.OutputEvent) Batch {
	return Batch{
		ID:           uuid.NewString(),
		UnitOfWorkID: changefeed.UnitOfWorkIDFromContext(ctx),
		Timestamp:    time.Now().UTC(),
		Events:       events,
	}
}

// Filter returns a copy of the batch holding only events of the given types.
// With no types the batch is returned unchanged.
func (b Batch) Filter(types ...resource.EventType) Batch {
	if len(types) == 0 {
		return b
	}
	want := make(map[resource.EventType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}

	out := b
	out.Events = nil
	for _, e := range b.Events {
		if want[e.Type] {
			out.Events = append(out.Events, e)
		}
	}
	return out
}

// Empty reports whether the batch carries no events.
func (b Batch) Empty() bool {
	return len(b.Events) == 0
}
