package delivery_test

import (
	"context"
	"sync"
	"time"

	"github.com/randalmurphal/changefeed/pkg/changefeed/delivery"
	"github.com/randalmurphal/changefeed/pkg/changefeed/resource"
)

func testBatch(id string, events ...resource.OutputEvent) delivery.Batch {
	return delivery.Batch{
		ID:           id,
		UnitOfWorkID: "uow-" + id,
		Timestamp:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Events:       events,
	}
}

var (
	added   = resource.OutputEvent{URI: "/redfish/v1/Chassis/1", Type: resource.Added}
	updated = resource.OutputEvent{URI: "/redfish/v1/Systems/1", Type: resource.Updated}
	alert   = resource.OutputEvent{URI: "/redfish/v1/Systems/1", Type: resource.Alert}
)

// memorySink records delivered batches and fails the first failures calls.
type memorySink struct {
	mu       sync.Mutex
	batches  []delivery.Batch
	calls    int
	failures int
	err      error
}

func (s *memorySink) Deliver(_ context.Context, b delivery.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return s.err
	}
	s.batches = append(s.batches, b)
	return nil
}

func (s *memorySink) Batches() []delivery.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]delivery.Batch(nil), s.batches...)
}

func (s *memorySink) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var fastRetry = delivery.RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: time.Millisecond,
	MaxBackoff:     5 * time.Millisecond,
	BackoffFactor:  2,
}
