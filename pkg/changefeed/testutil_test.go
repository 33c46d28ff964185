package changefeed_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/randalmurphal/changefeed/pkg/changefeed"
	"github.com/randalmurphal/changefeed/pkg/changefeed/metadata"
	"github.com/randalmurphal/changefeed/pkg/changefeed/resource"
	"github.com/stretchr/testify/require"
)

// entity is a minimal Entity for engine tests.
type entity struct {
	class         resource.Class
	id            string
	uri           resource.URI
	complementary bool
	parent        *entity
	peer          *entity
}

func (e *entity) Class() resource.Class            { return e.class }
func (e *entity) ID() string                       { return e.id }
func (e *entity) EventSourceContext() resource.URI { return e.uri }
func (e *entity) IsComplementary() bool            { return e.complementary }

func parentOf(e resource.Entity) (resource.Entity, error) {
	if p := e.(*entity).parent; p != nil {
		return p, nil
	}
	return nil, nil
}

func peerOf(e resource.Entity) (resource.Entity, error) {
	if p := e.(*entity).peer; p != nil {
		return p, nil
	}
	return nil, nil
}

// recordingPublisher captures every published batch.
type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]resource.OutputEvent
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, events []resource.OutputEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, events)
	return p.err
}

func (p *recordingPublisher) Batches() [][]resource.OutputEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.batches
}

var errPublish = errors.New("queue closed")

// Fixture classes:
//
//	Chassis       top-level, eventable
//	ComputerSystem top-level, eventable, "internal" suppressed
//	Processor     reported through its parent system; "model" redirects to the parent
//	Drive         complementary instances reported through their chassis
//	Redundancy    registered, not eventable
var (
	chassis = &entity{class: "Chassis", id: "c1", uri: "/redfish/v1/Chassis/1"}
	system  = &entity{class: "ComputerSystem", id: "s1", uri: "/redfish/v1/Systems/1"}
)

func newTables(t *testing.T, opts ...metadata.Option) *metadata.Tables {
	t.Helper()
	inv := metadata.NewInventory()
	inv.MustRegister(metadata.ClassSpec{Class: "Chassis", Eventable: true})
	inv.MustRegister(metadata.ClassSpec{
		Class:            "ComputerSystem",
		Eventable:        true,
		SuppressedFields: []string{"internal", "ownedRedundancies"},
	})
	inv.MustRegister(metadata.ClassSpec{
		Class:     "Processor",
		Eventable: true,
		Origin:    parentOf,
		Redirects: []metadata.Redirect{{Key: "system", SourceFields: []string{"model", "threads"}}},
		Targets:   map[string]metadata.TargetFunc{"system": parentOf},
	})
	inv.MustRegister(metadata.ClassSpec{Class: "Drive", Eventable: true, Origin: parentOf})
	inv.MustRegister(metadata.ClassSpec{Class: "Redundancy"})

	tables, err := inv.Build(opts...)
	require.NoError(t, err)
	return tables
}

func newEngine(t *testing.T, pub changefeed.Publisher, opts ...changefeed.Option) *changefeed.Engine {
	t.Helper()
	engine, err := changefeed.New(newTables(t), pub, opts...)
	require.NoError(t, err)
	return engine
}

func commit(h changefeed.Hooks) {
	h.BeforeCompletion()
	h.OnCompletion()
}

func ev(uri resource.URI, typ resource.EventType) resource.OutputEvent {
	return resource.OutputEvent{URI: uri, Type: typ}
}

func statusDiff(before, after resource.Health) resource.Diff {
	return resource.NewDiff(resource.FieldChange{
		Field: resource.StatusField,
		Old:   resource.Status{State: resource.StateEnabled, Health: before},
		New:   resource.Status{State: resource.StateEnabled, Health: after},
	})
}
