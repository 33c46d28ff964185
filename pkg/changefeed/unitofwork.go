package changefeed

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/randalmurphal/changefeed/pkg/changefeed/metadata"
	"github.com/randalmurphal/changefeed/pkg/changefeed/observability"
	"github.com/randalmurphal/changefeed/pkg/changefeed/resource"
	"go.opentelemetry.io/otel/trace"
)

// State is the lifecycle position of a UnitOfWork.
type State int

const (
	// StateIdle means no mutation has been recorded since the last boundary.
	StateIdle State = iota
	// StateAccumulating means mutations are being buffered.
	StateAccumulating
	// StateCompleting means the buffer was normalized and awaits commit.
	StateCompleting
	// StateFailed means the unit of work failed and its buffer was discarded.
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:         "idle",
	StateAccumulating: "accumulating",
	StateCompleting:   "completing",
	StateFailed:       "failed",
}

// String returns the lowercase state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Hook names used in logs and metrics.
const (
	hookResourceAdded     = "resourceAdded"
	hookResourceUpdated   = "resourceUpdated"
	hookCollectionUpdated = "collectionResourceUpdated"
	hookResourceRemoved   = "resourceRemoved"
	hookBeforeCompletion  = "beforeCompletion"
	hookOnCompletion      = "onCompletion"
	hookOnFailure         = "onFailure"
)

// UnitOfWork buffers the changes of one unit of work and publishes them when
// it commits. It implements Hooks without any suppression; use a Gate in
// front of it to drop changes of non-eventable classes and fields.
//
// After OnCompletion the UnitOfWork is idle and may record the next unit of
// work. It is not safe for concurrent use.
type UnitOfWork struct {
	ctx       context.Context
	id        string
	state     State
	buffer    Collector
	tables    *metadata.Tables
	publisher Publisher
	cfg       *engineConfig
	logger    *slog.Logger
}

var _ Hooks = (*UnitOfWork)(nil)

func newUnitOfWork(ctx context.Context, tables *metadata.Tables, publisher Publisher, cfg *engineConfig) *UnitOfWork {
	if ctx == nil {
		ctx = context.Background()
	}
	u := &UnitOfWork{
		ctx:       ctx,
		tables:    tables,
		publisher: publisher,
		cfg:       cfg,
	}
	u.renew()
	return u
}

func (u *UnitOfWork) renew() {
	u.id = u.cfg.newID()
	u.logger = observability.EnrichLogger(u.cfg.logger, u.id)
}

// ID returns the identifier of the current unit of work.
func (u *UnitOfWork) ID() string { return u.id }

// State returns the lifecycle state.
func (u *UnitOfWork) State() State { return u.state }

// Len returns the number of buffered tuples.
func (u *UnitOfWork) Len() int { return u.buffer.Len() }

// Tuples returns a copy of the buffered tuples.
func (u *UnitOfWork) Tuples() []resource.Tuple { return u.buffer.Tuples() }

// ResourceAdded records (e, ResourceAdded).
func (u *UnitOfWork) ResourceAdded(e resource.Entity) {
	u.add(e, resource.Added)
}

// ResourceRemoved records (e, ResourceRemoved).
func (u *UnitOfWork) ResourceRemoved(e resource.Entity) {
	u.add(e, resource.Removed)
}

// ResourceUpdated records the types classified from d, then records
// ResourceUpdated for every redirection target whose source field changed
// from one value to another.
func (u *UnitOfWork) ResourceUpdated(e resource.Entity, d resource.Diff) {
	for _, typ := range Classify(d) {
		u.add(e, typ)
	}
	u.tables.Redirect(e, d.WasUpdatedFromOneValueToAnother, u.addUpdated)
}

// CollectionResourceUpdated records (e, ResourceUpdated), then records
// ResourceUpdated for every redirection target declared on the collection.
func (u *UnitOfWork) CollectionResourceUpdated(e resource.Entity, collection string) {
	u.add(e, resource.Updated)
	u.tables.Redirect(e, func(field string) bool { return field == collection }, u.addUpdated)
}

// BeforeCompletion normalizes every buffered type.
func (u *UnitOfWork) BeforeCompletion() {
	switch u.state {
	case StateFailed:
		observability.LogLifecycleMisuse(u.logger, u.id, hookBeforeCompletion, u.state.String())
		return
	case StateCompleting:
		return
	}
	u.buffer.Rewrite(u.tables.Normalize)
	u.state = StateCompleting
}

// OnCompletion groups the buffer and publishes the result if it is non-empty.
// A buffer that was never normalized is normalized first. Publisher errors
// are logged and never propagated.
func (u *UnitOfWork) OnCompletion() {
	if u.state == StateFailed {
		observability.LogLifecycleMisuse(u.logger, u.id, hookOnCompletion, u.state.String())
		u.reset()
		return
	}
	if u.state != StateCompleting {
		u.buffer.Rewrite(u.tables.Normalize)
	}

	ctx := ContextWithUnitOfWorkID(u.ctx, u.id)
	tuples := u.buffer.Len()
	elapsed := observability.TimedOperation()

	var err error
	if u.cfg.tracingEnabled {
		var span trace.Span
		ctx, span = u.cfg.spans.StartCommitSpan(ctx, u.id, tuples)
		defer func() { u.cfg.spans.EndSpanWithError(span, err) }()
	}

	var events []resource.OutputEvent
	err = u.buffer.Drain(func(buffered []resource.Tuple) error {
		events = Group(buffered, u.tables.Resolve)
		if len(events) == 0 {
			return nil
		}
		return u.publish(ctx, events)
	})

	// A refused batch counts as a commit that published nothing.
	published := len(events)
	if err != nil {
		published = 0
	}
	latencyMs := elapsed()
	u.cfg.metrics.RecordTuples(ctx, tuples)
	u.cfg.metrics.RecordCommit(ctx, published, latencyMs)
	observability.LogCommit(u.logger, u.id, tuples, published, latencyMs)
	u.reset()
}

// OnFailure discards the buffer. Nothing is published.
func (u *UnitOfWork) OnFailure() {
	if u.state == StateFailed {
		observability.LogLifecycleMisuse(u.logger, u.id, hookOnFailure, u.state.String())
		return
	}
	tuples := u.buffer.Len()
	u.buffer.Discard()
	u.cfg.metrics.RecordTuples(u.ctx, tuples)
	u.cfg.metrics.RecordDiscard(u.ctx, tuples)
	observability.LogDiscard(u.logger, u.id, tuples)
	u.state = StateFailed
}

func (u *UnitOfWork) add(e resource.Entity, typ resource.EventType) {
	switch u.state {
	case StateIdle:
		u.state = StateAccumulating
	case StateFailed:
		u.renew()
		u.state = StateAccumulating
	case StateCompleting:
		// Late mutations are normalized on arrival.
		typ = u.tables.Normalize(e, typ)
	}
	u.buffer.Add(e, typ)
}

func (u *UnitOfWork) addUpdated(target resource.Entity) {
	u.add(target, resource.Updated)
}

// publish hands events to the publisher, converting errors and panics into a
// logged PublishError.
func (u *UnitOfWork) publish(ctx context.Context, events []resource.OutputEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
		if err != nil {
			pubErr := &PublishError{UnitOfWorkID: u.id, Events: len(events), Err: err}
			observability.LogPublishError(u.logger, u.id, len(events), err)
			if u.cfg.onPublishError != nil {
				u.cfg.onPublishError(pubErr)
			}
			err = pubErr
		}
	}()
	return u.publisher.Publish(ctx, events)
}

func (u *UnitOfWork) reset() {
	u.buffer.Discard()
	u.state = StateIdle
	u.renew()
}
