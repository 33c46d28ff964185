package metadata

import (
	"context"
	"log/slog"
	"reflect"
	"runtime/debug"
	"sort"

	"github.com/randalmurphal/changefeed/pkg/changefeed/observability"
	"github.com/randalmurphal/changefeed/pkg/changefeed/resource"
)

// Option configures Tables at build time.
type Option func(*Tables)

// WithLogger sets the logger used to report resolution failures.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tables) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithMetrics records every resolution failure on the given recorder.
func WithMetrics(metrics observability.MetricsRecorder) Option {
	return func(t *Tables) {
		if metrics != nil {
			t.metrics = metrics
		}
	}
}

// WithFailureHandler registers a callback invoked for every resolution failure,
// after it has been logged.
func WithFailureHandler(fn func(*ResolutionError)) Option {
	return func(t *Tables) {
		t.onFailure = fn
	}
}

type redirection struct {
	key         string
	sourceField string
	target      TargetFunc
}

type classTable struct {
	eventable    bool
	multiSource  bool
	suppressed   map[string]struct{}
	origin       OriginFunc
	resolver     ResolverFunc
	redirections []redirection
}

// Tables is the compiled, read-only view of an Inventory. All methods are safe
// for concurrent use. Classes that were never registered are treated as
// non-eventable with no declarations.
type Tables struct {
	classes   map[resource.Class]*classTable
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	onFailure func(*ResolutionError)
}

func newTables(opts ...Option) *Tables {
	t := &Tables{
		classes: make(map[resource.Class]*classTable),
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Classes returns every compiled class, sorted.
func (t *Tables) Classes() []resource.Class {
	classes := make([]resource.Class, 0, len(t.classes))
	for c := range t.classes {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	return classes
}

// Eventable reports whether the class opted into change notification.
func (t *Tables) Eventable(class resource.Class) bool {
	ct, ok := t.classes[class]
	return ok && ct.eventable
}

// HasOrigin reports whether the class declares (or inherits) an origin provider.
func (t *Tables) HasOrigin(class resource.Class) bool {
	ct, ok := t.classes[class]
	return ok && ct.origin != nil
}

// ClassSuppressed reports whether changes to e are never recorded.
func (t *Tables) ClassSuppressed(e resource.Entity) bool {
	return !t.Eventable(e.Class())
}

// FieldSuppressed reports whether changes to the named field or collection of
// e are never recorded.
func (t *Tables) FieldSuppressed(e resource.Entity, name string) bool {
	ct, ok := t.classes[e.Class()]
	if !ok || !ct.eventable {
		return true
	}
	_, suppressed := ct.suppressed[name]
	return suppressed
}

// Redirect calls sink with the target of every redirection of e's class whose
// source field satisfies match. Targets that fail to resolve, or resolve to
// nothing, are skipped.
func (t *Tables) Redirect(e resource.Entity, match func(field string) bool, sink func(resource.Entity)) {
	ct, ok := t.classes[e.Class()]
	if !ok {
		return
	}
	for _, r := range ct.redirections {
		if !match(r.sourceField) {
			continue
		}
		if target, ok := t.invoke(e, "redirect:"+r.key, r.target); ok {
			sink(target)
		}
	}
}

// Resolve returns the entity whose event source context should be used when
// reporting a change to e. Without an origin provider it returns e.
func (t *Tables) Resolve(e resource.Entity) resource.Entity {
	resolved := e
	if ct, ok := t.classes[e.Class()]; ok && ct.origin != nil {
		if origin, ok := t.invoke(e, "origin", ct.origin); ok {
			resolved = origin
		}
	}

	ct, ok := t.classes[resolved.Class()]
	if !ok || !ct.multiSource || ct.resolver == nil {
		return resolved
	}
	if picked, ok := t.invoke(resolved, "resolver", ct.resolver); ok {
		return picked
	}
	return resolved
}

// Normalize maps the event type recorded for e to the type it is reported as.
// Complementary entities only ever report updates; entities reported through
// an origin keep alerts and status changes but otherwise report updates.
func (t *Tables) Normalize(e resource.Entity, typ resource.EventType) resource.EventType {
	if resource.IsComplementary(e) {
		return resource.Updated
	}
	if t.HasOrigin(e.Class()) {
		if typ == resource.Alert || typ == resource.StatusChange {
			return typ
		}
		return resource.Updated
	}
	return typ
}

// invoke calls a provider, converting errors, panics and nil results into
// "no result".
func (t *Tables) invoke(e resource.Entity, provider string, fn ProviderFunc) (resource.Entity, bool) {
	result, err := call(fn, e)
	if err != nil {
		t.report(&ResolutionError{
			Class:    e.Class(),
			EntityID: e.ID(),
			Provider: provider,
			Err:      err,
		})
		return nil, false
	}
	if isNilEntity(result) {
		return nil, false
	}
	return result, true
}

func (t *Tables) report(err *ResolutionError) {
	observability.LogResolutionFailure(t.logger, string(err.Class), err.EntityID, err.Provider, err.Err)
	t.metrics.RecordResolutionFailure(context.Background(), string(err.Class), err.Provider)
	if t.onFailure != nil {
		t.onFailure(err)
	}
}

func call(fn ProviderFunc, e resource.Entity) (result resource.Entity, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return fn(e)
}

func isNilEntity(e resource.Entity) bool {
	if e == nil {
		return true
	}
	rv := reflect.ValueOf(e)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
