package changefeed

import "github.com/randalmurphal/changefeed/pkg/changefeed/resource"

// Hooks is the contract the persistence runtime calls during one unit of
// work. The runtime must call exactly one of OnCompletion or OnFailure to end
// a unit of work, and must preserve call order.
type Hooks interface {
	ResourceAdded(e resource.Entity)
	ResourceUpdated(e resource.Entity, d resource.Diff)
	CollectionResourceUpdated(e resource.Entity, collection string)
	ResourceRemoved(e resource.Entity)
	BeforeCompletion()
	OnCompletion()
	OnFailure()
}

// NopHooks implements every hook as a no-op. Embed it to implement only the
// hooks a listener cares about.
type NopHooks struct{}

var _ Hooks = NopHooks{}

func (NopHooks) ResourceAdded(resource.Entity)                     {}
func (NopHooks) ResourceUpdated(resource.Entity, resource.Diff)    {}
func (NopHooks) CollectionResourceUpdated(resource.Entity, string) {}
func (NopHooks) ResourceRemoved(resource.Entity)                   {}
func (NopHooks) BeforeCompletion()                                 {}
func (NopHooks) OnCompletion()                                     {}
func (NopHooks) OnFailure()                                        {}

// Chain returns Hooks that forward every call to each of hooks in order.
// Nil entries are skipped.
func Chain(hooks ...Hooks) Hooks {
	var chain chained
	for _, h := range hooks {
		if h != nil {
			chain = append(chain, h)
		}
	}
	return chain
}

type chained []Hooks

func (c chained) ResourceAdded(e resource.Entity) {
	for _, h := range c {
		h.ResourceAdded(e)
	}
}

func (c chained) ResourceUpdated(e resource.Entity, d resource.Diff) {
	for _, h := range c {
		h.ResourceUpdated(e, d)
	}
}

func (c chained) CollectionResourceUpdated(e resource.Entity, collection string) {
	for _, h := range c {
		h.CollectionResourceUpdated(e, collection)
	}
}

func (c chained) ResourceRemoved(e resource.Entity) {
	for _, h := range c {
		h.ResourceRemoved(e)
	}
}

func (c chained) BeforeCompletion() {
	for _, h := range c {
		h.BeforeCompletion()
	}
}

func (c chained) OnCompletion() {
	for _, h := range c {
		h.OnCompletion()
	}
}

func (c chained) OnFailure() {
	for _, h := range c {
		h.OnFailure()
	}
}
