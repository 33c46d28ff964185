package changefeed

import (
	"github.com/randalmurphal/changefeed/pkg/changefeed/metadata"
	"github.com/randalmurphal/changefeed/pkg/changefeed/observability"
	"github.com/randalmurphal/changefeed/pkg/changefeed/resource"
)

// Gate sits between the persistence runtime and a UnitOfWork. Mutation hooks
// for suppressed classes or fields are dropped; the boundary hooks always pass
// through.
type Gate struct {
	uow    *UnitOfWork
	tables *metadata.Tables
}

var _ Hooks = (*Gate)(nil)

// NewGate wraps uow with the suppression rules of tables.
func NewGate(uow *UnitOfWork, tables *metadata.Tables) *Gate {
	return &Gate{uow: uow, tables: tables}
}

// UnitOfWork returns the wrapped unit of work, for inspection.
func (g *Gate) UnitOfWork() *UnitOfWork { return g.uow }

// ResourceAdded forwards unless the class is suppressed.
func (g *Gate) ResourceAdded(e resource.Entity) {
	if g.classSuppressed(hookResourceAdded, e) {
		return
	}
	g.uow.ResourceAdded(e)
}

// ResourceUpdated forwards unless the class is suppressed or every field the
// diff covers is suppressed.
func (g *Gate) ResourceUpdated(e resource.Entity, d resource.Diff) {
	if g.classSuppressed(hookResourceUpdated, e) {
		return
	}
	if fields := d.ChangedFields(); len(fields) > 0 && g.allSuppressed(e, fields) {
		g.suppressed(hookResourceUpdated, e, fields[0])
		return
	}
	g.uow.ResourceUpdated(e, d)
}

// CollectionResourceUpdated forwards unless the collection is suppressed.
func (g *Gate) CollectionResourceUpdated(e resource.Entity, collection string) {
	if g.tables.FieldSuppressed(e, collection) {
		g.suppressed(hookCollectionUpdated, e, collection)
		return
	}
	g.uow.CollectionResourceUpdated(e, collection)
}

// ResourceRemoved forwards unless the class is suppressed.
func (g *Gate) ResourceRemoved(e resource.Entity) {
	if g.classSuppressed(hookResourceRemoved, e) {
		return
	}
	g.uow.ResourceRemoved(e)
}

// BeforeCompletion always forwards.
func (g *Gate) BeforeCompletion() { g.uow.BeforeCompletion() }

// OnCompletion always forwards.
func (g *Gate) OnCompletion() { g.uow.OnCompletion() }

// OnFailure always forwards.
func (g *Gate) OnFailure() { g.uow.OnFailure() }

func (g *Gate) classSuppressed(hook string, e resource.Entity) bool {
	if !g.tables.ClassSuppressed(e) {
		return false
	}
	g.suppressed(hook, e, "")
	return true
}

func (g *Gate) allSuppressed(e resource.Entity, fields []string) bool {
	for _, f := range fields {
		if !g.tables.FieldSuppressed(e, f) {
			return false
		}
	}
	return true
}

func (g *Gate) suppressed(hook string, e resource.Entity, field string) {
	observability.LogSuppressed(g.uow.logger, hook, string(e.Class()), field)
	g.uow.cfg.metrics.RecordSuppressed(g.uow.ctx, hook, string(e.Class()))
}
