// Package metadata holds the per-class declarations that shape change
// notification: which classes are eventable, which fields are suppressed,
// where a change is redirected and which entity a change is reported against.
//
// Declarations are registered once at start-up on an Inventory and compiled
// into immutable Tables:
//
//	inv := metadata.NewInventory()
//	inv.MustRegister(metadata.ClassSpec{
//	    Class:     "Drive",
//	    Eventable: true,
//	    Origin:    func(e resource.Entity) (resource.Entity, error) { return e.(*Drive).Chassis, nil },
//	    Redirects: []metadata.Redirect{{Key: "volumes", SourceFields: []string{"capacity"}}},
//	    Targets:   map[string]metadata.TargetFunc{"volumes": driveVolume},
//	})
//	tables, err := inv.Build()
package metadata

import (
	"sync"

	"github.com/randalmurphal/changefeed/pkg/changefeed/resource"
)

// ProviderFunc maps an entity to a related entity. A nil result means
// "no related entity".
type ProviderFunc func(resource.Entity) (resource.Entity, error)

// TargetFunc returns the entity that should also be notified when a
// redirection source field changes.
type TargetFunc = ProviderFunc

// OriginFunc returns the entity whose event source context is used when
// reporting changes to the receiver.
type OriginFunc = ProviderFunc

// ResolverFunc picks the reporting entity for a multi-source class.
type ResolverFunc = ProviderFunc

// Redirect declares that a change to any of SourceFields should also notify
// the entity returned by the target provider registered under Key.
type Redirect struct {
	Key          string
	SourceFields []string
}

// ClassSpec is the static declaration for one class.
type ClassSpec struct {
	// Class is the type tag. Required.
	Class resource.Class

	// Parent optionally names a registered class whose suppressed fields,
	// redirections and origin provider are inherited.
	Parent resource.Class

	// Eventable opts the class into change notification. Not inherited.
	Eventable bool

	// SuppressedFields are field or collection names whose changes are
	// never recorded.
	SuppressedFields []string

	// Origin, when set, redirects reporting to another entity.
	Origin OriginFunc

	// MultiSource marks that one logical resource may be backed by several
	// upstream origins; the resolver registered for the class picks one.
	// Not inherited.
	MultiSource bool

	// Redirects pair source fields with a target key.
	Redirects []Redirect

	// Targets maps a redirection key to its target provider.
	Targets map[string]TargetFunc
}

// Inventory collects class declarations and multi-source resolvers.
// It is safe for concurrent registration.
type Inventory struct {
	mu        sync.RWMutex
	specs     map[resource.Class]ClassSpec
	order     []resource.Class
	resolvers map[resource.Class]ResolverFunc
}

// NewInventory creates an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{
		specs:     make(map[resource.Class]ClassSpec),
		resolvers: make(map[resource.Class]ResolverFunc),
	}
}

// Register adds a class declaration.
func (i *Inventory) Register(spec ClassSpec) error {
	if spec.Class == "" {
		return ErrEmptyClass
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if _, exists := i.specs[spec.Class]; exists {
		return &ClassError{Class: spec.Class, Err: ErrDuplicateClass}
	}
	i.specs[spec.Class] = spec
	i.order = append(i.order, spec.Class)
	return nil
}

// MustRegister adds a class declaration, panicking on error.
func (i *Inventory) MustRegister(spec ClassSpec) {
	if err := i.Register(spec); err != nil {
		panic("metadata: " + err.Error())
	}
}

// RegisterResolver sets the resolver used for entities of exactly class when
// that class is marked MultiSource. A later registration replaces an earlier one.
func (i *Inventory) RegisterResolver(class resource.Class, fn ResolverFunc) error {
	if class == "" {
		return ErrEmptyClass
	}
	if fn == nil {
		return &ClassError{Class: class, Err: ErrNilResolver}
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.resolvers[class] = fn
	return nil
}

// Has returns true if the class was registered.
func (i *Inventory) Has(class resource.Class) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.specs[class]
	return ok
}

// Len returns the number of registered classes.
func (i *Inventory) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.specs)
}

// Build compiles every registered class into immutable lookup tables.
// Inheritance is resolved here, so parents may be registered after children.
func (i *Inventory) Build(opts ...Option) (*Tables, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	tables := newTables(opts...)
	for _, class := range i.order {
		chain, err := i.lineage(class)
		if err != nil {
			return nil, err
		}
		table, err := compile(chain)
		if err != nil {
			return nil, &ClassError{Class: class, Err: err}
		}
		table.resolver = i.resolvers[class]
		tables.classes[class] = table
	}
	return tables, nil
}

// lineage returns the class followed by its ancestors, nearest first.
func (i *Inventory) lineage(class resource.Class) ([]ClassSpec, error) {
	seen := make(map[resource.Class]bool)
	var chain []ClassSpec

	for current := class; current != ""; {
		if seen[current] {
			return nil, &ClassError{Class: class, Err: ErrInheritanceCycle}
		}
		seen[current] = true

		spec, ok := i.specs[current]
		if !ok {
			return nil, &ClassError{Class: chain[len(chain)-1].Class, Err: ErrUnknownParent}
		}
		chain = append(chain, spec)
		current = spec.Parent
	}
	return chain, nil
}

// compile merges a lineage into one class table. Ancestors contribute first
// so that redirections keep declaration order from the root down.
func compile(chain []ClassSpec) (*classTable, error) {
	own := chain[0]
	table := &classTable{
		eventable:   own.Eventable,
		multiSource: own.MultiSource,
		suppressed:  make(map[string]struct{}),
	}

	targets := make(map[string]TargetFunc)
	type source struct{ key, field string }
	var sources []source
	seenSource := make(map[source]bool)

	for idx := len(chain) - 1; idx >= 0; idx-- {
		spec := chain[idx]
		for _, f := range spec.SuppressedFields {
			table.suppressed[f] = struct{}{}
		}
		if spec.Origin != nil {
			table.origin = spec.Origin
		}
		for key, fn := range spec.Targets {
			if fn != nil {
				targets[key] = fn
			}
		}
		for _, r := range spec.Redirects {
			for _, f := range r.SourceFields {
				s := source{key: r.Key, field: f}
				if !seenSource[s] {
					seenSource[s] = true
					sources = append(sources, s)
				}
			}
		}
	}

	for _, s := range sources {
		target, ok := targets[s.key]
		if !ok {
			return nil, &redirectKeyError{key: s.key}
		}
		table.redirections = append(table.redirections, redirection{
			key:         s.key,
			sourceField: s.field,
			target:      target,
		})
	}
	return table, nil
}

type redirectKeyError struct {
	key string
}

func (e *redirectKeyError) Error() string {
	return "redirect " + e.key + ": " + ErrMissingTarget.Error()
}

func (e *redirectKeyError) Unwrap() error {
	return ErrMissingTarget
}
