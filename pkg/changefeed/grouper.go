package changefeed

import "github.com/randalmurphal/changefeed/pkg/changefeed/resource"

// Group collapses buffered tuples into output events.
//
// Each tuple is reported against the event source context of resolve(entity);
// tuples without one are dropped. Groups keep the order in which their URI
// first appeared. Within a group ResourceAdded dominates everything,
// ResourceRemoved dominates everything but ResourceAdded, and otherwise every
// distinct type is emitted in canonical order.
func Group(tuples []resource.Tuple, resolve func(resource.Entity) resource.Entity) []resource.OutputEvent {
	if len(tuples) == 0 {
		return nil
	}

	var order []resource.URI
	groups := make(map[resource.URI]map[resource.EventType]struct{})

	for _, t := range tuples {
		uri := resolve(t.Entity).EventSourceContext()
		if uri == "" {
			continue
		}
		set, ok := groups[uri]
		if !ok {
			set = make(map[resource.EventType]struct{})
			groups[uri] = set
			order = append(order, uri)
		}
		set[t.Type] = struct{}{}
	}

	var out []resource.OutputEvent
	for _, uri := range order {
		for _, typ := range collapse(groups[uri]) {
			out = append(out, resource.OutputEvent{URI: uri, Type: typ})
		}
	}
	return out
}

func collapse(set map[resource.EventType]struct{}) []resource.EventType {
	if _, ok := set[resource.Added]; ok {
		return []resource.EventType{resource.Added}
	}
	if _, ok := set[resource.Removed]; ok {
		return []resource.EventType{resource.Removed}
	}
	types := make([]resource.EventType, 0, len(set))
	for _, typ := range resource.EventTypes {
		if _, ok := set[typ]; ok {
			types = append(types, typ)
		}
	}
	return types
}
