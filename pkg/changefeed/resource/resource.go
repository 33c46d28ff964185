// Package resource defines the vocabulary shared by every changefeed package:
// entities and their classes, event types, diffs and the published output.
package resource

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Class is the type tag of an entity. Per-class metadata is keyed by it.
type Class string

// URI is the externally addressable location of a resource.
// The empty URI means the entity has no event source context.
type URI string

// Entity is any persisted domain object that can take part in change
// notification.
type Entity interface {
	// Class returns the type tag used to look up registered metadata.
	Class() Class

	// ID returns the stable identity of the entity.
	ID() string

	// EventSourceContext returns the address at which changes to this
	// entity are reported, or "" when it has none.
	EventSourceContext() URI
}

// Complementary is implemented by entities that may exist solely to complete
// another entity's state. Such entities are never independently addressable.
type Complementary interface {
	IsComplementary() bool
}

// IsComplementary reports whether e implements Complementary and says so.
func IsComplementary(e Entity) bool {
	c, ok := e.(Complementary)
	return ok && c.IsComplementary()
}

// EventType is the kind of change reported for a resource.
type EventType int

// Event types in canonical order. Grouped output lists types in this order.
const (
	Added EventType = iota + 1
	Removed
	Updated
	StatusChange
	Alert
)

// EventTypes lists every event type in canonical order.
var EventTypes = []EventType{Added, Removed, Updated, StatusChange, Alert}

var eventTypeNames = map[EventType]string{
	Added:        "ResourceAdded",
	Removed:      "ResourceRemoved",
	Updated:      "ResourceUpdated",
	StatusChange: "StatusChange",
	Alert:        "Alert",
}

var eventTypeAliases = map[string]EventType{
	"ADDED":         Added,
	"REMOVED":       Removed,
	"UPDATED":       Updated,
	"STATUS_CHANGE": StatusChange,
	"ALERT":         Alert,
}

// String returns the wire name of the event type.
func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	_, ok := eventTypeNames[t]
	return ok
}

// ParseEventType accepts either the wire name ("ResourceAdded") or the
// upper-snake name ("ADDED").
func ParseEventType(s string) (EventType, error) {
	for t, name := range eventTypeNames {
		if name == s {
			return t, nil
		}
	}
	if t, ok := eventTypeAliases[strings.ToUpper(s)]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("unknown event type %q", s)
}

// MarshalJSON encodes the wire name.
func (t EventType) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("marshal event type: invalid value %d", int(t))
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes either accepted name.
func (t *EventType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseEventType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// OutputEvent is one published notification. Several may share a URI.
type OutputEvent struct {
	URI  URI       `json:"origin_of_condition"`
	Type EventType `json:"event_type"`
}

// String renders the event as "Type@URI".
func (e OutputEvent) String() string {
	return e.Type.String() + "@" + string(e.URI)
}

// Tuple is a buffered (entity, event type) pair awaiting grouping.
type Tuple struct {
	Entity Entity
	Type   EventType
}
