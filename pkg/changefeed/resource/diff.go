package resource

import (
	"reflect"
	"sort"
)

// StatusField is the field name carrying a resource's Status.
const StatusField = "status"

// Health is the health component of a Status.
type Health string

// Health values. The zero value means health is not reported.
const (
	HealthOK       Health = "OK"
	HealthWarning  Health = "Warning"
	HealthCritical Health = "Critical"
)

// State is the lifecycle component of a Status.
type State string

// Common states.
const (
	StateEnabled  State = "Enabled"
	StateDisabled State = "Disabled"
	StateAbsent   State = "Absent"
	StateStarting State = "Starting"
)

// Status is the value stored under StatusField.
type Status struct {
	State        State  `json:"state,omitempty"`
	Health       Health `json:"health,omitempty"`
	HealthRollup Health `json:"health_rollup,omitempty"`
}

// FieldChange is the before/after view of one field.
// A nil Old or New means the value was absent on that side.
type FieldChange struct {
	Field string
	Old   any
	New   any
}

// Diff is an immutable before/after view of one entity mutation.
// The zero Diff has no changes.
type Diff struct {
	changes map[string]FieldChange
}

// NewDiff builds a Diff. A later change for the same field replaces an
// earlier one.
func NewDiff(changes ...FieldChange) Diff {
	m := make(map[string]FieldChange, len(changes))
	for _, c := range changes {
		m[c.Field] = c
	}
	return Diff{changes: m}
}

// Pair returns the before/after values of field, if the diff covers it.
func (d Diff) Pair(field string) (FieldChange, bool) {
	c, ok := d.changes[field]
	return c, ok
}

// WasUpdatedFromOneValueToAnother reports whether field had a value before
// and after the mutation and the two values differ. Status and *Status
// holding the same value are equal.
func (d Diff) WasUpdatedFromOneValueToAnother(field string) bool {
	c, ok := d.changes[field]
	if !ok || isAbsent(c.Old) || isAbsent(c.New) {
		return false
	}
	if before, okBefore := asStatus(c.Old); okBefore {
		if after, okAfter := asStatus(c.New); okAfter {
			return before != after
		}
	}
	return !reflect.DeepEqual(c.Old, c.New)
}

// StatusPair returns the typed status values on both sides of the mutation.
// ok is false unless both sides hold a Status (or *Status).
func (d Diff) StatusPair() (before, after Status, ok bool) {
	c, found := d.changes[StatusField]
	if !found {
		return Status{}, Status{}, false
	}
	before, okBefore := asStatus(c.Old)
	after, okAfter := asStatus(c.New)
	if !okBefore || !okAfter {
		return Status{}, Status{}, false
	}
	return before, after, true
}

// ChangedFields returns the names of all fields in the diff, sorted.
func (d Diff) ChangedFields() []string {
	fields := make([]string, 0, len(d.changes))
	for f := range d.changes {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Len returns the number of fields covered by the diff.
func (d Diff) Len() int {
	return len(d.changes)
}

func asStatus(v any) (Status, bool) {
	switch s := v.(type) {
	case Status:
		return s, true
	case *Status:
		if s == nil {
			return Status{}, false
		}
		return *s, true
	}
	return Status{}, false
}

// isAbsent treats typed nil pointers, maps and slices like an untyped nil.
func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
