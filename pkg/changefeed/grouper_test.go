package changefeed_test

import (
	"testing"

	"github.com/randalmurphal/changefeed/pkg/changefeed"
	"github.com/randalmurphal/changefeed/pkg/changefeed/resource"
	"github.com/stretchr/testify/assert"
)

func identity(e resource.Entity) resource.Entity { return e }

func tuples(pairs ...any) []resource.Tuple {
	var out []resource.Tuple
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, resource.Tuple{
			Entity: pairs[i].(resource.Entity),
			Type:   pairs[i+1].(resource.EventType),
		})
	}
	return out
}

func TestGroup(t *testing.T) {
	a := &entity{class: "Chassis", uri: "/a"}
	b := &entity{class: "Chassis", uri: "/b"}
	noURI := &entity{class: "Chassis"}

	tests := []struct {
		name   string
		tuples []resource.Tuple
		want   []resource.OutputEvent
	}{
		{
			name: "empty",
		},
		{
			name:   "added dominates",
			tuples: tuples(a, resource.Updated, a, resource.Removed, a, resource.Alert, a, resource.Added),
			want:   []resource.OutputEvent{ev("/a", resource.Added)},
		},
		{
			name:   "removed dominates without added",
			tuples: tuples(a, resource.StatusChange, a, resource.Removed, a, resource.Updated),
			want:   []resource.OutputEvent{ev("/a", resource.Removed)},
		},
		{
			name:   "remaining types in canonical order",
			tuples: tuples(a, resource.Alert, a, resource.Updated, a, resource.StatusChange, a, resource.Updated),
			want: []resource.OutputEvent{
				ev("/a", resource.Updated),
				ev("/a", resource.StatusChange),
				ev("/a", resource.Alert),
			},
		},
		{
			name:   "groups keep first appearance order",
			tuples: tuples(b, resource.Updated, a, resource.Added, b, resource.Alert),
			want: []resource.OutputEvent{
				ev("/b", resource.Updated),
				ev("/b", resource.Alert),
				ev("/a", resource.Added),
			},
		},
		{
			name:   "absent context is dropped",
			tuples: tuples(noURI, resource.Added, a, resource.Updated),
			want:   []resource.OutputEvent{ev("/a", resource.Updated)},
		},
		{
			name:   "only absent contexts",
			tuples: tuples(noURI, resource.Added),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, changefeed.Group(tt.tuples, identity))
		})
	}
}

func TestGroupUsesResolvedContext(t *testing.T) {
	parent := &entity{class: "Chassis", uri: "/parent"}
	child := &entity{class: "Drive", uri: "/child"}

	resolve := func(e resource.Entity) resource.Entity {
		if e == resource.Entity(child) {
			return parent
		}
		return e
	}

	got := changefeed.Group(tuples(child, resource.Updated, parent, resource.Alert), resolve)
	assert.Equal(t, []resource.OutputEvent{
		ev("/parent", resource.Updated),
		ev("/parent", resource.Alert),
	}, got)
}
