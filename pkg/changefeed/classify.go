package changefeed

import "github.com/randalmurphal/changefeed/pkg/changefeed/resource"

// Classify maps an update diff to the event types it produces.
//
// Every update yields ResourceUpdated. A status value that changed from one
// value to another adds StatusChange, and health entering Critical from any
// other value adds Alert. Alert is edge-triggered: Critical to Critical and
// recovery from Critical never produce it.
func Classify(d resource.Diff) []resource.EventType {
	types := []resource.EventType{resource.Updated}

	if d.WasUpdatedFromOneValueToAnother(resource.StatusField) {
		types = append(types, resource.StatusChange)
	}

	if before, after, ok := d.StatusPair(); ok &&
		before.Health != resource.HealthCritical &&
		after.Health == resource.HealthCritical {
		types = append(types, resource.Alert)
	}
	return types
}
