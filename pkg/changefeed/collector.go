package changefeed

import "github.com/randalmurphal/changefeed/pkg/changefeed/resource"

// Collector is the ordered tuple buffer of one unit of work.
// The zero value is an empty buffer ready to use.
type Collector struct {
	tuples []resource.Tuple
}

// Add appends one tuple.
func (c *Collector) Add(e resource.Entity, typ resource.EventType) {
	c.tuples = append(c.tuples, resource.Tuple{Entity: e, Type: typ})
}

// AddAll appends one tuple per type, preserving order.
func (c *Collector) AddAll(e resource.Entity, types []resource.EventType) {
	for _, typ := range types {
		c.Add(e, typ)
	}
}

// Rewrite replaces every buffered type with f(entity, type), in place.
func (c *Collector) Rewrite(f func(resource.Entity, resource.EventType) resource.EventType) {
	for i := range c.tuples {
		c.tuples[i].Type = f(c.tuples[i].Entity, c.tuples[i].Type)
	}
}

// Drain hands the buffered tuples to f and clears the buffer afterwards,
// even if f returns an error or panics.
func (c *Collector) Drain(f func([]resource.Tuple) error) error {
	tuples := c.tuples
	defer c.Discard()
	return f(tuples)
}

// Discard clears the buffer.
func (c *Collector) Discard() {
	c.tuples = nil
}

// Len returns the number of buffered tuples.
func (c *Collector) Len() int {
	return len(c.tuples)
}

// Tuples returns a copy of the buffered tuples.
func (c *Collector) Tuples() []resource.Tuple {
	if len(c.tuples) == 0 {
		return nil
	}
	out := make([]resource.Tuple, len(c.tuples))
	copy(out, c.tuples)
	return out
}
