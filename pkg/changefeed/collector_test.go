package changefeed_test

import (
	"errors"
	"testing"

	"github.com/randalmurphal/changefeed/pkg/changefeed"
	"github.com/randalmurphal/changefeed/pkg/changefeed/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorPreservesOrder(t *testing.T) {
	var c changefeed.Collector
	assert.Zero(t, c.Len())
	assert.Nil(t, c.Tuples())

	c.Add(chassis, resource.Removed)
	c.AddAll(system, []resource.EventType{resource.Updated, resource.StatusChange})

	assert.Equal(t, []resource.Tuple{
		{Entity: chassis, Type: resource.Removed},
		{Entity: system, Type: resource.Updated},
		{Entity: system, Type: resource.StatusChange},
	}, c.Tuples())
}

func TestCollectorTuplesIsACopy(t *testing.T) {
	var c changefeed.Collector
	c.Add(chassis, resource.Added)

	tuples := c.Tuples()
	tuples[0].Type = resource.Alert
	assert.Equal(t, resource.Added, c.Tuples()[0].Type)
}

func TestCollectorRewrite(t *testing.T) {
	var c changefeed.Collector
	c.Add(chassis, resource.Added)
	c.Add(system, resource.Removed)

	c.Rewrite(func(e resource.Entity, typ resource.EventType) resource.EventType {
		if e == resource.Entity(system) {
			return resource.Updated
		}
		return typ
	})

	tuples := c.Tuples()
	assert.Equal(t, resource.Added, tuples[0].Type)
	assert.Equal(t, resource.Updated, tuples[1].Type)
}

func TestCollectorDrain(t *testing.T) {
	t.Run("hands over buffered tuples and clears", func(t *testing.T) {
		var c changefeed.Collector
		c.Add(chassis, resource.Added)

		var got []resource.Tuple
		err := c.Drain(func(tuples []resource.Tuple) error {
			got = tuples
			return nil
		})
		require.NoError(t, err)
		assert.Len(t, got, 1)
		assert.Zero(t, c.Len())
	})

	t.Run("clears when the drain function fails", func(t *testing.T) {
		var c changefeed.Collector
		c.Add(chassis, resource.Added)

		boom := errors.New("boom")
		err := c.Drain(func([]resource.Tuple) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, c.Len())
	})

	t.Run("clears when the drain function panics", func(t *testing.T) {
		var c changefeed.Collector
		c.Add(chassis, resource.Added)

		assert.Panics(t, func() {
			_ = c.Drain(func([]resource.Tuple) error { panic("boom") })
		})
		assert.Zero(t, c.Len())
	})
}

func TestCollectorDiscard(t *testing.T) {
	var c changefeed.Collector
	c.Add(chassis, resource.Added)
	c.Discard()
	assert.Zero(t, c.Len())
}
