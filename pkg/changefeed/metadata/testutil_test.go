package metadata_test

import (
	"github.com/randalmurphal/changefeed/pkg/changefeed/resource"
)

// node is a minimal Entity for metadata tests.
type node struct {
	class         resource.Class
	id            string
	uri           resource.URI
	complementary bool
	parent        *node
	peer          *node
}

func (n *node) Class() resource.Class            { return n.class }
func (n *node) ID() string                       { return n.id }
func (n *node) EventSourceContext() resource.URI { return n.uri }
func (n *node) IsComplementary() bool            { return n.complementary }

func parentOf(e resource.Entity) (resource.Entity, error) {
	p := e.(*node).parent
	if p == nil {
		return nil, nil
	}
	return p, nil
}

func peerOf(e resource.Entity) (resource.Entity, error) {
	return e.(*node).peer, nil
}

func anyField(string) bool { return true }

func collect(dst *[]resource.Entity) func(resource.Entity) {
	return func(e resource.Entity) {
		*dst = append(*dst, e)
	}
}
