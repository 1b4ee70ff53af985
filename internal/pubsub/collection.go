package pubsub

import (
	pubsubpkg "github.com/rmacdonaldsmith/pubsubnode-go/pkg/pubsub"
)

// CollectionNode is a container for other nodes. It holds no items itself;
// its subscriptions exist to receive notifications for events on descendant
// leaf nodes, subject to access filtering on both ends.
type CollectionNode struct {
	nodeState
	children map[string]Node
}

func newCollectionNode(service *Service, id pubsubpkg.NodeID, creator pubsubpkg.JID, opts Options) *CollectionNode {
	return &CollectionNode{
		nodeState: newNodeState(service, id, creator, opts),
		children:  make(map[string]Node),
	}
}

// AddChild registers a node under this collection. A node may be a child of
// several collections; cycles are tolerated by the fan-out walk, even
// though well-behaved hierarchies avoid them.
func (c *CollectionNode) AddChild(child Node) {
	c.mu.Lock()
	c.children[child.ID().Node] = child
	c.mu.Unlock()

	switch n := child.(type) {
	case *LeafNode:
		n.addParent(c)
	case *CollectionNode:
		n.addParent(c)
	}
}

// Children returns a snapshot of the collection's direct children.
func (c *CollectionNode) Children() []Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]Node, 0, len(c.children))
	for _, child := range c.children {
		result = append(result, child)
	}
	return result
}

// Subscribe registers a subscription on the collection. Collection
// subscribers receive notifications for events on descendant leaf nodes
// when both the collection's and the leaf's access models allow it.
func (c *CollectionNode) Subscribe(owner, target pubsubpkg.JID) (*Subscription, error) {
	return c.addSubscription(owner, target)
}

// Verify that CollectionNode implements the Node interface at compile time
var _ Node = (*CollectionNode)(nil)
