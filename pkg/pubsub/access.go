package pubsub

// AccessModelFunc adapts a plain function to the AccessModel interface.
type AccessModelFunc func(node NodeID, owner JID, target JID) bool

// CanAccessItems implements AccessModel.
func (f AccessModelFunc) CanAccessItems(node NodeID, owner JID, target JID) bool {
	return f(node, owner, target)
}

// PublisherModelFunc adapts a plain function to the PublisherModel interface.
type PublisherModelFunc func(node NodeID, publisher JID) bool

// CanPublish implements PublisherModel.
func (f PublisherModelFunc) CanPublish(node NodeID, publisher JID) bool {
	return f(node, publisher)
}

// OpenAccess grants item read access to everyone.
var OpenAccess AccessModel = AccessModelFunc(func(NodeID, JID, JID) bool {
	return true
})

// OpenPublisher allows everyone to publish.
var OpenPublisher PublisherModel = PublisherModelFunc(func(NodeID, JID) bool {
	return true
})

// Verify the adapters satisfy the interfaces at compile time
var (
	_ AccessModel    = (AccessModelFunc)(nil)
	_ PublisherModel = (PublisherModelFunc)(nil)
)
