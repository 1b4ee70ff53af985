package pubsub

import (
	"time"
)

// Item is a published unit of content. Its identity is the pair of the
// owning node's identity and the node-scoped item identifier. The payload
// is opaque to the engine and may be absent.
type Item struct {
	node      NodeID
	id        string
	publisher JID
	created   time.Time
	payload   []byte
}

// NewItem creates a new Item. The creation time must come from the cluster
// clock, not the local clock, so that last-write-wins comparisons behave
// across cluster nodes.
func NewItem(node NodeID, id string, publisher JID, created time.Time, payload []byte) *Item {
	return &Item{
		node:      node,
		id:        id,
		publisher: publisher,
		created:   created,
		payload:   payload,
	}
}

// NodeID returns the identity of the node the item was published to.
func (i *Item) NodeID() NodeID {
	return i.node
}

// ID returns the node-scoped item identifier.
func (i *Item) ID() string {
	return i.id
}

// Publisher returns the address of the user that published the item.
func (i *Item) Publisher() JID {
	return i.publisher
}

// CreatedAt returns the cluster timestamp assigned at publish time.
func (i *Item) CreatedAt() time.Time {
	return i.created
}

// Payload returns the raw payload, or nil when the item carries none.
func (i *Item) Payload() []byte {
	// Return a copy to prevent mutation
	if i.payload == nil {
		return nil
	}
	result := make([]byte, len(i.payload))
	copy(result, i.payload)
	return result
}

// HasPayload reports whether the item carries a payload.
func (i *Item) HasPayload() bool {
	return i.payload != nil
}

// RawItem is a publisher-submitted item before the engine has assigned it
// an identity. ID may be empty, in which case the engine generates one.
// Payload may be nil for bare notifications.
type RawItem struct {
	ID      string
	Payload []byte
}
