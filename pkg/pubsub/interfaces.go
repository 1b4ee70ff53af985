package pubsub

import (
	"context"
	"io"
	"time"
)

// ClusterClock supplies a loosely synchronized, cluster-wide timestamp.
// Monotonicity is NOT guaranteed across cluster nodes; consumers that care
// about ordering must tolerate out-of-order timestamps (the engine's
// last-write-wins rule exists for exactly this reason).
type ClusterClock interface {
	// Now returns the current cluster time.
	Now() time.Time
}

// PersistenceProvider is the durable mirror of published items. It is a
// mirror, not a second owner: the node that published an item owns it.
//
// All methods must be safe for concurrent use from arbitrarily many nodes
// and callable from background goroutines. Lookups return (nil, nil) when
// no matching item exists; absence is a valid, non-error outcome.
type PersistenceProvider interface {
	io.Closer

	// SaveItem durably stores an item. Saving an item whose identifier
	// already exists for the node replaces the previous record. After the
	// save, at most maxItems items are retained for the node; the oldest
	// records beyond the bound are trimmed.
	SaveItem(ctx context.Context, item *Item, maxItems int) error

	// RemoveItem durably deletes an item.
	RemoveItem(ctx context.Context, item *Item) error

	// PurgeNode deletes every stored item of the node except the most
	// recently created one.
	PurgeNode(ctx context.Context, node NodeID) error

	// GetItems returns up to limit items for the node, most recent first.
	GetItems(ctx context.Context, node NodeID, limit int) ([]*Item, error)

	// GetItem returns the item with the given identifier, or (nil, nil).
	GetItem(ctx context.Context, node NodeID, itemID string) (*Item, error)

	// GetLastItem returns the most recently created item, or (nil, nil).
	GetLastItem(ctx context.Context, node NodeID) (*Item, error)
}

// AccessModel answers whether a subscriber may read items on a node.
// Implementations are supplied per node by the surrounding server (open,
// presence-based, roster-group, whitelist, ...); the engine only consumes
// the answer.
type AccessModel interface {
	// CanAccessItems reports whether the subscription owner, subscribed
	// at the target address, may read items published to the node.
	CanAccessItems(node NodeID, owner JID, target JID) bool
}

// PublisherModel answers whether a user may publish to a node.
type PublisherModel interface {
	// CanPublish reports whether the publisher may publish to the node.
	CanPublish(node NodeID, publisher JID) bool
}

// SessionRegistry exposes the live sessions of a user. It is consumed only
// for PEP owner-resource delivery, where every connected session of the
// service owner must be notified regardless of subscriptions.
type SessionRegistry interface {
	// ConnectedSessions returns the full addresses of the user's live
	// sessions. An empty result is not an error.
	ConnectedSessions(owner JID) []JID
}

// NotificationSender is the transport boundary. The engine hands it one
// notification per recipient; the transport owns framing and delivery.
// A failure to deliver to one recipient must not affect the others, so
// errors are reported per call and the engine logs and moves on.
type NotificationSender interface {
	Send(n Notification) error
}

// EventListener observes node state changes. Listeners are invoked
// synchronously after the triggering operation has updated in-memory state
// and computed its fan-out; they must not block for long.
type EventListener interface {
	// ItemsPublished is invoked after items were published to a node.
	// The slice is empty when the node does not require items.
	ItemsPublished(node NodeID, items []*Item)

	// ItemsDeleted is invoked after items were deleted from a node.
	ItemsDeleted(node NodeID, items []*Item)
}
