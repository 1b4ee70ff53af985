package pubsub

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	pubsubpkg "github.com/rmacdonaldsmith/pubsubnode-go/pkg/pubsub"
)

// LeafNode is a node that contains published items only; it is not a
// container for other nodes. It owns the publish/delete/retrieve/purge
// pipeline for its items and keeps a transient pointer to the most
// recently published item.
type LeafNode struct {
	nodeState

	persistItems      bool
	maxItems          int
	maxPayloadSize    int
	sendItemSubscribe bool

	// lastPublished caches the most recent item. It is a cache, never the
	// source of truth: the durable store is authoritative once an item is
	// persisted. Guarded by the nodeState mutex; never serialized, always
	// recomputable from the store. In a cluster the most recent publish
	// may have happened on a different machine, hence the last-write-wins
	// rule in setLastPublished.
	lastPublished *pubsubpkg.Item
}

// LeafOptions holds the leaf-specific configuration.
type LeafOptions struct {
	// PersistItems stores published items durably. When false only the
	// last published item is ever retained and MaxItems is forced to 1.
	PersistItems bool

	// MaxItems bounds the number of retained published items.
	MaxItems int

	// MaxPayloadSize bounds the payload size in bytes.
	MaxPayloadSize int

	// SendItemOnSubscribe sends the last published item to new subscribers.
	SendItemOnSubscribe bool
}

// DefaultLeafOptions returns the leaf defaults.
func DefaultLeafOptions() LeafOptions {
	return LeafOptions{
		PersistItems:        true,
		MaxItems:            defaultMaxItems,
		MaxPayloadSize:      defaultMaxPayloadSize,
		SendItemOnSubscribe: true,
	}
}

func newLeafNode(service *Service, id pubsubpkg.NodeID, creator pubsubpkg.JID, opts Options, leafOpts LeafOptions) *LeafNode {
	node := &LeafNode{
		nodeState:         newNodeState(service, id, creator, opts),
		persistItems:      leafOpts.PersistItems,
		maxItems:          leafOpts.MaxItems,
		maxPayloadSize:    leafOpts.MaxPayloadSize,
		sendItemSubscribe: leafOpts.SendItemOnSubscribe,
	}
	if node.maxItems <= 0 {
		node.maxItems = defaultMaxItems
	}
	if !node.persistItems {
		// Transient nodes always retain exactly the last published item.
		node.maxItems = 1
	}
	return node
}

// PersistsItems reports whether published items are stored durably.
func (n *LeafNode) PersistsItems() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.persistItems
}

// MaxItems returns the retention bound. Always 1 when persistence is off.
func (n *LeafNode) MaxItems() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.maxItems
}

// MaxPayloadSize returns the payload size bound in bytes.
func (n *LeafNode) MaxPayloadSize() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.maxPayloadSize
}

// SendsItemOnSubscribe reports whether new subscribers receive the last
// published item.
func (n *LeafNode) SendsItemOnSubscribe() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sendItemSubscribe
}

// IsItemRequired reports whether publishes to this node must include an
// item. Transient nodes that do not deliver payloads require none; items
// only exist where they can be persisted or referenced by identifier.
func (n *LeafNode) IsItemRequired() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.persistItems || n.opts.DeliverPayloads
}

// setLastPublished updates the cache with a last-write-wins rule: the new
// item only replaces the cache when none exists or its creation time is
// strictly later. Items from other cluster nodes may arrive out of order.
func (n *LeafNode) setLastPublished(item *pubsubpkg.Item) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastPublished == nil || item.CreatedAt().After(n.lastPublished.CreatedAt()) {
		n.lastPublished = item
	}
}

// PublishItems publishes a batch of raw items to the node and returns the
// constructed items. Caller-supplied identifiers are kept; missing ones are
// generated. Durable writes are handed to the background write queue; the
// call returns once in-memory state and the fan-out are computed, so the
// store may lag behind for a short window.
//
// Every affiliate in the fan-out set receives one notification carrying
// the whole batch. Item construction is skipped entirely when the node
// does not require items, reducing the publish to a bare notification.
func (n *LeafNode) PublishItems(ctx context.Context, publisher pubsubpkg.JID, rawItems []pubsubpkg.RawItem) ([]*pubsubpkg.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !n.Options().PublisherModel.CanPublish(n.id, publisher) {
		return nil, ErrPublishNotAuthorized
	}

	itemRequired := n.IsItemRequired()
	if itemRequired && len(rawItems) == 0 {
		return nil, ErrItemRequired
	}

	var published []*pubsubpkg.Item
	if itemRequired {
		persist := n.PersistsItems()
		maxItems := n.MaxItems()
		for _, raw := range rawItems {
			itemID := raw.ID
			if itemID == "" {
				itemID = uuid.NewString()
			}
			item := pubsubpkg.NewItem(n.id, itemID, publisher, n.service.clock.Now(), raw.Payload)
			published = append(published, item)
			n.setLastPublished(item)
			if persist {
				n.service.writes.Save(item, maxItems)
			}
		}
	}

	affiliates := n.AffiliatesToNotify()
	n.log.WithField("publisher", publisher.String()).
		WithField("items", len(published)).
		WithField("affiliates", len(affiliates)).
		Debug("publishing items")

	notifyItems := n.notifiableItems(published)
	for _, affiliate := range affiliates {
		n.service.deliver(pubsubpkg.Notification{
			Node:  n.id,
			To:    affiliate.JID(),
			Kind:  pubsubpkg.ItemsPublished,
			Items: notifyItems,
		})
	}

	n.service.dispatcher.itemsPublished(n.id, published)
	return published, nil
}

// notifiableItems strips payloads when the node is configured not to
// deliver them; subscribers then fetch by identifier instead.
func (n *LeafNode) notifiableItems(items []*pubsubpkg.Item) []*pubsubpkg.Item {
	if len(items) == 0 || n.Options().DeliverPayloads {
		return items
	}
	stripped := make([]*pubsubpkg.Item, len(items))
	for i, item := range items {
		stripped[i] = pubsubpkg.NewItem(item.NodeID(), item.ID(), item.Publisher(), item.CreatedAt(), nil)
	}
	return stripped
}

// DeleteItems deletes the given items from the node. Durable deletes are
// handed to the background write queue. When the node notifies on retract,
// every affiliate in the fan-out set receives one retraction; for a
// personal eventing service, every live session of the service owner
// additionally receives the same retraction.
func (n *LeafNode) DeleteItems(ctx context.Context, items []*pubsubpkg.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, item := range items {
		n.service.writes.Remove(item)

		n.mu.Lock()
		if n.lastPublished != nil && n.lastPublished.ID() == item.ID() {
			// The deleted item was the cached last item; force a lazy
			// reload from the store on next access.
			n.lastPublished = nil
		}
		n.mu.Unlock()
	}

	if n.Options().NotifyRetract {
		var itemIDs []string
		if n.IsItemRequired() {
			itemIDs = make([]string, len(items))
			for i, item := range items {
				itemIDs[i] = item.ID()
			}
		}

		retraction := pubsubpkg.Notification{
			Node:    n.id,
			Kind:    pubsubpkg.ItemsRetracted,
			ItemIDs: itemIDs,
		}
		for _, affiliate := range n.AffiliatesToNotify() {
			retraction.To = affiliate.JID()
			n.service.deliver(retraction)
		}

		// A personal eventing service additionally notifies every live
		// session of the owner. This is an extra delivery path on top of
		// the affiliate fan-out, not a replacement for it.
		if n.service.IsPersonalEventing() {
			for _, session := range n.service.connectedSessions(n.service.Address()) {
				retraction.To = session
				n.service.deliver(retraction)
			}
		}
	}

	n.service.dispatcher.itemsDeleted(n.id, items)
	return nil
}

// GetPublishedItems returns up to limit items, most recent first. The
// durable result may be missing the cached last item (a configuration
// change can invalidate durable history while the cache survives); the
// cache is trusted as the true most-recent item, so it is prepended and
// the result re-truncated from the tail.
func (n *LeafNode) GetPublishedItems(ctx context.Context, limit int) ([]*pubsubpkg.Item, error) {
	items, err := n.service.store.GetItems(ctx, n.id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch items: %w", err)
	}

	n.mu.Lock()
	last := n.lastPublished
	n.mu.Unlock()

	if last == nil || limit <= 0 {
		return items, nil
	}

	for _, item := range items {
		if item.ID() == last.ID() {
			return items, nil
		}
	}

	items = append([]*pubsubpkg.Item{last}, items...)
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// GetLastPublishedItem returns the most recently published item, or
// (nil, nil) when the node has never published. The cache is populated
// lazily with a single durable lookup.
func (n *LeafNode) GetLastPublishedItem(ctx context.Context) (*pubsubpkg.Item, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.lastPublished == nil {
		item, err := n.service.store.GetLastItem(ctx, n.id)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch last item: %w", err)
		}
		n.lastPublished = item
	}
	return n.lastPublished, nil
}

// GetPublishedItem returns the item with the given identifier, or
// (nil, nil). Nodes that do not require items have nothing to return.
func (n *LeafNode) GetPublishedItem(ctx context.Context, itemID string) (*pubsubpkg.Item, error) {
	if !n.IsItemRequired() {
		return nil, nil
	}

	n.mu.Lock()
	if n.lastPublished != nil && n.lastPublished.ID() == itemID {
		item := n.lastPublished
		n.mu.Unlock()
		return item, nil
	}
	n.mu.Unlock()

	item, err := n.service.store.GetItem(ctx, n.id, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch item: %w", err)
	}
	return item, nil
}

// Purge deletes all but the most recent stored item and notifies the
// node's current subscribers. Purge always notifies, independent of the
// persist and notify-retract flags.
func (n *LeafNode) Purge(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.log.Debug("purging published items")
	n.service.writes.Purge(n.id)

	notification := pubsubpkg.Notification{
		Node: n.id,
		Kind: pubsubpkg.NodePurged,
	}
	for _, sub := range n.Subscriptions() {
		notification.To = sub.JID()
		n.service.deliver(notification)
	}
	return nil
}

// Subscribe registers a subscription on the node. When the node is
// configured to send the last item on subscribe, the new subscriber is
// handed the last published item right away.
func (n *LeafNode) Subscribe(ctx context.Context, owner, target pubsubpkg.JID) (*Subscription, error) {
	sub, err := n.addSubscription(owner, target)
	if err != nil {
		return nil, err
	}

	if n.SendsItemOnSubscribe() {
		last, err := n.GetLastPublishedItem(ctx)
		if err != nil {
			n.log.WithError(err).Warn("failed to load last item for new subscriber")
		} else if last != nil {
			n.service.deliver(pubsubpkg.Notification{
				Node:  n.id,
				To:    target,
				Kind:  pubsubpkg.LastItem,
				Items: n.notifiableItems([]*pubsubpkg.Item{last}),
			})
		}
	}
	return sub, nil
}

// Verify that LeafNode implements the Node interface at compile time
var _ Node = (*LeafNode)(nil)
