package persistence

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rmacdonaldsmith/pubsubnode-go/pkg/pubsub"
)

var (
	// ErrNilItem is returned when a nil item is provided
	ErrNilItem = errors.New("item cannot be nil")
	// ErrNegativeLimit is returned when a negative limit is provided
	ErrNegativeLimit = errors.New("limit cannot be negative")
	// ErrClosed is returned when the provider has been closed
	ErrClosed = errors.New("persistence provider is closed")
)

// InMemoryProvider implements pubsub.PersistenceProvider with per-node
// in-memory item lists. Items are kept ordered by creation time so that
// recent-first retrieval and retention trimming match the durable
// implementation. It is safe for concurrent use.
type InMemoryProvider struct {
	mu          sync.RWMutex
	itemsByNode map[string][]*pubsub.Item // node -> items, oldest first
	closed      bool
}

// NewInMemoryProvider creates a new in-memory persistence provider.
func NewInMemoryProvider() *InMemoryProvider {
	return &InMemoryProvider{
		itemsByNode: make(map[string][]*pubsub.Item),
	}
}

// SaveItem stores an item, replacing any previous item with the same
// identifier, and trims the oldest items beyond maxItems.
func (p *InMemoryProvider) SaveItem(ctx context.Context, item *pubsub.Item, maxItems int) error {
	if item == nil {
		return ErrNilItem
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	key := item.NodeID().String()
	items := p.itemsByNode[key]

	// Same item ID republished: the new record replaces the old one.
	for i, existing := range items {
		if existing.ID() == item.ID() {
			items = append(items[:i], items[i+1:]...)
			break
		}
	}

	// Insert keeping creation-time order. Cluster timestamps may arrive
	// out of order, so an append is not enough.
	idx := sort.Search(len(items), func(i int) bool {
		return items[i].CreatedAt().After(item.CreatedAt())
	})
	items = append(items, nil)
	copy(items[idx+1:], items[idx:])
	items[idx] = item

	if maxItems > 0 && len(items) > maxItems {
		items = items[len(items)-maxItems:]
	}

	p.itemsByNode[key] = items
	return nil
}

// RemoveItem deletes the stored item with the same node and identifier.
// Removing an item that does not exist is not an error.
func (p *InMemoryProvider) RemoveItem(ctx context.Context, item *pubsub.Item) error {
	if item == nil {
		return ErrNilItem
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	key := item.NodeID().String()
	items := p.itemsByNode[key]
	for i, existing := range items {
		if existing.ID() == item.ID() {
			p.itemsByNode[key] = append(items[:i], items[i+1:]...)
			break
		}
	}
	return nil
}

// PurgeNode deletes every stored item of the node except the most recent.
func (p *InMemoryProvider) PurgeNode(ctx context.Context, node pubsub.NodeID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	key := node.String()
	items := p.itemsByNode[key]
	if len(items) > 1 {
		p.itemsByNode[key] = items[len(items)-1:]
	}
	return nil
}

// GetItems returns up to limit items for the node, most recent first.
func (p *InMemoryProvider) GetItems(ctx context.Context, node pubsub.NodeID, limit int) ([]*pubsub.Item, error) {
	if limit < 0 {
		return nil, ErrNegativeLimit
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrClosed
	}

	items := p.itemsByNode[node.String()]
	results := make([]*pubsub.Item, 0, limit)
	for i := len(items) - 1; i >= 0 && len(results) < limit; i-- {
		results = append(results, items[i])
	}
	return results, nil
}

// GetItem returns the stored item with the given identifier, or (nil, nil).
func (p *InMemoryProvider) GetItem(ctx context.Context, node pubsub.NodeID, itemID string) (*pubsub.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrClosed
	}

	for _, item := range p.itemsByNode[node.String()] {
		if item.ID() == itemID {
			return item, nil
		}
	}
	return nil, nil
}

// GetLastItem returns the most recently created item, or (nil, nil).
func (p *InMemoryProvider) GetLastItem(ctx context.Context, node pubsub.NodeID) (*pubsub.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrClosed
	}

	items := p.itemsByNode[node.String()]
	if len(items) == 0 {
		return nil, nil
	}
	return items[len(items)-1], nil
}

// Close closes the provider and clears all stored items.
func (p *InMemoryProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil // Already closed, idempotent
	}

	p.itemsByNode = make(map[string][]*pubsub.Item)
	p.closed = true
	return nil
}

// Verify that InMemoryProvider implements the interface at compile time
var _ pubsub.PersistenceProvider = (*InMemoryProvider)(nil)
