package pubsub

import (
	"sync"

	pubsubpkg "github.com/rmacdonaldsmith/pubsubnode-go/pkg/pubsub"
)

// Dispatcher fans node state change events out to registered listeners.
// Listener invocation for one event never blocks or fails the others.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners []pubsubpkg.EventListener
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register adds a listener. Listeners cannot be removed; the set is
// expected to be fixed at wiring time.
func (d *Dispatcher) Register(listener pubsubpkg.EventListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, listener)
}

func (d *Dispatcher) snapshot() []pubsubpkg.EventListener {
	d.mu.RLock()
	defer d.mu.RUnlock()
	result := make([]pubsubpkg.EventListener, len(d.listeners))
	copy(result, d.listeners)
	return result
}

func (d *Dispatcher) itemsPublished(node pubsubpkg.NodeID, items []*pubsubpkg.Item) {
	for _, listener := range d.snapshot() {
		listener.ItemsPublished(node, items)
	}
}

func (d *Dispatcher) itemsDeleted(node pubsubpkg.NodeID, items []*pubsubpkg.Item) {
	for _, listener := range d.snapshot() {
		listener.ItemsDeleted(node, items)
	}
}
