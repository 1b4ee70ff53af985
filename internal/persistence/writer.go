package persistence

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rmacdonaldsmith/pubsubnode-go/pkg/pubsub"
)

// WriteQueue decouples durable mutation from the publish/delete request
// path. Operations are enqueued and executed by a fixed pool of workers;
// the caller returns as soon as the operation is queued and must not assume
// the store is consistent with in-memory state at that point.
//
// The queue is bounded and enqueueing blocks when it is full. Blocking was
// chosen over dropping or growing: it applies backpressure to publishers
// under sustained storage slowness instead of losing durability or growing
// without bound.
//
// Failures are not retried. They are logged and reported to the OnError
// callback; the reconciliation step in item retrieval papers over the
// resulting cache/store divergence on the next read.
type WriteQueue struct {
	store   pubsub.PersistenceProvider
	ops     chan writeOp
	wg      sync.WaitGroup
	pending sync.WaitGroup
	log     *logrus.Logger
	onError func(error)

	mu     sync.RWMutex
	closed bool
}

type opKind int

const (
	opSave opKind = iota
	opRemove
	opPurge
)

type writeOp struct {
	kind     opKind
	item     *pubsub.Item
	node     pubsub.NodeID
	maxItems int
}

// WriteQueueConfig configures a WriteQueue.
type WriteQueueConfig struct {
	// Workers is the number of worker goroutines. Default 2.
	Workers int

	// QueueDepth is the capacity of the operation queue. Default 512.
	QueueDepth int

	// Logger is an optional structured logger. If nil, a default is used.
	Logger *logrus.Logger

	// OnError, if set, is invoked from worker goroutines for every failed
	// durable operation. It must be safe for concurrent use.
	OnError func(error)
}

// SetDefaults fills in default values for unset fields.
func (c *WriteQueueConfig) SetDefaults() {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 512
	}
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
}

// NewWriteQueue creates a write queue over the given store and starts its
// workers.
func NewWriteQueue(store pubsub.PersistenceProvider, config WriteQueueConfig) *WriteQueue {
	config.SetDefaults()

	q := &WriteQueue{
		store:   store,
		ops:     make(chan writeOp, config.QueueDepth),
		log:     config.Logger,
		onError: config.OnError,
	}

	for i := 0; i < config.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Save enqueues a durable save of the item with the given retention bound.
func (q *WriteQueue) Save(item *pubsub.Item, maxItems int) {
	q.enqueue(writeOp{kind: opSave, item: item, maxItems: maxItems})
}

// Remove enqueues a durable delete of the item.
func (q *WriteQueue) Remove(item *pubsub.Item) {
	q.enqueue(writeOp{kind: opRemove, item: item})
}

// Purge enqueues a durable delete-all-but-latest for the node.
func (q *WriteQueue) Purge(node pubsub.NodeID) {
	q.enqueue(writeOp{kind: opPurge, node: node})
}

func (q *WriteQueue) enqueue(op writeOp) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.log.Warn("write queue is closed, dropping durable operation")
		return
	}
	q.pending.Add(1)
	q.ops <- op
}

// Flush blocks until every operation enqueued so far has been executed.
func (q *WriteQueue) Flush() {
	q.pending.Wait()
}

func (q *WriteQueue) worker() {
	defer q.wg.Done()

	for op := range q.ops {
		var err error
		ctx := context.Background()
		switch op.kind {
		case opSave:
			err = q.store.SaveItem(ctx, op.item, op.maxItems)
		case opRemove:
			err = q.store.RemoveItem(ctx, op.item)
		case opPurge:
			err = q.store.PurgeNode(ctx, op.node)
		}
		if err != nil {
			q.log.WithError(err).Error("durable operation failed")
			if q.onError != nil {
				q.onError(err)
			}
		}
		q.pending.Done()
	}
}

// Close stops accepting operations, waits for queued operations to drain,
// and returns. It does not close the underlying store.
func (q *WriteQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil // Already closed, idempotent
	}
	q.closed = true
	q.mu.Unlock()

	close(q.ops)
	q.wg.Wait()
	return nil
}
