package pubsub

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rmacdonaldsmith/pubsubnode-go/internal/cluster"
	"github.com/rmacdonaldsmith/pubsubnode-go/internal/persistence"
	pubsubpkg "github.com/rmacdonaldsmith/pubsubnode-go/pkg/pubsub"
)

// Config represents configuration for a pubsub Service.
type Config struct {
	// ServiceID identifies the service; it is the first half of every
	// node identity.
	ServiceID string

	// Address is the service's own address. For a personal eventing
	// service this is the owner's bare address.
	Address pubsubpkg.JID

	// PersonalEventing marks the service as a PEP-style per-owner
	// service: the owner's live sessions are always notified.
	PersonalEventing bool

	// Store is the durable persistence provider. Required. The service
	// does not take ownership; the caller closes it.
	Store pubsubpkg.PersistenceProvider

	// Sender is the transport boundary notifications are handed to. Required.
	Sender pubsubpkg.NotificationSender

	// Clock supplies cluster time. Defaults to a local cluster.Clock.
	Clock pubsubpkg.ClusterClock

	// Sessions resolves live sessions for PEP owner delivery. Optional;
	// when nil, no owner-session delivery is attempted.
	Sessions pubsubpkg.SessionRegistry

	// Logger is an optional structured logger. If nil, a default is used.
	Logger *logrus.Logger

	// WriteWorkers and WriteQueueDepth configure the background durable
	// write queue. Zero values use the queue defaults.
	WriteWorkers    int
	WriteQueueDepth int

	// OnStoreError, if set, observes background durable failures.
	OnStoreError func(error)
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.ServiceID == "" {
		return fmt.Errorf("service ID cannot be empty")
	}
	if c.Address == "" {
		return fmt.Errorf("service address cannot be empty")
	}
	if c.Store == nil {
		return fmt.Errorf("persistence provider cannot be nil")
	}
	if c.Sender == nil {
		return fmt.Errorf("notification sender cannot be nil")
	}
	return nil
}

// Service owns a set of pubsub nodes and the shared machinery they publish
// through: the cluster clock, the durable write queue, the notification
// transport and the event dispatcher. Nodes are independent of each other;
// there is no cross-node locking.
type Service struct {
	config     *Config
	log        *logrus.Logger
	clock      pubsubpkg.ClusterClock
	store      pubsubpkg.PersistenceProvider
	sender     pubsubpkg.NotificationSender
	sessions   pubsubpkg.SessionRegistry
	writes     *persistence.WriteQueue
	dispatcher *Dispatcher

	mu     sync.RWMutex
	root   *CollectionNode
	nodes  map[string]Node
	closed bool
}

// NewService creates a service, its background write queue and its root
// collection node. The service address is registered as the root
// collection's owner affiliate, which is what PEP owner synthesis resolves.
func NewService(config *Config) (*Service, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log := config.Logger
	if log == nil {
		log = logrus.New()
	}
	clock := config.Clock
	if clock == nil {
		clock = cluster.NewClock()
	}

	s := &Service{
		config:     config,
		log:        log,
		clock:      clock,
		store:      config.Store,
		sender:     config.Sender,
		sessions:   config.Sessions,
		dispatcher: NewDispatcher(),
		nodes:      make(map[string]Node),
	}
	s.writes = persistence.NewWriteQueue(config.Store, persistence.WriteQueueConfig{
		Workers:    config.WriteWorkers,
		QueueDepth: config.WriteQueueDepth,
		Logger:     log,
		OnError:    config.OnStoreError,
	})

	rootOpts := DefaultOptions()
	s.root = newCollectionNode(s, pubsubpkg.NodeID{Service: config.ServiceID}, config.Address, rootOpts)
	s.root.AddAffiliate(config.Address, OwnerAffiliation)

	return s, nil
}

// ID returns the service identifier.
func (s *Service) ID() string {
	return s.config.ServiceID
}

// Address returns the service's own address.
func (s *Service) Address() pubsubpkg.JID {
	return s.config.Address
}

// IsPersonalEventing reports whether this is a PEP-style service.
func (s *Service) IsPersonalEventing() bool {
	return s.config.PersonalEventing
}

// RootCollection returns the root collection node.
func (s *Service) RootCollection() *CollectionNode {
	return s.root
}

// RegisterListener adds an event listener for items-published and
// items-deleted events on any node of this service.
func (s *Service) RegisterListener(listener pubsubpkg.EventListener) {
	s.dispatcher.Register(listener)
}

// CreateLeafNode creates a leaf node, registers it under the root
// collection and grants the creator the owner affiliation.
func (s *Service) CreateLeafNode(nodeID string, creator pubsubpkg.JID, opts Options, leafOpts LeafOptions) (*LeafNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkCreateLocked(nodeID); err != nil {
		return nil, err
	}

	node := newLeafNode(s, pubsubpkg.NodeID{Service: s.config.ServiceID, Node: nodeID}, creator, opts, leafOpts)
	node.AddAffiliate(creator, OwnerAffiliation)
	s.nodes[nodeID] = node
	s.root.AddChild(node)
	s.log.WithField("node", node.ID().String()).Info("created leaf node")
	return node, nil
}

// CreateCollectionNode creates a collection node, registers it under the
// root collection and grants the creator the owner affiliation.
func (s *Service) CreateCollectionNode(nodeID string, creator pubsubpkg.JID, opts Options) (*CollectionNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkCreateLocked(nodeID); err != nil {
		return nil, err
	}

	node := newCollectionNode(s, pubsubpkg.NodeID{Service: s.config.ServiceID, Node: nodeID}, creator, opts)
	node.AddAffiliate(creator, OwnerAffiliation)
	s.nodes[nodeID] = node
	s.root.AddChild(node)
	s.log.WithField("node", node.ID().String()).Info("created collection node")
	return node, nil
}

func (s *Service) checkCreateLocked(nodeID string) error {
	if s.closed {
		return ErrServiceClosed
	}
	if nodeID == "" {
		return ErrNodeIDEmpty
	}
	if _, exists := s.nodes[nodeID]; exists {
		return fmt.Errorf("%w: %s", ErrNodeExists, nodeID)
	}
	return nil
}

// Node returns the node with the given identifier, or an error.
func (s *Service) Node(nodeID string) (Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	return node, nil
}

// LeafNode returns the leaf node with the given identifier, or an error if
// it does not exist or is a collection.
func (s *Service) LeafNode(nodeID string) (*LeafNode, error) {
	node, err := s.Node(nodeID)
	if err != nil {
		return nil, err
	}
	leaf, ok := node.(*LeafNode)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a collection node", ErrNodeNotFound, nodeID)
	}
	return leaf, nil
}

// Nodes returns a snapshot of all registered nodes.
func (s *Service) Nodes() []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Node, 0, len(s.nodes))
	for _, node := range s.nodes {
		result = append(result, node)
	}
	return result
}

// deliver hands one notification to the transport. A delivery failure is
// logged and never interrupts the remaining recipients.
func (s *Service) deliver(n pubsubpkg.Notification) {
	if err := s.sender.Send(n); err != nil {
		s.log.WithError(err).
			WithField("node", n.Node.String()).
			WithField("to", n.To.String()).
			Warn("failed to hand notification to transport")
	}
}

// connectedSessions resolves the live sessions of the owner, tolerating a
// missing registry.
func (s *Service) connectedSessions(owner pubsubpkg.JID) []pubsubpkg.JID {
	if s.sessions == nil {
		return nil
	}
	return s.sessions.ConnectedSessions(owner)
}

// Flush blocks until every durable operation enqueued so far has been
// executed against the store.
func (s *Service) Flush() {
	s.writes.Flush()
}

// Close drains the background write queue and marks the service closed.
// The persistence provider is owned by the caller and is not closed here.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil // Already closed, idempotent
	}
	s.closed = true
	s.mu.Unlock()

	return s.writes.Close()
}
