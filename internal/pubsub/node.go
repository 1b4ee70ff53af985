// Package pubsub implements the publish/subscribe node engine: the node
// hierarchy with its affiliate and subscription registries, the leaf-node
// publish/delete/retrieve/purge pipeline, and the access-filtered
// notification fan-out across parent collections.
package pubsub

import (
	"sync"

	"github.com/sirupsen/logrus"

	pubsubpkg "github.com/rmacdonaldsmith/pubsubnode-go/pkg/pubsub"
)

// ReplyPolicy selects who replies to queries addressed to the node.
type ReplyPolicy int

const (
	// ReplyToOwner routes queries to the node owner.
	ReplyToOwner ReplyPolicy = iota

	// ReplyToPublisher routes queries to the item publisher.
	ReplyToPublisher
)

// Options holds the configuration shared by leaf and collection nodes.
type Options struct {
	// SubscriptionEnabled allows users to subscribe to the node.
	SubscriptionEnabled bool

	// DeliverPayloads includes item payloads in event notifications.
	DeliverPayloads bool

	// NotifyConfigChanges sends notifications on configuration changes.
	NotifyConfigChanges bool

	// NotifyDelete sends notifications when the node is deleted.
	NotifyDelete bool

	// NotifyRetract sends notifications when items are deleted.
	NotifyRetract bool

	// PresenceBasedDelivery only delivers to available sessions.
	PresenceBasedDelivery bool

	// AccessModel gates item read access. Defaults to open access.
	AccessModel pubsubpkg.AccessModel

	// PublisherModel gates publish permission. Defaults to open.
	PublisherModel pubsubpkg.PublisherModel

	// Language is the preferred language of the node.
	Language string

	// ReplyPolicy selects who replies to queries on the node.
	ReplyPolicy ReplyPolicy
}

// DefaultOptions returns the node defaults: subscribable, payload
// delivering, retract/delete notifying, open access, open publishing.
func DefaultOptions() Options {
	return Options{
		SubscriptionEnabled: true,
		DeliverPayloads:     true,
		NotifyDelete:        true,
		NotifyRetract:       true,
		AccessModel:         pubsubpkg.OpenAccess,
		PublisherModel:      pubsubpkg.OpenPublisher,
		Language:            "en",
	}
}

// normalize fills the policy objects that must never be nil.
func (o *Options) normalize() {
	if o.AccessModel == nil {
		o.AccessModel = pubsubpkg.OpenAccess
	}
	if o.PublisherModel == nil {
		o.PublisherModel = pubsubpkg.OpenPublisher
	}
}

// Node is the behavior common to leaf and collection nodes.
type Node interface {
	// ID returns the node identity.
	ID() pubsubpkg.NodeID

	// Creator returns the address of the user that created the node.
	Creator() pubsubpkg.JID

	// Parents returns the collection nodes this node is registered under.
	Parents() []*CollectionNode

	// Affiliates returns the node's affiliate records.
	Affiliates() []*Affiliate

	// Subscriptions returns the node's subscription records.
	Subscriptions() []*Subscription
}

// nodeState is the shared state embedded in both node types. The mutex is
// the per-node exclusive region: it guards the registries and, for leaf
// nodes, the lastPublished cache pointer. It is never held across durable
// store writes or notification fan-out.
type nodeState struct {
	mu            sync.Mutex
	service       *Service
	id            pubsubpkg.NodeID
	creator       pubsubpkg.JID
	opts          Options
	affiliates    map[pubsubpkg.JID]*Affiliate
	subscriptions []*Subscription
	parents       []*CollectionNode
	log           *logrus.Entry
}

func newNodeState(service *Service, id pubsubpkg.NodeID, creator pubsubpkg.JID, opts Options) nodeState {
	opts.normalize()
	return nodeState{
		service:    service,
		id:         id,
		creator:    creator,
		opts:       opts,
		affiliates: make(map[pubsubpkg.JID]*Affiliate),
		log:        service.log.WithField("node", id.String()),
	}
}

// ID returns the node identity.
func (n *nodeState) ID() pubsubpkg.NodeID {
	return n.id
}

// Creator returns the address of the user that created the node.
func (n *nodeState) Creator() pubsubpkg.JID {
	return n.creator
}

// Options returns a copy of the node's shared options.
func (n *nodeState) Options() Options {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.opts
}

// AccessModel returns the node's access model.
func (n *nodeState) AccessModel() pubsubpkg.AccessModel {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.opts.AccessModel
}

// AddAffiliate sets the affiliation of the user on this node, creating the
// affiliate record if needed. Affiliation is unique per bare address, so a
// second call replaces the role.
func (n *nodeState) AddAffiliate(jid pubsubpkg.JID, affiliation Affiliation) *Affiliate {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.addAffiliateLocked(jid, affiliation)
}

func (n *nodeState) addAffiliateLocked(jid pubsubpkg.JID, affiliation Affiliation) *Affiliate {
	bare := jid.Bare()
	if existing, ok := n.affiliates[bare]; ok {
		existing.affiliation = affiliation
		return existing
	}
	affiliate := &Affiliate{node: n.id, jid: bare, affiliation: affiliation}
	n.affiliates[bare] = affiliate
	return affiliate
}

// Affiliate returns the affiliate record of the user, or nil.
func (n *nodeState) Affiliate(jid pubsubpkg.JID) *Affiliate {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.affiliates[jid.Bare()]
}

// Affiliates returns a snapshot of the node's affiliate records.
func (n *nodeState) Affiliates() []*Affiliate {
	n.mu.Lock()
	defer n.mu.Unlock()
	result := make([]*Affiliate, 0, len(n.affiliates))
	for _, affiliate := range n.affiliates {
		result = append(result, affiliate)
	}
	return result
}

// Subscriptions returns a snapshot of the node's subscription records.
func (n *nodeState) Subscriptions() []*Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	result := make([]*Subscription, len(n.subscriptions))
	copy(result, n.subscriptions)
	return result
}

// addSubscription registers a subscription for the owner at the target
// address. The owning affiliate is created with no affiliation when absent,
// which keeps the invariant that every subscription's affiliate is a member
// of the same node's affiliate set.
func (n *nodeState) addSubscription(owner, target pubsubpkg.JID) (*Subscription, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.opts.SubscriptionEnabled {
		return nil, ErrSubscriptionsDisabled
	}

	affiliate, ok := n.affiliates[owner.Bare()]
	if !ok {
		affiliate = n.addAffiliateLocked(owner, NoAffiliation)
	}
	if affiliate.affiliation == OutcastAffiliation {
		return nil, ErrSubscriptionsDisabled
	}

	sub := newSubscription(owner, target, affiliate, n.service.clock.Now())
	n.subscriptions = append(n.subscriptions, sub)
	affiliate.subscriptions = append(affiliate.subscriptions, sub)
	return sub, nil
}

// Parents returns a snapshot of the collection nodes this node is
// registered under. The hierarchy is a DAG: a node may have several parents.
func (n *nodeState) Parents() []*CollectionNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	result := make([]*CollectionNode, len(n.parents))
	copy(result, n.parents)
	return result
}

func (n *nodeState) addParent(parent *CollectionNode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, existing := range n.parents {
		if existing == parent {
			return
		}
	}
	n.parents = append(n.parents, parent)
}
