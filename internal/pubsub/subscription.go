package pubsub

import (
	"time"

	"github.com/google/uuid"

	pubsubpkg "github.com/rmacdonaldsmith/pubsubnode-go/pkg/pubsub"
)

// SubscriptionState tracks the lifecycle of a subscription.
type SubscriptionState int

const (
	// SubscriptionNone means no subscription exists.
	SubscriptionNone SubscriptionState = iota

	// SubscriptionPending awaits owner approval.
	SubscriptionPending

	// SubscriptionUnconfigured awaits subscriber configuration.
	SubscriptionUnconfigured

	// SubscriptionActive receives notifications.
	SubscriptionActive
)

// String returns the wire name of the state.
func (s SubscriptionState) String() string {
	switch s {
	case SubscriptionPending:
		return "pending"
	case SubscriptionUnconfigured:
		return "unconfigured"
	case SubscriptionActive:
		return "subscribed"
	default:
		return "none"
	}
}

// Subscription records a specific address receiving notifications for a
// node. The owner is the affiliate the subscription belongs to; the target
// address may differ from the owner for multi-resource subscriptions
// (e.g. alice@example.org subscribing her laptop session specifically).
type Subscription struct {
	id        string
	owner     pubsubpkg.JID
	jid       pubsubpkg.JID
	state     SubscriptionState
	affiliate *Affiliate
	created   time.Time
}

func newSubscription(owner, target pubsubpkg.JID, affiliate *Affiliate, created time.Time) *Subscription {
	return &Subscription{
		id:        uuid.NewString(),
		owner:     owner.Bare(),
		jid:       target,
		state:     SubscriptionActive,
		affiliate: affiliate,
		created:   created,
	}
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Owner returns the bare address of the affiliate owning the subscription.
func (s *Subscription) Owner() pubsubpkg.JID {
	return s.owner
}

// JID returns the target address notifications are sent to.
func (s *Subscription) JID() pubsubpkg.JID {
	return s.jid
}

// State returns the subscription state.
func (s *Subscription) State() SubscriptionState {
	return s.state
}

// Affiliate returns the affiliate the subscription belongs to. It is always
// a member of the same node's affiliate set.
func (s *Subscription) Affiliate() *Affiliate {
	return s.affiliate
}

// CreatedAt returns when the subscription was registered.
func (s *Subscription) CreatedAt() time.Time {
	return s.created
}
