package pubsub

import (
	pubsubpkg "github.com/rmacdonaldsmith/pubsubnode-go/pkg/pubsub"
)

// Affiliation is the role a user holds on a node. A user holds exactly one
// affiliation per node.
type Affiliation int

const (
	// NoAffiliation is the default role of a subscriber without privileges.
	NoAffiliation Affiliation = iota

	// OwnerAffiliation marks the node owner.
	OwnerAffiliation

	// PublisherAffiliation allows publishing without ownership.
	PublisherAffiliation

	// MemberAffiliation allows reading items on member-only nodes.
	MemberAffiliation

	// OutcastAffiliation bans the user from the node.
	OutcastAffiliation
)

// String returns the wire name of the affiliation.
func (a Affiliation) String() string {
	switch a {
	case OwnerAffiliation:
		return "owner"
	case PublisherAffiliation:
		return "publisher"
	case MemberAffiliation:
		return "member"
	case OutcastAffiliation:
		return "outcast"
	default:
		return "none"
	}
}

// Affiliate is a user's role record on a single node. Its identity is the
// pair of the node identity and the subscriber's bare address. An affiliate
// owns the subscriptions it created on the node.
type Affiliate struct {
	node          pubsubpkg.NodeID
	jid           pubsubpkg.JID // bare
	affiliation   Affiliation
	subscriptions []*Subscription
}

// NodeID returns the identity of the node the affiliation is held on.
func (a *Affiliate) NodeID() pubsubpkg.NodeID {
	return a.node
}

// JID returns the bare address of the affiliated user.
func (a *Affiliate) JID() pubsubpkg.JID {
	return a.jid
}

// Affiliation returns the role held by the user.
func (a *Affiliate) Affiliation() Affiliation {
	return a.affiliation
}

// Subscriptions returns the subscriptions owned by this affiliate.
func (a *Affiliate) Subscriptions() []*Subscription {
	result := make([]*Subscription, len(a.subscriptions))
	copy(result, a.subscriptions)
	return result
}
