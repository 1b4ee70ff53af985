package pubsub

import (
	pubsubpkg "github.com/rmacdonaldsmith/pubsubnode-go/pkg/pubsub"
)

// AffiliatesToNotify computes the deduplicated set of affiliates that must
// receive a notification for an event on this node.
//
// The set is the union of:
//   - the node's own direct affiliates;
//   - for every ancestor collection, the affiliates of subscriptions that
//     clear BOTH the ancestor's access model and this node's own access
//     model (an ancestor subscription alone does not grant access to the
//     leaf's items);
//   - for a personal eventing service, the synthesized owner affiliate
//     when no affiliate in the accumulated set holds the owner role, so
//     that the owner's live sessions are always reachable.
//
// Only set membership matters: the result is identical regardless of the
// order ancestors are visited in. The ancestor walk is iterative with a
// visited set, since the hierarchy is a DAG and may even contain cycles.
func (n *LeafNode) AffiliatesToNotify() []*Affiliate {
	seen := make(map[*Affiliate]struct{})
	var result []*Affiliate
	add := func(affiliate *Affiliate) {
		if affiliate == nil {
			return
		}
		if _, ok := seen[affiliate]; ok {
			return
		}
		seen[affiliate] = struct{}{}
		result = append(result, affiliate)
	}

	for _, affiliate := range n.Affiliates() {
		add(affiliate)
	}

	accessModel := n.AccessModel()
	visited := make(map[pubsubpkg.NodeID]bool)
	stack := n.Parents()
	for len(stack) > 0 {
		parent := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[parent.ID()] {
			continue
		}
		visited[parent.ID()] = true

		parentAccess := parent.AccessModel()
		for _, sub := range parent.Subscriptions() {
			// Double gate: the ancestor subscription must clear the
			// leaf's own access policy too, not only the ancestor's.
			if parentAccess.CanAccessItems(n.id, sub.Owner(), sub.JID()) &&
				accessModel.CanAccessItems(n.id, sub.Owner(), sub.JID()) {
				add(sub.Affiliate())
			}
		}

		stack = append(stack, parent.Parents()...)
	}

	if n.service.IsPersonalEventing() && !containsOwner(result) {
		// The owner may have no explicit subscription; resolve the owner
		// affiliate from the root collection. A missing record just means
		// there is no owner affiliate to add.
		add(n.service.RootCollection().Affiliate(n.service.Address()))
	}

	return result
}

func containsOwner(affiliates []*Affiliate) bool {
	for _, affiliate := range affiliates {
		if affiliate.Affiliation() == OwnerAffiliation {
			return true
		}
	}
	return false
}
