package pubsub

// NotificationKind discriminates the event a notification describes.
type NotificationKind int

const (
	// ItemsPublished notifies that one or more items were published.
	ItemsPublished NotificationKind = iota

	// ItemsRetracted notifies that one or more items were deleted.
	ItemsRetracted

	// NodePurged notifies that all but the most recent item were purged.
	NodePurged

	// LastItem carries the most recent item to a new subscriber.
	LastItem
)

// String returns a human-readable name for the kind.
func (k NotificationKind) String() string {
	switch k {
	case ItemsPublished:
		return "published"
	case ItemsRetracted:
		return "retracted"
	case NodePurged:
		return "purged"
	case LastItem:
		return "last-item"
	default:
		return "unknown"
	}
}

// Notification is an outbound event notification, addressed to a single
// recipient. The engine computes the recipient set and the content; the
// transport layer owns message framing and actual delivery.
//
// Items published in one publish call always travel together in one
// notification; they are never split across messages for a recipient.
type Notification struct {
	// Node identifies the node the event happened on.
	Node NodeID

	// To is the recipient address. For affiliate fan-out this is the
	// affiliate's address; for PEP owner delivery it is a live session.
	To JID

	// Kind describes the event.
	Kind NotificationKind

	// Items holds the published items for ItemsPublished and LastItem
	// notifications. Payloads are only populated when the node delivers
	// payloads.
	Items []*Item

	// ItemIDs holds the identifiers of deleted items for ItemsRetracted
	// notifications. Empty when the node does not require items.
	ItemIDs []string
}
