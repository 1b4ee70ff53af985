package pubsub

import "strings"

// JID is the address of a user or session, in the familiar
// "user@domain/resource" form. The resource part is optional; a JID
// without a resource is a "bare" JID and addresses every session of
// the user at once.
type JID string

// Bare returns the JID with any resource part stripped.
func (j JID) Bare() JID {
	if idx := strings.IndexByte(string(j), '/'); idx >= 0 {
		return j[:idx]
	}
	return j
}

// Resource returns the resource part of the JID, or "" for a bare JID.
func (j JID) Resource() string {
	if idx := strings.IndexByte(string(j), '/'); idx >= 0 {
		return string(j[idx+1:])
	}
	return ""
}

// Username returns the local part of the JID (the part before '@').
func (j JID) Username() string {
	s := string(j.Bare())
	if idx := strings.IndexByte(s, '@'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// String returns the JID as a plain string.
func (j JID) String() string {
	return string(j)
}

// NodeID uniquely identifies a node across services. A node identifier is
// only unique within the service that owns it, so both parts are needed.
type NodeID struct {
	// Service identifies the pubsub service that owns the node.
	Service string

	// Node is the service-scoped node identifier.
	Node string
}

// String returns a "service#node" representation, used for logging and
// as a storage key prefix.
func (id NodeID) String() string {
	return id.Service + "#" + id.Node
}
