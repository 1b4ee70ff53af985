package httpapi

import (
	"sync"

	"github.com/sirupsen/logrus"

	pubsubpkg "github.com/rmacdonaldsmith/pubsubnode-go/pkg/pubsub"
)

// Hub routes engine notifications to live SSE connections. It is both the
// engine's notification transport and its session registry: a user's live
// sessions are exactly its open streaming connections.
type Hub struct {
	mu    sync.RWMutex
	conns map[pubsubpkg.JID]map[*HubConn]struct{} // keyed by bare address
	log   *logrus.Logger
}

// HubConn is one live streaming connection.
type HubConn struct {
	jid pubsubpkg.JID // full address, resource included
	ch  chan pubsubpkg.Notification
}

// Notifications returns the channel the connection receives on.
func (c *HubConn) Notifications() <-chan pubsubpkg.Notification {
	return c.ch
}

// JID returns the full address of the connection.
func (c *HubConn) JID() pubsubpkg.JID {
	return c.jid
}

// NewHub creates an empty hub.
func NewHub(log *logrus.Logger) *Hub {
	if log == nil {
		log = logrus.New()
	}
	return &Hub{
		conns: make(map[pubsubpkg.JID]map[*HubConn]struct{}),
		log:   log,
	}
}

// Attach registers a connection for the given address and returns it. The
// caller must Detach it when the stream ends.
func (h *Hub) Attach(jid pubsubpkg.JID) *HubConn {
	conn := &HubConn{
		jid: jid,
		ch:  make(chan pubsubpkg.Notification, 100),
	}
	h.mu.Lock()
	bare := jid.Bare()
	if h.conns[bare] == nil {
		h.conns[bare] = make(map[*HubConn]struct{})
	}
	h.conns[bare][conn] = struct{}{}
	h.mu.Unlock()
	return conn
}

// Detach removes a connection.
func (h *Hub) Detach(conn *HubConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	bare := conn.jid.Bare()
	if set, ok := h.conns[bare]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, bare)
		}
	}
}

// Send routes a notification to the recipient's live connections. A target
// with a resource reaches only that session; a bare target reaches all of
// the user's sessions. An offline recipient is not an error. A slow
// connection has the notification dropped rather than blocking the engine.
func (h *Hub) Send(n pubsubpkg.Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.conns[n.To.Bare()] {
		if n.To.Resource() != "" && conn.jid != n.To {
			continue
		}
		select {
		case conn.ch <- n:
		default:
			h.log.WithField("to", conn.jid.String()).Warn("notification dropped, connection too slow")
		}
	}
	return nil
}

// ConnectedSessions returns the full addresses of the user's live
// connections.
func (h *Hub) ConnectedSessions(owner pubsubpkg.JID) []pubsubpkg.JID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var sessions []pubsubpkg.JID
	for conn := range h.conns[owner.Bare()] {
		sessions = append(sessions, conn.jid)
	}
	return sessions
}

// ConnectedUsers returns the number of distinct users with at least one
// live connection.
func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Verify the hub satisfies the engine boundaries at compile time
var (
	_ pubsubpkg.NotificationSender = (*Hub)(nil)
	_ pubsubpkg.SessionRegistry    = (*Hub)(nil)
)
