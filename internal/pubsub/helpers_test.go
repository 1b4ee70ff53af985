package pubsub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rmacdonaldsmith/pubsubnode-go/internal/persistence"
	pubsubpkg "github.com/rmacdonaldsmith/pubsubnode-go/pkg/pubsub"
)

// recordingSender collects every notification handed to the transport. It
// can be told to fail delivery to specific recipients while still recording
// the attempt.
type recordingSender struct {
	mu      sync.Mutex
	sent    []pubsubpkg.Notification
	failFor map[pubsubpkg.JID]error
}

func newRecordingSender() *recordingSender {
	return &recordingSender{failFor: make(map[pubsubpkg.JID]error)}
}

func (s *recordingSender) Send(n pubsubpkg.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return s.failFor[n.To]
}

func (s *recordingSender) notifications() []pubsubpkg.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]pubsubpkg.Notification, len(s.sent))
	copy(result, s.sent)
	return result
}

func (s *recordingSender) byKind(kind pubsubpkg.NotificationKind) []pubsubpkg.Notification {
	var result []pubsubpkg.Notification
	for _, n := range s.notifications() {
		if n.Kind == kind {
			result = append(result, n)
		}
	}
	return result
}

func (s *recordingSender) recipients(kind pubsubpkg.NotificationKind) map[pubsubpkg.JID]int {
	result := make(map[pubsubpkg.JID]int)
	for _, n := range s.byKind(kind) {
		result[n.To]++
	}
	return result
}

func (s *recordingSender) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
}

// fakeClock is a manually advanced cluster clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// countingStore wraps a persistence provider and counts read operations.
type countingStore struct {
	pubsubpkg.PersistenceProvider

	mu          sync.Mutex
	lastFetches int
	itemFetches int
}

func (s *countingStore) GetLastItem(ctx context.Context, node pubsubpkg.NodeID) (*pubsubpkg.Item, error) {
	s.mu.Lock()
	s.lastFetches++
	s.mu.Unlock()
	return s.PersistenceProvider.GetLastItem(ctx, node)
}

func (s *countingStore) GetItem(ctx context.Context, node pubsubpkg.NodeID, itemID string) (*pubsubpkg.Item, error) {
	s.mu.Lock()
	s.itemFetches++
	s.mu.Unlock()
	return s.PersistenceProvider.GetItem(ctx, node, itemID)
}

func (s *countingStore) lastFetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFetches
}

// fakeSessions resolves live sessions from a fixed map keyed by bare address.
type fakeSessions struct {
	sessions map[pubsubpkg.JID][]pubsubpkg.JID
}

func (f *fakeSessions) ConnectedSessions(owner pubsubpkg.JID) []pubsubpkg.JID {
	return f.sessions[owner.Bare()]
}

// recordingListener records dispatched node events.
type recordingListener struct {
	mu        sync.Mutex
	published []pubsubpkg.NodeID
	deleted   []pubsubpkg.NodeID
}

func (l *recordingListener) ItemsPublished(node pubsubpkg.NodeID, items []*pubsubpkg.Item) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.published = append(l.published, node)
}

func (l *recordingListener) ItemsDeleted(node pubsubpkg.NodeID, items []*pubsubpkg.Item) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deleted = append(l.deleted, node)
}

type testEnv struct {
	service  *Service
	store    *countingStore
	sender   *recordingSender
	clock    *fakeClock
	sessions *fakeSessions
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	store := &countingStore{PersistenceProvider: persistence.NewInMemoryProvider()}
	sender := newRecordingSender()
	clock := newFakeClock()
	sessions := &fakeSessions{sessions: make(map[pubsubpkg.JID][]pubsubpkg.JID)}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	config := &Config{
		ServiceID:    "pubsub.example.org",
		Address:      "pubsub.example.org",
		Store:        store,
		Sender:       sender,
		Clock:        clock,
		Sessions:     sessions,
		Logger:       log,
		WriteWorkers: 1,
	}
	for _, m := range mutate {
		m(config)
	}

	service, err := NewService(config)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	t.Cleanup(func() {
		service.Close()
		store.Close()
	})

	return &testEnv{
		service:  service,
		store:    store,
		sender:   sender,
		clock:    clock,
		sessions: sessions,
	}
}

func (e *testEnv) leaf(t *testing.T, nodeID string, creator pubsubpkg.JID, opts Options, leafOpts LeafOptions) *LeafNode {
	t.Helper()
	node, err := e.service.CreateLeafNode(nodeID, creator, opts, leafOpts)
	if err != nil {
		t.Fatalf("CreateLeafNode(%q) error = %v", nodeID, err)
	}
	return node
}

func itemIDs(items []*pubsubpkg.Item) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID()
	}
	return ids
}
