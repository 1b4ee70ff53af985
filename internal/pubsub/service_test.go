package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/rmacdonaldsmith/pubsubnode-go/internal/persistence"
	pubsubpkg "github.com/rmacdonaldsmith/pubsubnode-go/pkg/pubsub"
)

func TestNewServiceValidation(t *testing.T) {
	store := persistence.NewInMemoryProvider()
	defer store.Close()
	sender := newRecordingSender()

	cases := []struct {
		name   string
		config *Config
	}{
		{"nil config", nil},
		{"missing service ID", &Config{Address: "pubsub.example.org", Store: store, Sender: sender}},
		{"missing address", &Config{ServiceID: "pubsub.example.org", Store: store, Sender: sender}},
		{"missing store", &Config{ServiceID: "pubsub.example.org", Address: "pubsub.example.org", Sender: sender}},
		{"missing sender", &Config{ServiceID: "pubsub.example.org", Address: "pubsub.example.org", Store: store}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewService(tc.config); err == nil {
				t.Error("NewService() accepted an invalid config")
			}
		})
	}
}

func TestCreateNodeRegistersUnderRoot(t *testing.T) {
	env := newTestEnv(t)
	node := env.leaf(t, "news", alice, DefaultOptions(), DefaultLeafOptions())

	if node.ID().Service != env.service.ID() {
		t.Errorf("node service = %q, want %q", node.ID().Service, env.service.ID())
	}
	parents := node.Parents()
	if len(parents) != 1 || parents[0] != env.service.RootCollection() {
		t.Fatalf("new node has parents %v, want only the root collection", parents)
	}
	if affiliate := node.Affiliate(alice); affiliate == nil || affiliate.Affiliation() != OwnerAffiliation {
		t.Error("creator was not granted the owner affiliation")
	}
}

func TestCreateNodeRejectsDuplicatesAndEmptyID(t *testing.T) {
	env := newTestEnv(t)
	env.leaf(t, "news", alice, DefaultOptions(), DefaultLeafOptions())

	if _, err := env.service.CreateLeafNode("news", bob, DefaultOptions(), DefaultLeafOptions()); !errors.Is(err, ErrNodeExists) {
		t.Errorf("duplicate leaf error = %v, want ErrNodeExists", err)
	}
	if _, err := env.service.CreateCollectionNode("news", bob, DefaultOptions()); !errors.Is(err, ErrNodeExists) {
		t.Errorf("duplicate collection error = %v, want ErrNodeExists", err)
	}
	if _, err := env.service.CreateLeafNode("", alice, DefaultOptions(), DefaultLeafOptions()); !errors.Is(err, ErrNodeIDEmpty) {
		t.Errorf("empty identifier error = %v, want ErrNodeIDEmpty", err)
	}
}

func TestNodeLookup(t *testing.T) {
	env := newTestEnv(t)
	env.leaf(t, "news", alice, DefaultOptions(), DefaultLeafOptions())
	if _, err := env.service.CreateCollectionNode("feeds", alice, DefaultOptions()); err != nil {
		t.Fatalf("CreateCollectionNode() error = %v", err)
	}

	if _, err := env.service.LeafNode("news"); err != nil {
		t.Errorf("LeafNode(news) error = %v", err)
	}
	if _, err := env.service.LeafNode("feeds"); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("LeafNode(collection) error = %v, want ErrNodeNotFound", err)
	}
	if _, err := env.service.Node("absent"); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("Node(absent) error = %v, want ErrNodeNotFound", err)
	}
	if got := len(env.service.Nodes()); got != 2 {
		t.Errorf("Nodes() returned %d nodes, want 2", got)
	}
}

func TestSubscriptionAlwaysHasAffiliate(t *testing.T) {
	env := newTestEnv(t)
	node := env.leaf(t, "news", alice, DefaultOptions(), DefaultLeafOptions())

	sub, err := node.Subscribe(context.Background(), bob, "bob@example.org/laptop")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if sub.Affiliate() == nil {
		t.Fatal("subscription has no affiliate")
	}
	if sub.Affiliate() != node.Affiliate(bob) {
		t.Error("subscription affiliate is not a member of the node's affiliate set")
	}
	if sub.Affiliate().Affiliation() != NoAffiliation {
		t.Errorf("implicit affiliate holds %v, want none", sub.Affiliate().Affiliation())
	}
	if sub.Owner() != bob || sub.JID() != "bob@example.org/laptop" {
		t.Errorf("subscription owner/target = %s/%s", sub.Owner(), sub.JID())
	}
}

func TestSubscribeRejectsOutcastAndDisabled(t *testing.T) {
	env := newTestEnv(t)
	node := env.leaf(t, "news", alice, DefaultOptions(), DefaultLeafOptions())
	node.AddAffiliate(bob, OutcastAffiliation)
	if _, err := node.Subscribe(context.Background(), bob, bob); err == nil {
		t.Error("outcast was allowed to subscribe")
	}

	opts := DefaultOptions()
	opts.SubscriptionEnabled = false
	closed := env.leaf(t, "closed", alice, opts, DefaultLeafOptions())
	if _, err := closed.Subscribe(context.Background(), carol, carol); !errors.Is(err, ErrSubscriptionsDisabled) {
		t.Errorf("Subscribe() on disabled node error = %v, want ErrSubscriptionsDisabled", err)
	}
}

func TestListenersReceiveNodeEvents(t *testing.T) {
	env := newTestEnv(t)
	listener := &recordingListener{}
	env.service.RegisterListener(listener)
	node := env.leaf(t, "news", alice, DefaultOptions(), DefaultLeafOptions())
	ctx := context.Background()

	published, err := node.PublishItems(ctx, alice, []pubsubpkg.RawItem{{ID: "a", Payload: []byte("1")}})
	if err != nil {
		t.Fatalf("PublishItems() error = %v", err)
	}
	if err := node.DeleteItems(ctx, published); err != nil {
		t.Fatalf("DeleteItems() error = %v", err)
	}

	listener.mu.Lock()
	defer listener.mu.Unlock()
	if len(listener.published) != 1 || listener.published[0] != node.ID() {
		t.Errorf("published events = %v", listener.published)
	}
	if len(listener.deleted) != 1 || listener.deleted[0] != node.ID() {
		t.Errorf("deleted events = %v", listener.deleted)
	}
}

func TestCloseIsIdempotentAndStopsCreation(t *testing.T) {
	env := newTestEnv(t)

	if err := env.service.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := env.service.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if _, err := env.service.CreateLeafNode("late", alice, DefaultOptions(), DefaultLeafOptions()); !errors.Is(err, ErrServiceClosed) {
		t.Errorf("CreateLeafNode() after close error = %v, want ErrServiceClosed", err)
	}
}
