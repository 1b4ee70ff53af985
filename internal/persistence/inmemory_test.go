package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/rmacdonaldsmith/pubsubnode-go/pkg/pubsub"
)

var testNode = pubsub.NodeID{Service: "pubsub.example.org", Node: "news"}

func testItem(id string, created time.Time) *pubsub.Item {
	return pubsub.NewItem(testNode, id, "alice@example.org", created, []byte(`{"n":"`+id+`"}`))
}

func TestInMemoryProvider_SaveAndGet(t *testing.T) {
	provider := NewInMemoryProvider()
	defer provider.Close()
	ctx := context.Background()

	base := time.Now().UTC()
	if err := provider.SaveItem(ctx, testItem("a", base), 10); err != nil {
		t.Fatalf("Expected no error saving item, got %v", err)
	}
	if err := provider.SaveItem(ctx, testItem("b", base.Add(time.Second)), 10); err != nil {
		t.Fatalf("Expected no error saving item, got %v", err)
	}

	items, err := provider.GetItems(ctx, testNode, 10)
	if err != nil {
		t.Fatalf("Expected no error getting items, got %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}

	// Most recent first
	if items[0].ID() != "b" || items[1].ID() != "a" {
		t.Errorf("Expected order [b a], got [%s %s]", items[0].ID(), items[1].ID())
	}
}

func TestInMemoryProvider_SaveNil(t *testing.T) {
	provider := NewInMemoryProvider()
	defer provider.Close()

	if err := provider.SaveItem(context.Background(), nil, 10); err != ErrNilItem {
		t.Errorf("Expected ErrNilItem, got %v", err)
	}
}

func TestInMemoryProvider_RetentionTrim(t *testing.T) {
	provider := NewInMemoryProvider()
	defer provider.Close()
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		if err := provider.SaveItem(ctx, testItem(id, base.Add(time.Duration(i)*time.Second)), 2); err != nil {
			t.Fatalf("Expected no error saving item %s, got %v", id, err)
		}
	}

	items, err := provider.GetItems(ctx, testNode, 10)
	if err != nil {
		t.Fatalf("Expected no error getting items, got %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected retention bound of 2 items, got %d", len(items))
	}
	if items[0].ID() != "c" || items[1].ID() != "b" {
		t.Errorf("Expected newest items [c b], got [%s %s]", items[0].ID(), items[1].ID())
	}
}

func TestInMemoryProvider_ReplaceSameID(t *testing.T) {
	provider := NewInMemoryProvider()
	defer provider.Close()
	ctx := context.Background()

	base := time.Now().UTC()
	if err := provider.SaveItem(ctx, testItem("a", base), 10); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	replacement := pubsub.NewItem(testNode, "a", "bob@example.org", base.Add(time.Minute), []byte("v2"))
	if err := provider.SaveItem(ctx, replacement, 10); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	items, err := provider.GetItems(ctx, testNode, 10)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected republish to replace, got %d items", len(items))
	}
	if items[0].Publisher() != "bob@example.org" {
		t.Errorf("Expected replaced publisher, got %s", items[0].Publisher())
	}
}

func TestInMemoryProvider_OutOfOrderTimestamps(t *testing.T) {
	provider := NewInMemoryProvider()
	defer provider.Close()
	ctx := context.Background()

	base := time.Now().UTC()
	// Arrival order differs from creation order, as in a cluster.
	if err := provider.SaveItem(ctx, testItem("late", base.Add(2*time.Second)), 10); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := provider.SaveItem(ctx, testItem("early", base), 10); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	last, err := provider.GetLastItem(ctx, testNode)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if last == nil || last.ID() != "late" {
		t.Fatalf("Expected last item 'late' despite arrival order, got %v", last)
	}
}

func TestInMemoryProvider_RemoveItem(t *testing.T) {
	provider := NewInMemoryProvider()
	defer provider.Close()
	ctx := context.Background()

	item := testItem("a", time.Now().UTC())
	if err := provider.SaveItem(ctx, item, 10); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := provider.RemoveItem(ctx, item); err != nil {
		t.Fatalf("Expected no error removing item, got %v", err)
	}

	got, err := provider.GetItem(ctx, testNode, "a")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != nil {
		t.Errorf("Expected removed item to be absent, got %v", got)
	}

	// Removing again is not an error
	if err := provider.RemoveItem(ctx, item); err != nil {
		t.Errorf("Expected idempotent remove, got %v", err)
	}
}

func TestInMemoryProvider_PurgeNode(t *testing.T) {
	provider := NewInMemoryProvider()
	defer provider.Close()
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		if err := provider.SaveItem(ctx, testItem(id, base.Add(time.Duration(i)*time.Second)), 10); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}
	if err := provider.PurgeNode(ctx, testNode); err != nil {
		t.Fatalf("Expected no error purging, got %v", err)
	}

	items, err := provider.GetItems(ctx, testNode, 10)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(items) != 1 || items[0].ID() != "c" {
		t.Fatalf("Expected only most recent item 'c' after purge, got %v", items)
	}
}

func TestInMemoryProvider_GetItemsLimits(t *testing.T) {
	provider := NewInMemoryProvider()
	defer provider.Close()
	ctx := context.Background()

	if _, err := provider.GetItems(ctx, testNode, -1); err != ErrNegativeLimit {
		t.Errorf("Expected ErrNegativeLimit, got %v", err)
	}

	items, err := provider.GetItems(ctx, testNode, 0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected empty result for limit 0, got %d items", len(items))
	}
}

func TestInMemoryProvider_AbsentLookups(t *testing.T) {
	provider := NewInMemoryProvider()
	defer provider.Close()
	ctx := context.Background()

	item, err := provider.GetItem(ctx, testNode, "missing")
	if err != nil || item != nil {
		t.Errorf("Expected (nil, nil) for absent item, got (%v, %v)", item, err)
	}

	last, err := provider.GetLastItem(ctx, testNode)
	if err != nil || last != nil {
		t.Errorf("Expected (nil, nil) for empty node, got (%v, %v)", last, err)
	}
}

func TestInMemoryProvider_Close(t *testing.T) {
	provider := NewInMemoryProvider()

	if err := provider.Close(); err != nil {
		t.Fatalf("Expected no error closing, got %v", err)
	}
	if err := provider.Close(); err != nil {
		t.Fatalf("Expected idempotent close, got %v", err)
	}

	if err := provider.SaveItem(context.Background(), testItem("a", time.Now()), 10); err != ErrClosed {
		t.Errorf("Expected ErrClosed after close, got %v", err)
	}
}
