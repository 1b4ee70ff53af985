package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func doRequest(t *testing.T, setup *TestServerSetup, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	setup.Server.server.Handler.ServeHTTP(recorder, req)
	return recorder
}

func TestLoginEndpoint(t *testing.T) {
	setup := NewTestServerSetup(t)

	recorder := doRequest(t, setup, http.MethodPost, "/api/v1/auth/login", "", AuthRequest{JID: "alice@example.org"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("Login returned %d: %s", recorder.Code, recorder.Body.String())
	}

	var resp AuthResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Token == "" {
		t.Error("Expected non-empty token")
	}
	if resp.JID != "alice@example.org" {
		t.Errorf("Expected JID 'alice@example.org', got '%s'", resp.JID)
	}

	// Malformed addresses are rejected
	recorder = doRequest(t, setup, http.MethodPost, "/api/v1/auth/login", "", AuthRequest{JID: "nope"})
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Login with malformed jid returned %d, want 400", recorder.Code)
	}
}

func TestNodesRequireAuthentication(t *testing.T) {
	setup := NewTestServerSetup(t)

	recorder := doRequest(t, setup, http.MethodPost, "/api/v1/nodes", "", CreateNodeRequest{NodeID: "news"})
	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("Unauthenticated create returned %d, want 401", recorder.Code)
	}
}

func TestCreateAndGetNode(t *testing.T) {
	setup := NewTestServerSetup(t)
	token := setup.GenerateTestToken(t, "alice@example.org", false)

	recorder := doRequest(t, setup, http.MethodPost, "/api/v1/nodes", token, CreateNodeRequest{NodeID: "news"})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("Create returned %d: %s", recorder.Code, recorder.Body.String())
	}

	var created NodeResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if created.NodeID != "news" || created.Creator != "alice@example.org" {
		t.Errorf("Created node = %+v", created)
	}
	if !created.PersistItems || created.MaxItems != 50 || created.MaxPayloadSize != 5120 {
		t.Errorf("Leaf defaults not applied: %+v", created)
	}

	// Duplicate creation conflicts
	recorder = doRequest(t, setup, http.MethodPost, "/api/v1/nodes", token, CreateNodeRequest{NodeID: "news"})
	if recorder.Code != http.StatusConflict {
		t.Errorf("Duplicate create returned %d, want 409", recorder.Code)
	}

	recorder = doRequest(t, setup, http.MethodGet, "/api/v1/nodes/news", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("Get returned %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = doRequest(t, setup, http.MethodGet, "/api/v1/nodes/absent", token, nil)
	if recorder.Code != http.StatusNotFound {
		t.Errorf("Get absent node returned %d, want 404", recorder.Code)
	}
}

func TestCreateNodeUnderCollection(t *testing.T) {
	setup := NewTestServerSetup(t)
	token := setup.GenerateTestToken(t, "alice@example.org", false)

	recorder := doRequest(t, setup, http.MethodPost, "/api/v1/nodes", token, CreateNodeRequest{NodeID: "feeds", Collection: true})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("Create collection returned %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = doRequest(t, setup, http.MethodPost, "/api/v1/nodes", token, CreateNodeRequest{NodeID: "news", Parent: "feeds"})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("Create child returned %d: %s", recorder.Code, recorder.Body.String())
	}

	leaf, err := setup.Service.LeafNode("news")
	if err != nil {
		t.Fatalf("LeafNode() error = %v", err)
	}
	foundParent := false
	for _, parent := range leaf.Parents() {
		if parent.ID().Node == "feeds" {
			foundParent = true
		}
	}
	if !foundParent {
		t.Error("Child node is not registered under the requested parent")
	}

	// A leaf node cannot be a parent
	recorder = doRequest(t, setup, http.MethodPost, "/api/v1/nodes", token, CreateNodeRequest{NodeID: "deeper", Parent: "news"})
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Create under leaf returned %d, want 400", recorder.Code)
	}
}

func TestPublishAndRetrieveItems(t *testing.T) {
	setup := NewTestServerSetup(t)
	token := setup.GenerateTestToken(t, "alice@example.org", false)

	doRequest(t, setup, http.MethodPost, "/api/v1/nodes", token, CreateNodeRequest{NodeID: "news"})

	publish := PublishRequest{Items: []ItemPayload{
		{ID: "first", Payload: json.RawMessage(`{"headline":"hello"}`)},
		{Payload: json.RawMessage(`{"headline":"world"}`)},
	}}
	recorder := doRequest(t, setup, http.MethodPost, "/api/v1/nodes/news/items", token, publish)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("Publish returned %d: %s", recorder.Code, recorder.Body.String())
	}

	var pubResp PublishResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &pubResp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(pubResp.ItemIDs) != 2 || pubResp.ItemIDs[0] != "first" || pubResp.ItemIDs[1] == "" {
		t.Fatalf("Publish response item ids = %v", pubResp.ItemIDs)
	}

	setup.Service.Flush()

	recorder = doRequest(t, setup, http.MethodGet, "/api/v1/nodes/news/items?limit=10", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("List items returned %d: %s", recorder.Code, recorder.Body.String())
	}
	var list ItemsListResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &list); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if list.Count != 2 {
		t.Errorf("List count = %d, want 2", list.Count)
	}

	recorder = doRequest(t, setup, http.MethodGet, "/api/v1/nodes/news/items/first", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("Get item returned %d: %s", recorder.Code, recorder.Body.String())
	}
	var item ItemResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &item); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if item.Publisher != "alice@example.org" {
		t.Errorf("Item publisher = %s", item.Publisher)
	}

	recorder = doRequest(t, setup, http.MethodGet, "/api/v1/nodes/news/items/absent", token, nil)
	if recorder.Code != http.StatusNotFound {
		t.Errorf("Get absent item returned %d, want 404", recorder.Code)
	}
}

func TestPublishWithoutItemsRejected(t *testing.T) {
	setup := NewTestServerSetup(t)
	token := setup.GenerateTestToken(t, "alice@example.org", false)

	doRequest(t, setup, http.MethodPost, "/api/v1/nodes", token, CreateNodeRequest{NodeID: "news"})

	recorder := doRequest(t, setup, http.MethodPost, "/api/v1/nodes/news/items", token, PublishRequest{})
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Publish without items returned %d, want 400", recorder.Code)
	}
}

func TestPublishOversizedPayloadRejected(t *testing.T) {
	setup := NewTestServerSetup(t)
	token := setup.GenerateTestToken(t, "alice@example.org", false)

	doRequest(t, setup, http.MethodPost, "/api/v1/nodes", token, CreateNodeRequest{
		NodeID: "small",
		Config: []ConfigFieldPayload{{Name: "pubsub#max_payload_size", Values: []string{"8"}}},
	})

	publish := PublishRequest{Items: []ItemPayload{
		{ID: "big", Payload: json.RawMessage(fmt.Sprintf("%q", "this payload is longer than eight bytes"))},
	}}
	recorder := doRequest(t, setup, http.MethodPost, "/api/v1/nodes/small/items", token, publish)
	if recorder.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Oversized publish returned %d, want 413", recorder.Code)
	}
}

func TestRetractItem(t *testing.T) {
	setup := NewTestServerSetup(t)
	token := setup.GenerateTestToken(t, "alice@example.org", false)

	doRequest(t, setup, http.MethodPost, "/api/v1/nodes", token, CreateNodeRequest{NodeID: "news"})
	doRequest(t, setup, http.MethodPost, "/api/v1/nodes/news/items", token, PublishRequest{
		Items: []ItemPayload{{ID: "gone", Payload: json.RawMessage(`"x"`)}},
	})
	setup.Service.Flush()

	recorder := doRequest(t, setup, http.MethodDelete, "/api/v1/nodes/news/items/gone", token, nil)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("Retract returned %d: %s", recorder.Code, recorder.Body.String())
	}
	setup.Service.Flush()

	recorder = doRequest(t, setup, http.MethodGet, "/api/v1/nodes/news/items/gone", token, nil)
	if recorder.Code != http.StatusNotFound {
		t.Errorf("Get retracted item returned %d, want 404", recorder.Code)
	}
}

func TestConfigureNodeOwnerOnly(t *testing.T) {
	setup := NewTestServerSetup(t)
	ownerToken := setup.GenerateTestToken(t, "alice@example.org", false)
	otherToken := setup.GenerateTestToken(t, "bob@example.org", false)

	doRequest(t, setup, http.MethodPost, "/api/v1/nodes", ownerToken, CreateNodeRequest{NodeID: "news"})

	form := []ConfigFieldPayload{
		{Name: "pubsub#persist_items", Values: []string{"0"}},
		{Name: "pubsub#max_items", Values: []string{"500"}},
	}

	recorder := doRequest(t, setup, http.MethodPut, "/api/v1/nodes/news/config", otherToken, form)
	if recorder.Code != http.StatusForbidden {
		t.Errorf("Non-owner configure returned %d, want 403", recorder.Code)
	}

	recorder = doRequest(t, setup, http.MethodPut, "/api/v1/nodes/news/config", ownerToken, form)
	if recorder.Code != http.StatusOK {
		t.Fatalf("Owner configure returned %d: %s", recorder.Code, recorder.Body.String())
	}
	var resp NodeResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.PersistItems {
		t.Error("Node still persists items after configuration")
	}
	if resp.MaxItems != 1 {
		t.Errorf("MaxItems = %d for transient node, want 1", resp.MaxItems)
	}

	// Invalid field values are a client error
	bad := []ConfigFieldPayload{{Name: "pubsub#max_items", Values: []string{"many"}}}
	recorder = doRequest(t, setup, http.MethodPut, "/api/v1/nodes/news/config", ownerToken, bad)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Invalid configure returned %d, want 400", recorder.Code)
	}
}

func TestPurgeNode(t *testing.T) {
	setup := NewTestServerSetup(t)
	token := setup.GenerateTestToken(t, "alice@example.org", false)

	doRequest(t, setup, http.MethodPost, "/api/v1/nodes", token, CreateNodeRequest{NodeID: "news"})
	doRequest(t, setup, http.MethodPost, "/api/v1/nodes/news/items", token, PublishRequest{
		Items: []ItemPayload{
			{ID: "a", Payload: json.RawMessage(`"1"`)},
			{ID: "b", Payload: json.RawMessage(`"2"`)},
		},
	})
	setup.Service.Flush()

	recorder := doRequest(t, setup, http.MethodPost, "/api/v1/nodes/news/purge", token, nil)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("Purge returned %d: %s", recorder.Code, recorder.Body.String())
	}
	setup.Service.Flush()

	recorder = doRequest(t, setup, http.MethodGet, "/api/v1/nodes/news/items?limit=10", token, nil)
	var list ItemsListResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &list); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if list.Count != 1 {
		t.Errorf("Purge retained %d items, want 1", list.Count)
	}
}

func TestSubscribeEndpoint(t *testing.T) {
	setup := NewTestServerSetup(t)
	aliceToken := setup.GenerateTestToken(t, "alice@example.org", false)
	bobToken := setup.GenerateTestToken(t, "bob@example.org", false)

	doRequest(t, setup, http.MethodPost, "/api/v1/nodes", aliceToken, CreateNodeRequest{NodeID: "news"})

	recorder := doRequest(t, setup, http.MethodPost, "/api/v1/nodes/news/subscriptions", bobToken, SubscribeRequest{})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("Subscribe returned %d: %s", recorder.Code, recorder.Body.String())
	}
	var sub SubscriptionResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &sub); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if sub.Owner != "bob@example.org" || sub.Target != "bob@example.org" {
		t.Errorf("Subscription owner/target = %s/%s", sub.Owner, sub.Target)
	}
	if sub.State != "subscribed" {
		t.Errorf("Subscription state = %s", sub.State)
	}

	// A user may subscribe a specific session, but not someone else
	recorder = doRequest(t, setup, http.MethodPost, "/api/v1/nodes/news/subscriptions", bobToken, SubscribeRequest{Target: "bob@example.org/laptop"})
	if recorder.Code != http.StatusCreated {
		t.Errorf("Subscribe own session returned %d, want 201", recorder.Code)
	}
	recorder = doRequest(t, setup, http.MethodPost, "/api/v1/nodes/news/subscriptions", bobToken, SubscribeRequest{Target: "carol@example.org"})
	if recorder.Code != http.StatusForbidden {
		t.Errorf("Subscribe someone else returned %d, want 403", recorder.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	setup := NewTestServerSetup(t)

	recorder := doRequest(t, setup, http.MethodGet, "/api/v1/health", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("Health returned %d: %s", recorder.Code, recorder.Body.String())
	}
	var resp HealthResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Healthy {
		t.Error("Expected healthy service")
	}
	if resp.Service != "pubsub.example.org" {
		t.Errorf("Service = %s", resp.Service)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	setup := NewTestServerSetup(t)
	token := setup.GenerateTestToken(t, "alice@example.org", false)

	doRequest(t, setup, http.MethodPost, "/api/v1/nodes", token, CreateNodeRequest{NodeID: "news"})

	recorder := doRequest(t, setup, http.MethodDelete, "/api/v1/nodes/news/items", token, nil)
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE on items collection returned %d, want 405", recorder.Code)
	}
	recorder = doRequest(t, setup, http.MethodGet, "/api/v1/nodes/news/purge", token, nil)
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET on purge returned %d, want 405", recorder.Code)
	}
}
