package httpapi

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/rmacdonaldsmith/pubsubnode-go/internal/persistence"
	"github.com/rmacdonaldsmith/pubsubnode-go/internal/pubsub"
)

// TestServerSetup holds common test dependencies
type TestServerSetup struct {
	Service *pubsub.Service
	Hub     *Hub
	Server  *Server
	Auth    *JWTAuth
}

// NewTestServerSetup creates a pubsub service backed by an in-memory store
// and an HTTP server over it
func NewTestServerSetup(t *testing.T) *TestServerSetup {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	store := persistence.NewInMemoryProvider()
	hub := NewHub(log)

	service, err := pubsub.NewService(&pubsub.Config{
		ServiceID: "pubsub.example.org",
		Address:   "pubsub.example.org",
		Store:     store,
		Sender:    hub,
		Sessions:  hub,
		Logger:    log,
	})
	if err != nil {
		t.Fatalf("Failed to create pubsub service: %v", err)
	}

	server := NewServer(service, hub, Config{
		Port:      "8081",
		SecretKey: "test-secret-key",
		Logger:    log,
	})
	if server == nil {
		t.Fatal("Expected server to be created, got nil")
	}

	t.Cleanup(func() {
		service.Close()
		store.Close()
	})

	return &TestServerSetup{
		Service: service,
		Hub:     hub,
		Server:  server,
		Auth:    server.jwtAuth,
	}
}

// GenerateTestToken creates a JWT token for testing
func (setup *TestServerSetup) GenerateTestToken(t *testing.T, jid string, isAdmin bool) string {
	t.Helper()

	token, _, err := setup.Auth.GenerateToken(jid, isAdmin)
	if err != nil {
		t.Fatalf("Failed to generate test token: %v", err)
	}
	return token
}
