package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rmacdonaldsmith/pubsubnode-go/internal/pubsub"
)

// Server represents the HTTP API server
type Server struct {
	service    *pubsub.Service
	hub        *Hub
	jwtAuth    *JWTAuth
	handlers   *Handlers
	middleware *Middleware
	server     *http.Server
	log        *logrus.Logger
}

// Config holds server configuration
type Config struct {
	Port      string
	SecretKey string
	NoAuth    bool
	Logger    *logrus.Logger
}

// NewServer creates a new HTTP API server over the pubsub service. The hub
// is the same object wired into the service as its notification transport
// and session registry.
func NewServer(service *pubsub.Service, hub *Hub, config Config) *Server {
	secretKey := config.SecretKey
	if secretKey == "" {
		secretKey = "pubsubnode-dev-secret-key-change-in-production"
	}
	log := config.Logger
	if log == nil {
		log = logrus.New()
	}

	jwtAuth := NewJWTAuth(secretKey)
	handlers := NewHandlers(service, jwtAuth, hub, log)
	middleware := NewMiddleware(jwtAuth, log, config.NoAuth)

	server := &Server{
		service:    service,
		hub:        hub,
		jwtAuth:    jwtAuth,
		handlers:   handlers,
		middleware: middleware,
		log:        log,
	}

	mux := server.setupRoutes()
	httpServer := &http.Server{
		Addr:           ":" + config.Port,
		Handler:        mux,
		ReadTimeout:    30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	server.server = httpServer
	return server
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Apply global middleware
	withMiddleware := func(handler http.HandlerFunc) http.Handler {
		return s.middleware.Recovery(
			s.middleware.Logging(
				s.middleware.CORS(
					s.middleware.ContentType(handler))))
	}

	// Authentication endpoints (no auth required)
	mux.Handle("/api/v1/auth/login", withMiddleware(s.handlers.Login))

	// Node endpoints (auth required)
	mux.Handle("/api/v1/nodes", withMiddleware(s.middleware.AuthRequired(s.handleNodes)))
	mux.Handle("/api/v1/nodes/", withMiddleware(s.middleware.AuthRequired(s.handleNodeSubpath)))

	// Notification streaming (auth required)
	mux.Handle("/api/v1/notifications/stream", withMiddleware(s.middleware.AuthRequired(s.handlers.StreamNotifications)))

	// Health endpoint (no auth required)
	mux.Handle("/api/v1/health", withMiddleware(s.handlers.Health))

	// Root endpoint with API info
	mux.Handle("/", withMiddleware(s.handleRoot))

	return mux
}

// Route handlers that dispatch based on HTTP method

// handleNodes routes node collection requests based on HTTP method
func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlers.CreateNode(w, r)
	case http.MethodGet:
		s.handlers.ListNodes(w, r)
	default:
		s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleNodeSubpath dispatches /api/v1/nodes/{node}[/...] requests. The
// node identifier is the first path segment; the rest selects the
// operation.
func (s *Server) handleNodeSubpath(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/nodes/")
	if path == "" {
		s.writeError(w, "Node identifier required", http.StatusBadRequest)
		return
	}

	nodeID := path
	rest := ""
	if i := strings.Index(path, "/"); i >= 0 {
		nodeID, rest = path[:i], path[i+1:]
	}
	if nodeID == "" {
		s.writeError(w, "Node identifier required", http.StatusBadRequest)
		return
	}

	r = r.WithContext(context.WithValue(r.Context(), NodeIDKey, nodeID))

	switch {
	case rest == "":
		if r.Method != http.MethodGet {
			s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handlers.GetNode(w, r)

	case rest == "config":
		if r.Method != http.MethodPut {
			s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handlers.ConfigureNode(w, r)

	case rest == "items":
		switch r.Method {
		case http.MethodPost:
			s.handlers.PublishItems(w, r)
		case http.MethodGet:
			s.handlers.GetItems(w, r)
		default:
			s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		}

	case strings.HasPrefix(rest, "items/"):
		itemID := strings.TrimPrefix(rest, "items/")
		if itemID == "" {
			s.writeError(w, "Item identifier required", http.StatusBadRequest)
			return
		}
		r = r.WithContext(context.WithValue(r.Context(), ItemIDKey, itemID))
		switch r.Method {
		case http.MethodGet:
			s.handlers.GetItem(w, r)
		case http.MethodDelete:
			s.handlers.RetractItem(w, r)
		default:
			s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		}

	case rest == "purge":
		if r.Method != http.MethodPost {
			s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handlers.PurgeNode(w, r)

	case rest == "subscriptions":
		if r.Method != http.MethodPost {
			s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handlers.Subscribe(w, r)

	default:
		s.writeError(w, "Not found", http.StatusNotFound)
	}
}

// handleRoot provides API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, "Not found", http.StatusNotFound)
		return
	}

	info := map[string]interface{}{
		"service":     "PubSubNode HTTP API",
		"version":     "1.0.0",
		"description": "RESTful HTTP API for the publish/subscribe node service",
		"endpoints": map[string]interface{}{
			"auth": map[string]string{
				"login": "POST /api/v1/auth/login",
			},
			"nodes": map[string]string{
				"create":    "POST /api/v1/nodes",
				"list":      "GET /api/v1/nodes",
				"get":       "GET /api/v1/nodes/{node}",
				"configure": "PUT /api/v1/nodes/{node}/config",
				"purge":     "POST /api/v1/nodes/{node}/purge",
			},
			"items": map[string]string{
				"publish": "POST /api/v1/nodes/{node}/items",
				"list":    "GET /api/v1/nodes/{node}/items?limit={limit}",
				"get":     "GET /api/v1/nodes/{node}/items/{id}",
				"retract": "DELETE /api/v1/nodes/{node}/items/{id}",
			},
			"subscriptions": map[string]string{
				"create": "POST /api/v1/nodes/{node}/subscriptions",
			},
			"notifications": map[string]string{
				"stream": "GET /api/v1/notifications/stream?resource={resource}",
			},
			"health": "GET /api/v1/health",
		},
		"authentication": "Bearer JWT token required for most endpoints",
	}

	s.writeJSON(w, info, http.StatusOK)
}

// Helper methods

// writeError writes an error response as JSON
func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	errorResp := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	s.writeJSON(w, errorResp, statusCode)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
