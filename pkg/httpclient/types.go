package httpclient

import (
	"encoding/json"
	"time"
)

// Config holds client configuration
type Config struct {
	// ServerURL is the base URL of the pubsub HTTP API (e.g., "http://localhost:8081")
	ServerURL string

	// JID is the address this client authenticates as
	JID string

	// Timeout for HTTP requests
	Timeout time.Duration

	// MaxRetries for failed requests
	MaxRetries int
}

// SetDefaults sets reasonable default values for the config
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// AuthResponse represents the response from authentication
type AuthResponse struct {
	Token     string    `json:"token"`
	JID       string    `json:"jid"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ConfigField is one node configuration field
type ConfigField struct {
	Name   string   `json:"name"`
	Values []string `json:"values,omitempty"`
}

// CreateNodeRequest represents a node creation request
type CreateNodeRequest struct {
	NodeID     string        `json:"nodeId"`
	Collection bool          `json:"collection,omitempty"`
	Parent     string        `json:"parent,omitempty"`
	Config     []ConfigField `json:"config,omitempty"`
}

// NodeResponse represents a node
type NodeResponse struct {
	Service           string `json:"service"`
	NodeID            string `json:"nodeId"`
	Collection        bool   `json:"collection"`
	Creator           string `json:"creator"`
	PersistItems      bool   `json:"persistItems,omitempty"`
	MaxItems          int    `json:"maxItems,omitempty"`
	MaxPayloadSize    int    `json:"maxPayloadSize,omitempty"`
	SendItemSubscribe bool   `json:"sendItemSubscribe,omitempty"`
}

// NodesListResponse represents a list of nodes
type NodesListResponse struct {
	Nodes []NodeResponse `json:"nodes"`
}

// Item is one item in a publish request
type Item struct {
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PublishRequest represents an item publishing request
type PublishRequest struct {
	Items []Item `json:"items"`
}

// PublishResponse represents an item publishing response
type PublishResponse struct {
	NodeID    string    `json:"nodeId"`
	ItemIDs   []string  `json:"itemIds"`
	Timestamp time.Time `json:"timestamp"`
}

// ItemResponse represents a published item
type ItemResponse struct {
	ID        string          `json:"id"`
	NodeID    string          `json:"nodeId"`
	Publisher string          `json:"publisher"`
	CreatedAt time.Time       `json:"createdAt"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ItemsListResponse represents a list of published items, most recent first
type ItemsListResponse struct {
	NodeID string         `json:"nodeId"`
	Items  []ItemResponse `json:"items"`
	Count  int            `json:"count"`
}

// SubscribeRequest represents a subscription creation request
type SubscribeRequest struct {
	Target string `json:"target,omitempty"`
}

// SubscriptionResponse represents a subscription response
type SubscriptionResponse struct {
	ID        string    `json:"id"`
	NodeID    string    `json:"nodeId"`
	Owner     string    `json:"owner"`
	Target    string    `json:"target"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Healthy        bool   `json:"healthy"`
	Service        string `json:"service"`
	Nodes          int    `json:"nodes"`
	ConnectedUsers int    `json:"connectedUsers"`
	Message        string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// NotificationMessage represents a server-sent notification message
type NotificationMessage struct {
	Kind      string         `json:"kind"`
	NodeID    string         `json:"nodeId"`
	Items     []ItemResponse `json:"items,omitempty"`
	ItemIDs   []string       `json:"itemIds,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
