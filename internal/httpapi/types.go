package httpapi

import (
	"encoding/json"
	"time"
)

// Request/Response types for the HTTP API

// AuthRequest represents a login request
type AuthRequest struct {
	JID string `json:"jid"`
}

// AuthResponse represents a login response
type AuthResponse struct {
	Token     string    `json:"token"`
	JID       string    `json:"jid"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ConfigFieldPayload is one submitted node configuration field
type ConfigFieldPayload struct {
	Name   string   `json:"name"`
	Values []string `json:"values,omitempty"`
}

// CreateNodeRequest represents a node creation request
type CreateNodeRequest struct {
	NodeID     string               `json:"nodeId"`
	Collection bool                 `json:"collection,omitempty"`
	Parent     string               `json:"parent,omitempty"`
	Config     []ConfigFieldPayload `json:"config,omitempty"`
}

// NodeResponse represents a node in API responses
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

// ItemPayload is one item in a publish request
type ItemPayload struct {
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PublishRequest represents an item publishing request
type PublishRequest struct {
	Items []ItemPayload `json:"items"`
}

// PublishResponse represents an item publishing response
type PublishResponse struct {
	NodeID    string    `json:"nodeId"`
	ItemIDs   []string  `json:"itemIds"`
	Timestamp time.Time `json:"timestamp"`
}

// ItemResponse represents a published item in API responses
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
