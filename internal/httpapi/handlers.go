package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rmacdonaldsmith/pubsubnode-go/internal/pubsub"
	pubsubpkg "github.com/rmacdonaldsmith/pubsubnode-go/pkg/pubsub"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	service *pubsub.Service
	jwtAuth *JWTAuth
	hub     *Hub
	log     *logrus.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(service *pubsub.Service, jwtAuth *JWTAuth, hub *Hub, log *logrus.Logger) *Handlers {
	return &Handlers{
		service: service,
		jwtAuth: jwtAuth,
		hub:     hub,
		log:     log,
	}
}

// Auth endpoints

// Login handles POST /api/v1/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := h.validateJSON(r); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.validateJID(req.JID); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Simple username-based admin detection; a production deployment
	// validates credentials against a user store.
	isAdmin := pubsubpkg.JID(req.JID).Username() == "admin"

	token, expiresAt, err := h.jwtAuth.GenerateToken(req.JID, isAdmin)
	if err != nil {
		h.writeError(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	resp := AuthResponse{
		Token:     token,
		JID:       req.JID,
		ExpiresAt: expiresAt,
	}

	h.writeJSON(w, resp, http.StatusOK)
}

// Node endpoints

// CreateNode handles POST /api/v1/nodes
func (h *Handlers) CreateNode(w http.ResponseWriter, r *http.Request) {
	if err := h.validateJSON(r); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req CreateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.NodeID == "" {
		h.writeError(w, "nodeId is required", http.StatusBadRequest)
		return
	}

	creator := pubsubpkg.JID(GetJID(r))

	var node pubsub.Node
	if req.Collection {
		collection, err := h.service.CreateCollectionNode(req.NodeID, creator, pubsub.DefaultOptions())
		if err != nil {
			h.writeCreateError(w, err)
			return
		}
		node = collection
	} else {
		leaf, err := h.service.CreateLeafNode(req.NodeID, creator, pubsub.DefaultOptions(), pubsub.DefaultLeafOptions())
		if err != nil {
			h.writeCreateError(w, err)
			return
		}
		if len(req.Config) > 0 {
			if err := leaf.ApplyConfigForm(toConfigForm(req.Config)); err != nil {
				h.writeError(w, fmt.Sprintf("Invalid node configuration: %v", err), http.StatusBadRequest)
				return
			}
		}
		node = leaf
	}

	if req.Parent != "" {
		parent, err := h.service.Node(req.Parent)
		if err != nil {
			h.writeError(w, fmt.Sprintf("Parent node not found: %s", req.Parent), http.StatusNotFound)
			return
		}
		collection, ok := parent.(*pubsub.CollectionNode)
		if !ok {
			h.writeError(w, fmt.Sprintf("Parent node %s is not a collection", req.Parent), http.StatusBadRequest)
			return
		}
		collection.AddChild(node)
	}

	h.writeJSON(w, h.nodeResponse(node), http.StatusCreated)
}

// ListNodes handles GET /api/v1/nodes
func (h *Handlers) ListNodes(w http.ResponseWriter, r *http.Request) {
	nodes := h.service.Nodes()
	resp := NodesListResponse{Nodes: make([]NodeResponse, 0, len(nodes))}
	for _, node := range nodes {
		resp.Nodes = append(resp.Nodes, h.nodeResponse(node))
	}
	h.writeJSON(w, resp, http.StatusOK)
}

// GetNode handles GET /api/v1/nodes/{node}
func (h *Handlers) GetNode(w http.ResponseWriter, r *http.Request) {
	node, err := h.service.Node(GetNodeID(r))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	h.writeJSON(w, h.nodeResponse(node), http.StatusOK)
}

// ConfigureNode handles PUT /api/v1/nodes/{node}/config
func (h *Handlers) ConfigureNode(w http.ResponseWriter, r *http.Request) {
	if err := h.validateJSON(r); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	leaf, err := h.service.LeafNode(GetNodeID(r))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	if !h.isNodeOwner(r, leaf) {
		h.writeError(w, "Only the node owner may configure the node", http.StatusForbidden)
		return
	}

	var fields []ConfigFieldPayload
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := leaf.ApplyConfigForm(toConfigForm(fields)); err != nil {
		if errors.Is(err, pubsub.ErrInvalidFieldValue) {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, fmt.Sprintf("Failed to configure node: %v", err), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, h.nodeResponse(leaf), http.StatusOK)
}

// Item endpoints

// PublishItems handles POST /api/v1/nodes/{node}/items
func (h *Handlers) PublishItems(w http.ResponseWriter, r *http.Request) {
	if err := h.validateJSON(r); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	leaf, err := h.service.LeafNode(GetNodeID(r))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusNotFound)
		return
	}

	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	maxPayload := leaf.MaxPayloadSize()
	rawItems := make([]pubsubpkg.RawItem, 0, len(req.Items))
	for _, item := range req.Items {
		if maxPayload > 0 && len(item.Payload) > maxPayload {
			h.writeError(w, fmt.Sprintf("Payload of item %q exceeds the %d byte limit", item.ID, maxPayload), http.StatusRequestEntityTooLarge)
			return
		}
		rawItems = append(rawItems, pubsubpkg.RawItem{ID: item.ID, Payload: item.Payload})
	}

	publisher := pubsubpkg.JID(GetJID(r))
	published, err := leaf.PublishItems(r.Context(), publisher, rawItems)
	if err != nil {
		switch {
		case errors.Is(err, pubsub.ErrItemRequired):
			h.writeError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, pubsub.ErrPublishNotAuthorized):
			h.writeError(w, err.Error(), http.StatusForbidden)
		default:
			h.writeError(w, fmt.Sprintf("Failed to publish: %v", err), http.StatusInternalServerError)
		}
		return
	}

	resp := PublishResponse{
		NodeID:    leaf.ID().Node,
		ItemIDs:   make([]string, 0, len(published)),
		Timestamp: time.Now(),
	}
	for _, item := range published {
		resp.ItemIDs = append(resp.ItemIDs, item.ID())
	}
	h.writeJSON(w, resp, http.StatusCreated)
}

// GetItems handles GET /api/v1/nodes/{node}/items?limit={limit}
func (h *Handlers) GetItems(w http.ResponseWriter, r *http.Request) {
	leaf, err := h.service.LeafNode(GetNodeID(r))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusNotFound)
		return
	}

	limit := leaf.MaxItems()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	items, err := leaf.GetPublishedItems(r.Context(), limit)
	if err != nil {
		h.writeError(w, fmt.Sprintf("Failed to fetch items: %v", err), http.StatusInternalServerError)
		return
	}

	resp := ItemsListResponse{
		NodeID: leaf.ID().Node,
		Items:  make([]ItemResponse, 0, len(items)),
		Count:  len(items),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, itemResponse(item))
	}
	h.writeJSON(w, resp, http.StatusOK)
}

// GetItem handles GET /api/v1/nodes/{node}/items/{id}
func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	leaf, err := h.service.LeafNode(GetNodeID(r))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusNotFound)
		return
	}

	item, err := leaf.GetPublishedItem(r.Context(), GetItemID(r))
	if err != nil {
		h.writeError(w, fmt.Sprintf("Failed to fetch item: %v", err), http.StatusInternalServerError)
		return
	}
	if item == nil {
		h.writeError(w, fmt.Sprintf("Item %s not found", GetItemID(r)), http.StatusNotFound)
		return
	}
	h.writeJSON(w, itemResponse(item), http.StatusOK)
}

// RetractItem handles DELETE /api/v1/nodes/{node}/items/{id}
func (h *Handlers) RetractItem(w http.ResponseWriter, r *http.Request) {
	leaf, err := h.service.LeafNode(GetNodeID(r))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusNotFound)
		return
	}

	item, err := leaf.GetPublishedItem(r.Context(), GetItemID(r))
	if err != nil {
		h.writeError(w, fmt.Sprintf("Failed to fetch item: %v", err), http.StatusInternalServerError)
		return
	}
	if item == nil {
		h.writeError(w, fmt.Sprintf("Item %s not found", GetItemID(r)), http.StatusNotFound)
		return
	}

	if err := leaf.DeleteItems(r.Context(), []*pubsubpkg.Item{item}); err != nil {
		h.writeError(w, fmt.Sprintf("Failed to retract item: %v", err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PurgeNode handles POST /api/v1/nodes/{node}/purge
func (h *Handlers) PurgeNode(w http.ResponseWriter, r *http.Request) {
	leaf, err := h.service.LeafNode(GetNodeID(r))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	if !h.isNodeOwner(r, leaf) {
		h.writeError(w, "Only the node owner may purge the node", http.StatusForbidden)
		return
	}

	if err := leaf.Purge(r.Context()); err != nil {
		h.writeError(w, fmt.Sprintf("Failed to purge node: %v", err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Subscription endpoints

// Subscribe handles POST /api/v1/nodes/{node}/subscriptions
func (h *Handlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	if err := h.validateJSON(r); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	leaf, err := h.service.LeafNode(GetNodeID(r))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusNotFound)
		return
	}

	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	owner := pubsubpkg.JID(GetJID(r))
	target := owner
	if req.Target != "" {
		target = pubsubpkg.JID(req.Target)
		if target.Bare() != owner.Bare() {
			h.writeError(w, "Target must be a session of the authenticated user", http.StatusForbidden)
			return
		}
	}

	sub, err := leaf.Subscribe(r.Context(), owner, target)
	if err != nil {
		if errors.Is(err, pubsub.ErrSubscriptionsDisabled) {
			h.writeError(w, err.Error(), http.StatusForbidden)
			return
		}
		h.writeError(w, fmt.Sprintf("Failed to subscribe: %v", err), http.StatusInternalServerError)
		return
	}

	resp := SubscriptionResponse{
		ID:        sub.ID(),
		NodeID:    leaf.ID().Node,
		Owner:     sub.Owner().String(),
		Target:    sub.JID().String(),
		State:     sub.State().String(),
		CreatedAt: sub.CreatedAt(),
	}
	h.writeJSON(w, resp, http.StatusCreated)
}

// Streaming endpoint

// StreamNotifications handles GET /api/v1/notifications/stream
func (h *Handlers) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r)
	if claims == nil {
		h.writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// The session address may carry a resource so several streams per user
	// can be told apart.
	jid := pubsubpkg.JID(claims.JID)
	if resource := r.URL.Query().Get("resource"); resource != "" {
		jid = pubsubpkg.JID(jid.Bare().String() + "/" + resource)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	conn := h.hub.Attach(jid)
	defer h.hub.Detach(conn)

	fmt.Fprintf(w, ": stream established for %s\n\n", jid)
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-ticker.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case n := <-conn.Notifications():
			if err := h.writeSSEMessage(w, notificationMessage(n)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// Health endpoint

// Health handles GET /api/v1/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Healthy:        true,
		Service:        h.service.ID(),
		Nodes:          len(h.service.Nodes()),
		ConnectedUsers: h.hub.ConnectedUsers(),
		Message:        "pubsub service is running",
	}
	h.writeJSON(w, resp, http.StatusOK)
}

// Helper methods

func (h *Handlers) nodeResponse(node pubsub.Node) NodeResponse {
	resp := NodeResponse{
		Service: node.ID().Service,
		NodeID:  node.ID().Node,
		Creator: node.Creator().String(),
	}
	switch n := node.(type) {
	case *pubsub.LeafNode:
		resp.PersistItems = n.PersistsItems()
		resp.MaxItems = n.MaxItems()
		resp.MaxPayloadSize = n.MaxPayloadSize()
		resp.SendItemSubscribe = n.SendsItemOnSubscribe()
	case *pubsub.CollectionNode:
		resp.Collection = true
	}
	return resp
}

// isNodeOwner reports whether the request comes from an owner of the node
// or an admin.
func (h *Handlers) isNodeOwner(r *http.Request, node pubsub.Node) bool {
	if IsAdmin(r) {
		return true
	}
	affiliate := nodeAffiliate(node, pubsubpkg.JID(GetJID(r)))
	return affiliate != nil && affiliate.Affiliation() == pubsub.OwnerAffiliation
}

func nodeAffiliate(node pubsub.Node, jid pubsubpkg.JID) *pubsub.Affiliate {
	for _, affiliate := range node.Affiliates() {
		if affiliate.JID() == jid.Bare() {
			return affiliate
		}
	}
	return nil
}

func toConfigForm(fields []ConfigFieldPayload) []pubsub.ConfigField {
	form := make([]pubsub.ConfigField, len(fields))
	for i, field := range fields {
		form[i] = pubsub.ConfigField{Name: field.Name, Values: field.Values}
	}
	return form
}

func itemResponse(item *pubsubpkg.Item) ItemResponse {
	return ItemResponse{
		ID:        item.ID(),
		NodeID:    item.NodeID().Node,
		Publisher: item.Publisher().String(),
		CreatedAt: item.CreatedAt(),
		Payload:   item.Payload(),
	}
}

func notificationMessage(n pubsubpkg.Notification) NotificationMessage {
	msg := NotificationMessage{
		Kind:      n.Kind.String(),
		NodeID:    n.Node.Node,
		ItemIDs:   n.ItemIDs,
		Timestamp: time.Now(),
	}
	for _, item := range n.Items {
		msg.Items = append(msg.Items, itemResponse(item))
	}
	return msg
}

// writeError writes an error response as JSON
func (h *Handlers) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	if err := json.NewEncoder(w).Encode(errorResp); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// writeCreateError maps node creation failures to HTTP status codes
func (h *Handlers) writeCreateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pubsub.ErrNodeExists):
		h.writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, pubsub.ErrNodeIDEmpty):
		h.writeError(w, err.Error(), http.StatusBadRequest)
	default:
		h.writeError(w, fmt.Sprintf("Failed to create node: %v", err), http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response
func (h *Handlers) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// validateJSON validates that the request has valid JSON content-type
func (h *Handlers) validateJSON(r *http.Request) error {
	contentType := r.Header.Get("Content-Type")
	if contentType != "application/json" {
		return fmt.Errorf("Content-Type must be application/json")
	}
	return nil
}

// validateJID validates an address submitted at login
func (h *Handlers) validateJID(jid string) error {
	if jid == "" {
		return fmt.Errorf("jid is required")
	}
	if len(jid) < 3 || !strings.Contains(jid, "@") {
		return fmt.Errorf("jid must be of the form user@domain")
	}
	return nil
}

// writeSSEMessage writes a NotificationMessage as an SSE data message
func (h *Handlers) writeSSEMessage(w http.ResponseWriter, message NotificationMessage) error {
	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE message: %w", err)
	}

	// Write in SSE format: "data: {json}\n\n"
	_, err = fmt.Fprintf(w, "data: %s\n\n", jsonData)
	return err
}
