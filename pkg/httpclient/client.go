package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Client provides HTTP client for the pubsub API
type Client struct {
	config     Config
	httpClient *http.Client
	token      string
	baseURL    *url.URL
}

// NewClient creates a new pubsub HTTP client
func NewClient(config Config) (*Client, error) {
	config.SetDefaults()

	// Validate required config
	if config.ServerURL == "" {
		return nil, fmt.Errorf("ServerURL is required")
	}
	if config.JID == "" {
		return nil, fmt.Errorf("JID is required")
	}

	// Parse base URL
	baseURL, err := url.Parse(config.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ServerURL: %w", err)
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
	}

	client := &Client{
		config:     config,
		httpClient: httpClient,
		baseURL:    baseURL,
	}

	return client, nil
}

// Authenticate authenticates with the pubsub server and stores the token
func (c *Client) Authenticate(ctx context.Context) error {
	authReq := map[string]string{
		"jid": c.config.JID,
	}

	var authResp AuthResponse
	err := c.doRequest(ctx, "POST", "/api/v1/auth/login", authReq, &authResp, false)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	c.token = authResp.Token
	return nil
}

// CreateNode creates a pubsub node
func (c *Client) CreateNode(ctx context.Context, req CreateNodeRequest) (*NodeResponse, error) {
	if c.token == "" {
		return nil, fmt.Errorf("client not authenticated - call Authenticate() first")
	}

	var resp NodeResponse
	err := c.doRequest(ctx, "POST", "/api/v1/nodes", req, &resp, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create node: %w", err)
	}

	return &resp, nil
}

// ListNodes returns all nodes on the service
func (c *Client) ListNodes(ctx context.Context) (*NodesListResponse, error) {
	if c.token == "" {
		return nil, fmt.Errorf("client not authenticated - call Authenticate() first")
	}

	var resp NodesListResponse
	err := c.doRequest(ctx, "GET", "/api/v1/nodes", nil, &resp, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	return &resp, nil
}

// GetNode returns a single node
func (c *Client) GetNode(ctx context.Context, nodeID string) (*NodeResponse, error) {
	if c.token == "" {
		return nil, fmt.Errorf("client not authenticated - call Authenticate() first")
	}

	path := fmt.Sprintf("/api/v1/nodes/%s", url.PathEscape(nodeID))
	var resp NodeResponse
	err := c.doRequest(ctx, "GET", path, nil, &resp, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	return &resp, nil
}

// ConfigureNode submits a configuration form for a node
func (c *Client) ConfigureNode(ctx context.Context, nodeID string, form []ConfigField) (*NodeResponse, error) {
	if c.token == "" {
		return nil, fmt.Errorf("client not authenticated - call Authenticate() first")
	}

	path := fmt.Sprintf("/api/v1/nodes/%s/config", url.PathEscape(nodeID))
	var resp NodeResponse
	err := c.doRequest(ctx, "PUT", path, form, &resp, true)
	if err != nil {
		return nil, fmt.Errorf("failed to configure node: %w", err)
	}

	return &resp, nil
}

// PublishItems publishes a batch of items to a node
func (c *Client) PublishItems(ctx context.Context, nodeID string, items []Item) (*PublishResponse, error) {
	if c.token == "" {
		return nil, fmt.Errorf("client not authenticated - call Authenticate() first")
	}

	path := fmt.Sprintf("/api/v1/nodes/%s/items", url.PathEscape(nodeID))
	var resp PublishResponse
	err := c.doRequest(ctx, "POST", path, PublishRequest{Items: items}, &resp, true)
	if err != nil {
		return nil, fmt.Errorf("failed to publish items: %w", err)
	}

	return &resp, nil
}

// GetItems returns up to limit published items, most recent first
func (c *Client) GetItems(ctx context.Context, nodeID string, limit int) (*ItemsListResponse, error) {
	if c.token == "" {
		return nil, fmt.Errorf("client not authenticated - call Authenticate() first")
	}

	path := fmt.Sprintf("/api/v1/nodes/%s/items", url.PathEscape(nodeID))
	queryParams := url.Values{}
	if limit > 0 {
		queryParams.Set("limit", fmt.Sprintf("%d", limit))
	}

	var resp ItemsListResponse
	err := c.doRequestWithQuery(ctx, "GET", path, queryParams, nil, &resp, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}

	return &resp, nil
}

// GetItem returns a single published item by identifier
func (c *Client) GetItem(ctx context.Context, nodeID, itemID string) (*ItemResponse, error) {
	if c.token == "" {
		return nil, fmt.Errorf("client not authenticated - call Authenticate() first")
	}

	path := fmt.Sprintf("/api/v1/nodes/%s/items/%s", url.PathEscape(nodeID), url.PathEscape(itemID))
	var resp ItemResponse
	err := c.doRequest(ctx, "GET", path, nil, &resp, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return &resp, nil
}

// RetractItem deletes a published item
func (c *Client) RetractItem(ctx context.Context, nodeID, itemID string) error {
	if c.token == "" {
		return fmt.Errorf("client not authenticated - call Authenticate() first")
	}

	path := fmt.Sprintf("/api/v1/nodes/%s/items/%s", url.PathEscape(nodeID), url.PathEscape(itemID))
	err := c.doRequest(ctx, "DELETE", path, nil, nil, true)
	if err != nil {
		return fmt.Errorf("failed to retract item: %w", err)
	}

	return nil
}

// PurgeNode deletes all but the most recent item on a node
func (c *Client) PurgeNode(ctx context.Context, nodeID string) error {
	if c.token == "" {
		return fmt.Errorf("client not authenticated - call Authenticate() first")
	}

	path := fmt.Sprintf("/api/v1/nodes/%s/purge", url.PathEscape(nodeID))
	err := c.doRequest(ctx, "POST", path, nil, nil, true)
	if err != nil {
		return fmt.Errorf("failed to purge node: %w", err)
	}

	return nil
}

// Subscribe creates a subscription on a node. Target may be empty to
// subscribe the authenticated address itself.
func (c *Client) Subscribe(ctx context.Context, nodeID, target string) (*SubscriptionResponse, error) {
	if c.token == "" {
		return nil, fmt.Errorf("client not authenticated - call Authenticate() first")
	}

	path := fmt.Sprintf("/api/v1/nodes/%s/subscriptions", url.PathEscape(nodeID))
	var resp SubscriptionResponse
	err := c.doRequest(ctx, "POST", path, SubscribeRequest{Target: target}, &resp, true)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	return &resp, nil
}

// GetHealth returns the health status of the pubsub server
func (c *Client) GetHealth(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	err := c.doRequest(ctx, "GET", "/api/v1/health", nil, &resp, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get health status: %w", err)
	}

	return &resp, nil
}

// doRequestWithQuery performs an HTTP request with query parameters and optional authentication
func (c *Client) doRequestWithQuery(ctx context.Context, method, path string, queryParams url.Values, reqBody interface{}, respBody interface{}, requireAuth bool) error {
	// Build full URL with query parameters
	u := &url.URL{Path: path}
	if len(queryParams) > 0 {
		u.RawQuery = queryParams.Encode()
	}
	fullURL := c.baseURL.ResolveReference(u)

	// Prepare request body
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	// Create request
	req, err := http.NewRequestWithContext(ctx, method, fullURL.String(), bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set("Content-Type", "application/json")
	if requireAuth && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	// Execute request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Read response body
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	// Check status code
	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			return fmt.Errorf("API error (%d): %s", resp.StatusCode, string(bodyBytes))
		}
		return fmt.Errorf("API error (%d): %s - %s", resp.StatusCode, errResp.Error, errResp.Message)
	}

	// Parse successful response
	if respBody != nil && len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, respBody); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// doRequest performs an HTTP request with optional authentication
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody interface{}, respBody interface{}, requireAuth bool) error {
	return c.doRequestWithQuery(ctx, method, path, nil, reqBody, respBody, requireAuth)
}

// IsAuthenticated returns whether the client has a valid token
func (c *Client) IsAuthenticated() bool {
	return c.token != ""
}

// GetToken returns the current authentication token
func (c *Client) GetToken() string {
	return c.token
}

// SetToken sets the authentication token (useful for testing or token reuse)
func (c *Client) SetToken(token string) {
	c.token = token
}
