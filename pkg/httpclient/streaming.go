package httpclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// StreamClient handles Server-Sent Events streaming of notifications
type StreamClient struct {
	client        *Client
	notifications chan NotificationMessage
	errors        chan error
	done          chan struct{}
	cancel        context.CancelFunc
	response      *http.Response
}

// StreamConfig configures the streaming client
type StreamConfig struct {
	// Resource names this session so several streams per user can be
	// told apart (optional)
	Resource string

	// BufferSize for the notification channel
	BufferSize int

	// ReconnectDelay for automatic reconnection
	ReconnectDelay time.Duration

	// MaxReconnectAttempts (0 = infinite)
	MaxReconnectAttempts int
}

// SetDefaults sets reasonable default values for StreamConfig
func (sc *StreamConfig) SetDefaults() {
	if sc.BufferSize == 0 {
		sc.BufferSize = 100
	}
	if sc.ReconnectDelay == 0 {
		sc.ReconnectDelay = 2 * time.Second
	}
}

// Stream opens an SSE notification stream. The server registers the stream
// as a live session of the authenticated user; published items, retractions
// and purges on subscribed nodes arrive on the Notifications channel.
func (c *Client) Stream(ctx context.Context, config StreamConfig) (*StreamClient, error) {
	if c.token == "" {
		return nil, fmt.Errorf("client not authenticated - call Authenticate() first")
	}

	config.SetDefaults()

	streamCtx, cancel := context.WithCancel(ctx)

	streamClient := &StreamClient{
		client:        c,
		notifications: make(chan NotificationMessage, config.BufferSize),
		errors:        make(chan error, 10),
		done:          make(chan struct{}),
		cancel:        cancel,
	}

	// Start streaming in background
	go streamClient.startStreaming(streamCtx, config)

	return streamClient, nil
}

// Notifications returns the channel for receiving notifications
func (sc *StreamClient) Notifications() <-chan NotificationMessage {
	return sc.notifications
}

// Errors returns the channel for receiving errors
func (sc *StreamClient) Errors() <-chan error {
	return sc.errors
}

// Done returns a channel that's closed when streaming ends
func (sc *StreamClient) Done() <-chan struct{} {
	return sc.done
}

// Close stops the streaming client and cleans up resources
func (sc *StreamClient) Close() error {
	sc.cancel()

	// Close HTTP response if open
	if sc.response != nil {
		sc.response.Body.Close()
	}

	// Wait for streaming goroutine to finish
	<-sc.done

	return nil
}

// startStreaming handles the SSE streaming loop with reconnection
func (sc *StreamClient) startStreaming(ctx context.Context, config StreamConfig) {
	defer close(sc.done)
	defer close(sc.notifications)
	defer close(sc.errors)

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := sc.connectAndStream(ctx, config)
		if err != nil {
			select {
			case sc.errors <- fmt.Errorf("streaming error: %w", err):
			case <-ctx.Done():
				return
			default:
			}
		}

		// Check if we should reconnect
		if config.MaxReconnectAttempts > 0 && attempts >= config.MaxReconnectAttempts {
			select {
			case sc.errors <- fmt.Errorf("max reconnect attempts (%d) exceeded", config.MaxReconnectAttempts):
			case <-ctx.Done():
			}
			return
		}

		attempts++

		// Wait before reconnecting
		select {
		case <-time.After(config.ReconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

// connectAndStream establishes SSE connection and processes notifications
func (sc *StreamClient) connectAndStream(ctx context.Context, config StreamConfig) error {
	streamURL := sc.client.baseURL.ResolveReference(&url.URL{Path: "/api/v1/notifications/stream"})

	if config.Resource != "" {
		values := streamURL.Query()
		values.Set("resource", config.Resource)
		streamURL.RawQuery = values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", streamURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create streaming request: %w", err)
	}

	// Set SSE headers
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Authorization", "Bearer "+sc.client.token)

	resp, err := sc.client.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to stream: %w", err)
	}

	sc.response = resp
	defer func() {
		resp.Body.Close()
		sc.response = nil
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("streaming failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return sc.processSSEStream(ctx, resp.Body)
}

// processSSEStream reads and parses Server-Sent Events
func (sc *StreamClient) processSSEStream(ctx context.Context, reader io.Reader) error {
	scanner := bufio.NewScanner(reader)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()

		if strings.HasPrefix(line, "data: ") {
			jsonData := strings.TrimPrefix(line, "data: ")

			var notification NotificationMessage
			if err := json.Unmarshal([]byte(jsonData), &notification); err != nil {
				// Send error but continue processing
				select {
				case sc.errors <- fmt.Errorf("failed to parse notification: %w", err):
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				continue
			}

			select {
			case sc.notifications <- notification:
			case <-ctx.Done():
				return ctx.Err()
			default:
				// Channel full, drop notification
			}
		}
		// Keepalive comments (": ping") and blank separators are skipped
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}

	return nil
}
