package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rmacdonaldsmith/pubsubnode-go/pkg/httpclient"
	"github.com/spf13/cobra"
)

func newStreamCommand() *cobra.Command {
	var (
		resource     string
		bufferSize   int
		prettyFormat bool
	)

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream notifications in real-time",
		Long: `Stream notifications in real-time using Server-Sent Events. The stream
registers as a live session of your address; published items, retractions
and purges on nodes you are subscribed to arrive as they happen.
Press Ctrl+C to stop streaming.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStream(resource, bufferSize, prettyFormat)
		},
	}

	cmd.Flags().StringVar(&resource, "resource", "", "Session name, so several streams per address can be told apart")
	cmd.Flags().IntVar(&bufferSize, "buffer-size", 100, "Notification buffer size")
	cmd.Flags().BoolVar(&prettyFormat, "pretty", false, "Pretty print JSON payloads")

	return cmd
}

func runStream(resource string, bufferSize int, prettyFormat bool) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle Ctrl+C gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\n🛑 Stopping stream...")
		cancel()
	}()

	config := httpclient.StreamConfig{
		Resource:             resource,
		BufferSize:           bufferSize,
		MaxReconnectAttempts: 0, // Infinite retries
	}

	fmt.Printf("🌊 Streaming notifications from %s", serverURL)
	if resource != "" {
		fmt.Printf(" (session: %s)", resource)
	}
	fmt.Println("...")
	fmt.Println("Press Ctrl+C to stop streaming")

	streamClient, err := client.Stream(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to start streaming: %w", err)
	}
	defer func() {
		if err := streamClient.Close(); err != nil {
			fmt.Printf("Warning: failed to close stream client: %v\n", err)
		}
	}()

	notificationCount := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\n✅ Stream stopped. Received %d notifications.\n", notificationCount)
			return nil

		case n, ok := <-streamClient.Notifications():
			if !ok {
				fmt.Printf("\n🔌 Notification stream closed. Received %d notifications.\n", notificationCount)
				return nil
			}

			notificationCount++
			printNotification(n, notificationCount, prettyFormat)

		case err, ok := <-streamClient.Errors():
			if !ok {
				fmt.Printf("\n🔌 Error stream closed. Received %d notifications.\n", notificationCount)
				return nil
			}

			fmt.Printf("❌ Stream error: %v\n", err)
			// Continue processing - errors are non-fatal for reconnection scenarios

		case <-streamClient.Done():
			fmt.Printf("\n🔌 Stream finished. Received %d notifications.\n", notificationCount)
			return nil
		}
	}
}

func printNotification(n httpclient.NotificationMessage, count int, pretty bool) {
	fmt.Printf("📨 Notification #%d:\n", count)
	fmt.Printf("   Kind: %s\n", n.Kind)
	fmt.Printf("   Node: %s\n", n.NodeID)
	fmt.Printf("   Time: %s\n", n.Timestamp.Format("2006-01-02 15:04:05.000"))

	for _, item := range n.Items {
		fmt.Printf("   Item: %s (publisher %s)\n", item.ID, item.Publisher)
		if item.Payload != nil {
			if pretty {
				var buf map[string]interface{}
				if err := json.Unmarshal(item.Payload, &buf); err == nil {
					if jsonBytes, err := json.MarshalIndent(buf, "         ", "  "); err == nil {
						fmt.Printf("         %s\n", string(jsonBytes))
						continue
					}
				}
			}
			fmt.Printf("         %s\n", string(item.Payload))
		}
	}
	for _, id := range n.ItemIDs {
		fmt.Printf("   Retracted: %s\n", id)
	}
	fmt.Println()
}
