package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rmacdonaldsmith/pubsubnode-go/pkg/httpclient"
	"github.com/spf13/cobra"
)

func newPublishCommand() *cobra.Command {
	var (
		nodeID  string
		itemID  string
		payload string
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish an item to a node",
		Long: `Publish an item to a leaf node. The payload should be valid JSON.
If no item ID is given the server assigns one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(nodeID, itemID, payload)
		},
	}

	cmd.Flags().StringVar(&nodeID, "node", "", "Node to publish to (required)")
	cmd.Flags().StringVar(&itemID, "item-id", "", "Item identifier (server-assigned if empty)")
	cmd.Flags().StringVar(&payload, "payload", "{}", "Item payload as JSON")
	if err := cmd.MarkFlagRequired("node"); err != nil {
		panic(fmt.Sprintf("Failed to mark node as required: %v", err))
	}

	return cmd
}

func runPublish(nodeID, itemID, payloadStr string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var payload json.RawMessage
	if payloadStr != "" {
		if !json.Valid([]byte(payloadStr)) {
			return fmt.Errorf("invalid JSON payload")
		}
		payload = json.RawMessage(payloadStr)
	}

	fmt.Printf("Publishing item to node '%s'...\n", nodeID)

	response, err := client.PublishItems(ctx, nodeID, []httpclient.Item{
		{ID: itemID, Payload: payload},
	})
	if err != nil {
		return fmt.Errorf("failed to publish item: %w", err)
	}

	fmt.Printf("✅ Item published successfully!\n")
	for _, id := range response.ItemIDs {
		fmt.Printf("Item ID: %s\n", id)
	}
	fmt.Printf("Timestamp: %s\n", response.Timestamp.Format("2006-01-02 15:04:05"))

	return nil
}
