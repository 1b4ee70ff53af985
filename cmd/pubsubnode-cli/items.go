package main

import (
	"context"
	"fmt"

	"github.com/rmacdonaldsmith/pubsubnode-go/pkg/httpclient"
	"github.com/spf13/cobra"
)

func newItemsCommand() *cobra.Command {
	var (
		nodeID string
		itemID string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "items",
		Short: "Retrieve published items from a node",
		Long: `Retrieve published items from a leaf node, most recent first.
With --item-id, fetch a single item instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if itemID != "" {
				return runGetItem(nodeID, itemID)
			}
			return runGetItems(nodeID, limit)
		},
	}

	cmd.Flags().StringVar(&nodeID, "node", "", "Node to read from (required)")
	cmd.Flags().StringVar(&itemID, "item-id", "", "Fetch a single item by identifier")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of items (0 = node retention bound)")
	if err := cmd.MarkFlagRequired("node"); err != nil {
		panic(fmt.Sprintf("Failed to mark node as required: %v", err))
	}

	return cmd
}

func runGetItems(nodeID string, limit int) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	response, err := client.GetItems(ctx, nodeID, limit)
	if err != nil {
		return fmt.Errorf("failed to get items: %w", err)
	}

	if response.Count == 0 {
		fmt.Printf("No items on node '%s'.\n", nodeID)
		return nil
	}

	fmt.Printf("Found %d item(s) on node '%s':\n\n", response.Count, nodeID)
	for i, item := range response.Items {
		printItem(item, i+1)
	}

	return nil
}

func runGetItem(nodeID, itemID string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	item, err := client.GetItem(ctx, nodeID, itemID)
	if err != nil {
		return fmt.Errorf("failed to get item: %w", err)
	}

	printItem(*item, 1)
	return nil
}

func newRetractCommand() *cobra.Command {
	var (
		nodeID string
		itemID string
	)

	cmd := &cobra.Command{
		Use:   "retract",
		Short: "Retract a published item",
		Long:  "Delete a published item from a leaf node. Subscribers may be notified, depending on node configuration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetract(nodeID, itemID)
		},
	}

	cmd.Flags().StringVar(&nodeID, "node", "", "Node identifier (required)")
	cmd.Flags().StringVar(&itemID, "item-id", "", "Item identifier (required)")
	if err := cmd.MarkFlagRequired("node"); err != nil {
		panic(fmt.Sprintf("Failed to mark node as required: %v", err))
	}
	if err := cmd.MarkFlagRequired("item-id"); err != nil {
		panic(fmt.Sprintf("Failed to mark item-id as required: %v", err))
	}

	return cmd
}

func runRetract(nodeID, itemID string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.RetractItem(ctx, nodeID, itemID); err != nil {
		return fmt.Errorf("failed to retract item: %w", err)
	}

	fmt.Printf("✅ Item '%s' retracted from node '%s'.\n", itemID, nodeID)
	return nil
}

func printItem(item httpclient.ItemResponse, count int) {
	fmt.Printf("📨 Item #%d:\n", count)
	fmt.Printf("   ID: %s\n", item.ID)
	fmt.Printf("   Publisher: %s\n", item.Publisher)
	fmt.Printf("   Created: %s\n", item.CreatedAt.Format("2006-01-02 15:04:05.000"))
	if item.Payload != nil {
		fmt.Printf("   Payload: %s\n", string(item.Payload))
	} else {
		fmt.Printf("   Payload: null\n")
	}
	fmt.Println()
}
