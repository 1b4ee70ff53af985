package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSubscribeCommand() *cobra.Command {
	var (
		nodeID string
		target string
	)

	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe to a node",
		Long: `Subscribe to a pubsub node. Notifications for the subscription arrive on
the notification stream (see 'pubsubnode-cli stream'). With --target, a
specific session of yours receives the notifications instead of every one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubscribe(nodeID, target)
		},
	}

	cmd.Flags().StringVar(&nodeID, "node", "", "Node to subscribe to (required)")
	cmd.Flags().StringVar(&target, "target", "", "Delivery address, must belong to you (defaults to your bare address)")
	if err := cmd.MarkFlagRequired("node"); err != nil {
		panic(fmt.Sprintf("Failed to mark node as required: %v", err))
	}

	return cmd
}

func runSubscribe(nodeID, target string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	response, err := client.Subscribe(ctx, nodeID, target)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	fmt.Printf("✅ Subscribed to node '%s'!\n", response.NodeID)
	fmt.Printf("Subscription ID: %s\n", response.ID)
	fmt.Printf("Owner: %s\n", response.Owner)
	fmt.Printf("Target: %s\n", response.Target)
	fmt.Printf("State: %s\n", response.State)

	return nil
}
