package main

import (
	"context"
	"fmt"

	"github.com/rmacdonaldsmith/pubsubnode-go/pkg/httpclient"
	"github.com/spf13/cobra"
)

func newNodesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List nodes on the service",
		Long:  "List all pubsub nodes registered on the service.",
		RunE:  runNodes,
	}

	return cmd
}

func runNodes(cmd *cobra.Command, args []string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	response, err := client.ListNodes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list nodes: %w", err)
	}

	if len(response.Nodes) == 0 {
		fmt.Println("No nodes found.")
		return nil
	}

	fmt.Printf("Found %d node(s):\n\n", len(response.Nodes))
	for _, node := range response.Nodes {
		printNode(node)
	}

	return nil
}

func newCreateNodeCommand() *cobra.Command {
	var (
		nodeID     string
		collection bool
		parent     string
		persist    bool
		maxItems   int
	)

	cmd := &cobra.Command{
		Use:   "create-node",
		Short: "Create a pubsub node",
		Long: `Create a leaf node (items can be published to it) or a collection node
(other nodes can be attached under it).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateNode(cmd, nodeID, collection, parent, persist, maxItems)
		},
	}

	cmd.Flags().StringVar(&nodeID, "node", "", "Node identifier (required)")
	cmd.Flags().BoolVar(&collection, "collection", false, "Create a collection node instead of a leaf")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent collection to attach the node to")
	cmd.Flags().BoolVar(&persist, "persist", true, "Persist published items")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "Retention bound (0 = server default)")
	if err := cmd.MarkFlagRequired("node"); err != nil {
		panic(fmt.Sprintf("Failed to mark node as required: %v", err))
	}

	return cmd
}

func runCreateNode(cmd *cobra.Command, nodeID string, collection bool, parent string, persist bool, maxItems int) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req := httpclient.CreateNodeRequest{
		NodeID:     nodeID,
		Collection: collection,
		Parent:     parent,
	}
	if !collection {
		if !persist {
			req.Config = append(req.Config, httpclient.ConfigField{
				Name:   "pubsub#persist_items",
				Values: []string{"0"},
			})
		}
		if cmd.Flags().Changed("max-items") {
			req.Config = append(req.Config, httpclient.ConfigField{
				Name:   "pubsub#max_items",
				Values: []string{fmt.Sprintf("%d", maxItems)},
			})
		}
	}

	response, err := client.CreateNode(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}

	fmt.Printf("✅ Node created successfully!\n\n")
	printNode(*response)

	return nil
}

func newConfigureCommand() *cobra.Command {
	var (
		nodeID  string
		persist string
		maxI    string
		maxSize string
		sendSub string
	)

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Reconfigure a leaf node",
		Long: `Submit a configuration form for a leaf node. Only the flags you set are
included in the form; omitted flags leave the node unchanged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(cmd, nodeID, persist, maxI, maxSize, sendSub)
		},
	}

	cmd.Flags().StringVar(&nodeID, "node", "", "Node identifier (required)")
	cmd.Flags().StringVar(&persist, "persist-items", "", "Persist published items (1 or 0)")
	cmd.Flags().StringVar(&maxI, "max-items", "", "Retention bound")
	cmd.Flags().StringVar(&maxSize, "max-payload-size", "", "Maximum payload size in bytes")
	cmd.Flags().StringVar(&sendSub, "send-item-subscribe", "", "Send last item on subscribe (1 or 0)")
	if err := cmd.MarkFlagRequired("node"); err != nil {
		panic(fmt.Sprintf("Failed to mark node as required: %v", err))
	}

	return cmd
}

func runConfigure(cmd *cobra.Command, nodeID, persist, maxItems, maxSize, sendSub string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var form []httpclient.ConfigField
	for name, value := range map[string]string{
		"pubsub#persist_items":       persist,
		"pubsub#max_items":           maxItems,
		"pubsub#max_payload_size":    maxSize,
		"pubsub#send_item_subscribe": sendSub,
	} {
		if value != "" {
			form = append(form, httpclient.ConfigField{Name: name, Values: []string{value}})
		}
	}
	if len(form) == 0 {
		return fmt.Errorf("no configuration flags given")
	}

	response, err := client.ConfigureNode(ctx, nodeID, form)
	if err != nil {
		return fmt.Errorf("failed to configure node: %w", err)
	}

	fmt.Printf("✅ Node reconfigured!\n\n")
	printNode(*response)

	return nil
}

func newPurgeCommand() *cobra.Command {
	var nodeID string

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Purge a node's published items",
		Long:  "Delete all but the most recent published item on a node. Subscribers are notified.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPurge(nodeID)
		},
	}

	cmd.Flags().StringVar(&nodeID, "node", "", "Node identifier (required)")
	if err := cmd.MarkFlagRequired("node"); err != nil {
		panic(fmt.Sprintf("Failed to mark node as required: %v", err))
	}

	return cmd
}

func runPurge(nodeID string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.PurgeNode(ctx, nodeID); err != nil {
		return fmt.Errorf("failed to purge node: %w", err)
	}

	fmt.Printf("✅ Node '%s' purged.\n", nodeID)
	return nil
}

func printNode(node httpclient.NodeResponse) {
	kind := "leaf"
	if node.Collection {
		kind = "collection"
	}
	fmt.Printf("📂 %s (%s)\n", node.NodeID, kind)
	fmt.Printf("   Service: %s\n", node.Service)
	fmt.Printf("   Creator: %s\n", node.Creator)
	if !node.Collection {
		fmt.Printf("   Persist Items: %t\n", node.PersistItems)
		fmt.Printf("   Max Items: %d\n", node.MaxItems)
		fmt.Printf("   Max Payload Size: %d\n", node.MaxPayloadSize)
	}
	fmt.Println()
}
