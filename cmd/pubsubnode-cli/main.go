package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rmacdonaldsmith/pubsubnode-go/pkg/httpclient"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	serverURL string
	jid       string
	token     string
	timeout   time.Duration
	noAuth    bool

	// Global client instance
	client *httpclient.Client
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pubsubnode-cli",
		Short: "PubSubNode HTTP API command line interface",
		Long: `pubsubnode-cli is a command line interface for the PubSubNode HTTP API.
It provides commands for authentication, node management, item publishing,
subscriptions and real-time notification streaming.`,
		PersistentPreRunE: initializeClient,
	}

	// Add global flags
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8081", "PubSubNode server URL")
	rootCmd.PersistentFlags().StringVar(&jid, "jid", "", "Address to authenticate as (user@domain)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "JWT token (if already authenticated)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVar(&noAuth, "no-auth", false, "Skip authentication (for development with --no-auth servers)")

	// Add subcommands
	rootCmd.AddCommand(newAuthCommand())
	rootCmd.AddCommand(newNodesCommand())
	rootCmd.AddCommand(newCreateNodeCommand())
	rootCmd.AddCommand(newConfigureCommand())
	rootCmd.AddCommand(newPublishCommand())
	rootCmd.AddCommand(newItemsCommand())
	rootCmd.AddCommand(newRetractCommand())
	rootCmd.AddCommand(newPurgeCommand())
	rootCmd.AddCommand(newSubscribeCommand())
	rootCmd.AddCommand(newStreamCommand())
	rootCmd.AddCommand(newHealthCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// initializeClient sets up the HTTP client with global configuration
func initializeClient(cmd *cobra.Command, args []string) error {
	// Skip client initialization for help commands
	if cmd.Name() == "help" || cmd.Parent() == nil {
		return nil
	}

	// In no-auth mode, jid is not required
	if !noAuth && jid == "" {
		return fmt.Errorf("jid is required (unless using --no-auth)")
	}

	effectiveJID := jid
	if noAuth && effectiveJID == "" {
		effectiveJID = "dev@localhost"
	}

	config := httpclient.Config{
		ServerURL: serverURL,
		JID:       effectiveJID,
		Timeout:   timeout,
	}

	var err error
	client, err = httpclient.NewClient(config)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	// Set token if provided, or set dummy token in no-auth mode
	if token != "" {
		client.SetToken(token)
	} else if noAuth {
		client.SetToken("no-auth-mode")
	}

	return nil
}

// requireAuthentication checks if the client is authenticated
func requireAuthentication() error {
	if client == nil {
		return fmt.Errorf("client not initialized")
	}

	if noAuth {
		return nil
	}

	if !client.IsAuthenticated() {
		return fmt.Errorf("not authenticated - run 'pubsubnode-cli auth' first or provide --token")
	}
	return nil
}
