package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with the PubSubNode server",
		Long: `Authenticate with the PubSubNode server using your address.
This will generate a JWT token that can be used for subsequent requests.`,
		RunE: runAuth,
	}

	return cmd
}

func runAuth(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	fmt.Printf("Authenticating with server %s as %s...\n", serverURL, jid)

	err := client.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	token := client.GetToken()
	fmt.Printf("✅ Authentication successful!\n")
	fmt.Printf("Token: %s\n", token)
	fmt.Printf("\nYou can now use other commands or save this token for future use:\n")
	fmt.Printf("  export PUBSUBNODE_TOKEN=\"%s\"\n", token)
	fmt.Printf("  pubsubnode-cli --token \"$PUBSUBNODE_TOKEN\" publish --node news --payload '{\"msg\":\"hello\"}'\n")

	return nil
}
