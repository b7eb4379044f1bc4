package main

import (
	"fmt"
	"os"

	"github.com/klugworks/klugstore/internal/cli"
	"github.com/klugworks/klugstore/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "klug",
		Short: "Klug CLI - shared knowledge for teams and agents",
		Long: `Klug CLI stores, retrieves, and curates team knowledge.

Environment variables:
  KLUG_API_URL       API base URL (default: http://localhost:8080)
  KLUG_ADMIN_TOKEN   Admin token for forget and import (optional)
  KLUG_AUTHOR        Default author for stored knowledge (optional)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("admin-token", "", "Admin token (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.InitCmd())
	rootCmd.AddCommand(client.LearnCmd())
	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.ListCmd())
	rootCmd.AddCommand(client.FlagCmd())
	rootCmd.AddCommand(client.ForgetCmd())
	rootCmd.AddCommand(client.ImportCmd())
	rootCmd.AddCommand(client.ResolveCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
