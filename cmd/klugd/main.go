package main

import (
	"fmt"
	"os"

	"github.com/klugworks/klugstore/internal/cli"
	"github.com/klugworks/klugstore/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "klugd",
		Short: "Klug knowledge store daemon",
		Long:  "Klug daemon for running the knowledge store API server and background reconciler",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
