package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// FlagCmd creates the flag command.
func FlagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "flag <entry-id>",
		Aliases: []string{"outdate"},
		Short:   "Flag an entry as outdated",
		Long: `Marks an entry as outdated so it shows up for review. The content is
left untouched and the entry stays queryable; use forget or resolve to
actually retire it.

Examples:
  klug flag 7f3a1c2e-...
  klug list --by mallory   # flagged entries carry "outdated" metadata`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runFlag(cmd, args[0], outputJSON)
		},
	}

	return cmd
}

func runFlag(cmd *cobra.Command, entryID string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/entries/"+entryID+"/outdated", nil)
	if err != nil {
		return fmt.Errorf("failed to flag entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(resp.Data, &entry); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(entry, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Flagged entry %s as outdated\n", entry.ID)
	}

	return nil
}
