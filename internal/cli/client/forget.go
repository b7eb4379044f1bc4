package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// ForgetResponse represents the delete API response.
type ForgetResponse struct {
	Deleted int64 `json:"deleted"`
}

// ForgetCmd creates the forget command.
func ForgetCmd() *cobra.Command {
	var (
		yes     bool
		filters filterFlags
	)

	cmd := &cobra.Command{
		Use:   "forget",
		Short: "Delete entries matching a filter",
		Long: `Deletes all entries matching the given filter from both stores.
Requires an admin token. At least one filter flag is required; forgetting
everything is not supported.

Examples:
  # Forget everything a departed teammate stored
  klug forget --by mallory

  # Forget entries from a retired wiki page
  klug forget --source-url https://wiki.internal/old-runbook

  # Forget one day's bulk import without confirmation
  klug forget --source bulk-import --date 2026-08-01 --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runForget(cmd, &filters, yes, outputJSON)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")
	filters.register(cmd)

	return cmd
}

func runForget(cmd *cobra.Command, filters *filterFlags, yes, outputJSON bool) error {
	if filters.isEmpty() {
		return fmt.Errorf("at least one filter flag is required (--by, --source, --source-url, --tag, --date, --from, --to)")
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	if !yes {
		fmt.Printf("Delete all entries matching: %s? [y/N] ", filters.describe())
		reader := bufio.NewReader(os.Stdin)
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		answer := strings.ToLower(strings.TrimSpace(input))
		if answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	resp, err := api.Delete("/entries", map[string]interface{}{
		"filter": filters.toRequest(),
	})
	if err != nil {
		return fmt.Errorf("failed to delete entries: %w", err)
	}

	var forgetResp ForgetResponse
	if err := json.Unmarshal(resp.Data, &forgetResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(forgetResp, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Deleted %d entries\n", forgetResp.Deleted)
	}

	return nil
}
