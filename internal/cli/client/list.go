package client

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// ListResponse represents the list API response.
type ListResponse struct {
	Items   []Entry `json:"items"`
	Cursor  string  `json:"cursor,omitempty"`
	HasMore bool    `json:"has_more"`
}

// ListCmd creates the list command.
func ListCmd() *cobra.Command {
	var (
		limit   int
		cursor  string
		filters filterFlags
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored entries",
		Long: `Lists stored knowledge entries newest first, with optional filtering.

Examples:
  # List the most recent entries
  klug list

  # List one author's entries tagged deploy
  klug list --by alice --tag deploy

  # List entries from a date range
  klug list --from 2026-08-01 --to 2026-08-29`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runEntryList(&filters, limit, cursor, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")
	filters.register(cmd)

	return cmd
}

func runEntryList(filters *filterFlags, limit int, cursor string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	q := filters.toQuery()
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	path := "/entries"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	var listResp ListResponse
	if err := json.Unmarshal(resp.Data, &listResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(listResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(listResp.Items) == 0 {
		fmt.Println("No entries found.")
		return nil
	}

	fmt.Printf("Found %d entries:\n\n", len(listResp.Items))
	for i, entry := range listResp.Items {
		content := entry.Content
		if len(content) > 100 {
			content = content[:97] + "..."
		}
		fmt.Printf("%d. %s\n", i+1, content)
		fmt.Printf("   by %s (%s)\n", entry.Author, entry.Source)
		if len(entry.Tags) > 0 {
			fmt.Printf("   Tags: %s\n", strings.Join(entry.Tags, ", "))
		}
		if entry.SourceURL != "" {
			fmt.Printf("   URL: %s\n", entry.SourceURL)
		}
		fmt.Printf("   Updated: %s\n", entry.UpdatedAt)
		fmt.Printf("   ID: %s\n", entry.ID)
		if i < len(listResp.Items)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}

	if listResp.HasMore && listResp.Cursor != "" {
		fmt.Printf("\n%s\n", strings.Repeat("-", 40))
		fmt.Printf("More results available. Use --cursor %s\n", listResp.Cursor)
	}

	return nil
}
