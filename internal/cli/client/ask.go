package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// QueryRequest represents the query API request.
type QueryRequest struct {
	Question string                 `json:"question"`
	TopK     int                    `json:"top_k,omitempty"`
	Filter   map[string]interface{} `json:"filter,omitempty"`
	Answer   bool                   `json:"answer,omitempty"`
}

// QueryMatch represents a single retrieved entry.
type QueryMatch struct {
	Entry Entry   `json:"entry"`
	Score float32 `json:"score"`
}

// QueryResponse represents the query API response.
type QueryResponse struct {
	Matches []QueryMatch `json:"matches"`
	NoMatch bool         `json:"no_match"`
	Answer  string       `json:"answer,omitempty"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var (
		topK    int
		raw     bool
		filters filterFlags
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the knowledge store a question",
		Long: `Retrieves the most relevant knowledge entries for a question and
composes an answer from them.

Examples:
  # Ask with a composed answer
  klug ask "how do we deploy the billing service?"

  # Raw matches only, no answer composition
  klug ask "wifi password" --raw

  # Restrict retrieval to one author's entries from this year
  klug ask "oncall escalation" --by alice --from 2026-01-01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(args[0], topK, raw, &filters, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "n", 0, "Maximum number of matches (default: server default)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Show raw matches without composing an answer")
	filters.register(cmd)

	return cmd
}

func runAsk(question string, topK int, raw bool, filters *filterFlags, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	req := QueryRequest{
		Question: question,
		TopK:     topK,
		Answer:   !raw,
	}
	if !filters.isEmpty() {
		req.Filter = filters.toRequest()
	}

	resp, err := api.Post("/query", req)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	var queryResp QueryResponse
	if err := json.Unmarshal(resp.Data, &queryResp); err != nil {
		return fmt.Errorf("failed to parse query response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(queryResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if queryResp.NoMatch {
		fmt.Println("No stored knowledge matches that question.")
		return nil
	}

	if queryResp.Answer != "" {
		fmt.Println(queryResp.Answer)
		fmt.Println()
	}

	fmt.Printf("Based on %d entries:\n", len(queryResp.Matches))
	for i, match := range queryResp.Matches {
		content := match.Entry.Content
		if len(content) > 100 {
			content = content[:97] + "..."
		}
		fmt.Printf("%d. (%.2f) %s\n", i+1, match.Score, content)
		fmt.Printf("   by %s", match.Entry.Author)
		if len(match.Entry.Tags) > 0 {
			fmt.Printf(" [%s]", strings.Join(match.Entry.Tags, ", "))
		}
		fmt.Printf("  ID: %s\n", match.Entry.ID)
	}

	return nil
}
