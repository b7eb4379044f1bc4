package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ResolveRequest represents the resolution API request.
type ResolveRequest struct {
	Action         string `json:"action"`
	RevisedContent string `json:"revised_content,omitempty"`
}

// ResolveResponse represents the resolution API response.
type ResolveResponse struct {
	State       string        `json:"state"`
	Entry       *Entry        `json:"entry,omitempty"`
	Ingest      *IngestResult `json:"ingest,omitempty"`
	DroppedTags []string      `json:"dropped_tags,omitempty"`
}

// ResolveCmd creates the resolve command.
func ResolveCmd() *cobra.Command {
	var content string

	cmd := &cobra.Command{
		Use:   "resolve <resolution-id> <action>",
		Short: "Resolve a suspended conflict",
		Long: `Resolves a conflict reported by learn or import.

Actions:
  replace      overwrite the existing entry with the new content
  merge        combine the existing and new content into one entry
  cancel       discard the new content, keep the existing entry
  manual-edit  submit revised content (requires --content)

Examples:
  klug resolve 7f3a... replace
  klug resolve 7f3a... manual-edit --content "The wifi password is hunter3 as of August."`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runResolve(args[0], args[1], content, outputJSON)
		},
	}

	cmd.Flags().StringVar(&content, "content", "", "Revised content (manual-edit only)")

	return cmd
}

func runResolve(resolutionID, action, content string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	req := ResolveRequest{
		Action:         action,
		RevisedContent: content,
	}

	resp, err := api.Post("/resolutions/"+resolutionID, req)
	if err != nil {
		return fmt.Errorf("failed to resolve conflict: %w", err)
	}

	var resolveResp ResolveResponse
	if err := json.Unmarshal(resp.Data, &resolveResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(resolveResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	switch resolveResp.State {
	case "discarded":
		fmt.Println("Discarded the new content; existing knowledge is unchanged.")
	case "superseded":
		fmt.Println("Updated the existing entry.")
		if resolveResp.Entry != nil {
			fmt.Printf("ID: %s\n", resolveResp.Entry.ID)
		}
		if len(resolveResp.DroppedTags) > 0 {
			fmt.Printf("Tags over the limit were not kept: %s\n", strings.Join(resolveResp.DroppedTags, ", "))
		}
	default:
		fmt.Printf("Resolution state: %s\n", resolveResp.State)
		if resolveResp.Ingest != nil {
			printIngestResult(resolveResp.Ingest)
		}
	}

	return nil
}
