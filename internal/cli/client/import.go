package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// ImportItemRequest represents one item of a bulk import.
type ImportItemRequest struct {
	Content   string            `json:"content"`
	SourceURL string            `json:"source_url,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ImportRequest represents the bulk import API request.
type ImportRequest struct {
	Author string              `json:"author"`
	Format string              `json:"format,omitempty"`
	Items  []ImportItemRequest `json:"items"`
}

// ImportResponse represents the bulk import API response.
type ImportResponse struct {
	Created   int `json:"created"`
	Conflicts int `json:"conflicts"`
	Failed    int `json:"failed"`
	Rejected  int `json:"rejected"`
}

// ImportCmd creates the import command.
func ImportCmd() *cobra.Command {
	var (
		file   string
		format string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk import entries from JSON",
		Long: `Imports a batch of entries from a JSON array (stdin or file).
Requires an admin token. Items are independent; a bad item is rejected
without aborting the batch.

Input format:
  [{"content":"...","source_url":"...","tags":["..."]}, ...]

Examples:
  # Import from a file
  klug import --file export.json

  # Import markdown documents from stdin
  cat docs.json | klug import --format markdown`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runImport(cmd, file, format, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Input file with JSON array of items")
	cmd.Flags().StringVar(&format, "format", "", "Content format for all items: text, markdown, or tabular")
	cmd.Flags().String("author", "", "Author attribution (overrides env and config)")

	return cmd
}

func runImport(cmd *cobra.Command, file, format string, outputJSON bool) error {
	author, err := ResolveAuthor(cmd)
	if err != nil {
		return err
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	var input []byte
	if file != "" {
		input, err = os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
	} else {
		input, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
	}

	if len(input) == 0 {
		return fmt.Errorf("no input provided")
	}

	var items []ImportItemRequest
	if err := json.Unmarshal(input, &items); err != nil {
		return fmt.Errorf("failed to parse JSON array: %w", err)
	}

	if len(items) == 0 {
		return fmt.Errorf("empty batch: no items provided")
	}

	req := ImportRequest{
		Author: author,
		Format: format,
		Items:  items,
	}

	resp, err := api.Post("/entries/import", req)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	var importResp ImportResponse
	if err := json.Unmarshal(resp.Data, &importResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(importResp, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Import complete: %d created, %d conflicts, %d failed, %d rejected\n",
			importResp.Created, importResp.Conflicts, importResp.Failed, importResp.Rejected)
		if importResp.Conflicts > 0 {
			fmt.Println("Conflicting chunks are suspended; resolve them with 'klug resolve'.")
		}
	}

	return nil
}
