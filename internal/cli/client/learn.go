package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// CreateEntryRequest represents the create entry API request.
type CreateEntryRequest struct {
	Content   string            `json:"content"`
	Author    string            `json:"author"`
	SourceURL string            `json:"source_url,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	Format    string            `json:"format,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// LearnCmd creates the learn command.
func LearnCmd() *cobra.Command {
	var (
		file      string
		sourceURL string
		tags      []string
		format    string
	)

	cmd := &cobra.Command{
		Use:   "learn [content]",
		Short: "Store knowledge",
		Long: `Store a piece of knowledge from an argument, stdin, or a file.

Long inputs are split into chunks before storage. A chunk that contradicts
or duplicates existing knowledge is suspended and must be resolved with
'klug resolve'.

Examples:
  # Store from an argument
  klug learn "The deploy pipeline runs on Jenkins" --tag deploy

  # Store from stdin
  cat notes.txt | klug learn

  # Store a markdown file with section-aware chunking
  klug learn --file runbook.md --format markdown`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			content := ""
			if len(args) == 1 {
				content = args[0]
			}
			return runLearn(cmd, content, file, sourceURL, tags, format, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read content from file")
	cmd.Flags().StringVar(&sourceURL, "source-url", "", "Source URL provenance")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag (repeatable, up to 3)")
	cmd.Flags().StringVar(&format, "format", "", "Content format: text, markdown, or tabular (default: text)")
	cmd.Flags().String("author", "", "Author attribution (overrides env and config)")

	return cmd
}

func runLearn(cmd *cobra.Command, content, file, sourceURL string, tags []string, format string, outputJSON bool) error {
	author, err := ResolveAuthor(cmd)
	if err != nil {
		return err
	}

	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	if content == "" {
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
		content = string(input)
	}

	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("no content provided")
	}

	req := CreateEntryRequest{
		Content:   content,
		Author:    author,
		SourceURL: sourceURL,
		Tags:      tags,
		Format:    format,
	}

	resp, err := api.Post("/entries", req)
	if err != nil {
		return fmt.Errorf("failed to store knowledge: %w", err)
	}

	var result IngestResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	printIngestResult(&result)
	return nil
}
