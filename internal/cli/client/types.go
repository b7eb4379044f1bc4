package client

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// Entry mirrors the server's entry representation.
type Entry struct {
	ID             string            `json:"id"`
	Content        string            `json:"content"`
	Author         string            `json:"author"`
	Source         string            `json:"source"`
	SourceURL      string            `json:"source_url,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	EmbeddingModel string            `json:"embedding_model,omitempty"`
	CreatedAt      string            `json:"created_at"`
	UpdatedAt      string            `json:"updated_at"`
}

// Conflict describes a suspended chunk awaiting resolution.
type Conflict struct {
	ResolutionID  string   `json:"resolution_id"`
	Kind          string   `json:"kind"`
	CandidateText string   `json:"candidate_text"`
	ExistingIDs   []string `json:"existing_ids"`
	BestScore     float32  `json:"best_score"`
	Options       []string `json:"options"`
	State         string   `json:"state"`
}

// IngestItem is the per-chunk outcome of an ingestion.
type IngestItem struct {
	Status   string    `json:"status"`
	Entry    *Entry    `json:"entry,omitempty"`
	Conflict *Conflict `json:"conflict,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

// IngestResult summarizes an ingestion.
type IngestResult struct {
	Items     []IngestItem `json:"items"`
	Created   int          `json:"created"`
	Conflicts int          `json:"conflicts"`
	Failed    int          `json:"failed"`
}

// filterFlags holds the shared retrieval filter flags.
type filterFlags struct {
	author    string
	source    string
	sourceURL string
	tags      []string
	date      string
	dateFrom  string
	dateTo    string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.author, "by", "", "Filter by author")
	cmd.Flags().StringVar(&f.source, "source", "", "Filter by source (interactive, bulk-import)")
	cmd.Flags().StringVar(&f.sourceURL, "source-url", "", "Filter by source URL")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "Filter by tag (repeatable, all must match)")
	cmd.Flags().StringVar(&f.date, "date", "", "Filter by calendar day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.dateFrom, "from", "", "Filter by start date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&f.dateTo, "to", "", "Filter by end date (YYYY-MM-DD or RFC3339)")
}

func (f *filterFlags) isEmpty() bool {
	return f.author == "" && f.source == "" && f.sourceURL == "" &&
		len(f.tags) == 0 && f.date == "" && f.dateFrom == "" && f.dateTo == ""
}

// toRequest builds the JSON filter object used by query, forget and resolve bodies.
func (f *filterFlags) toRequest() map[string]interface{} {
	filter := map[string]interface{}{}
	if f.author != "" {
		filter["author"] = f.author
	}
	if f.source != "" {
		filter["source"] = f.source
	}
	if f.sourceURL != "" {
		filter["source_url"] = f.sourceURL
	}
	if len(f.tags) > 0 {
		filter["tags"] = f.tags
	}
	if f.date != "" {
		filter["date"] = f.date
	}
	if f.dateFrom != "" {
		filter["date_from"] = f.dateFrom
	}
	if f.dateTo != "" {
		filter["date_to"] = f.dateTo
	}
	return filter
}

// toQuery builds the URL query string used by list.
func (f *filterFlags) toQuery() url.Values {
	q := url.Values{}
	if f.author != "" {
		q.Set("author", f.author)
	}
	if f.source != "" {
		q.Set("source", f.source)
	}
	if f.sourceURL != "" {
		q.Set("source_url", f.sourceURL)
	}
	for _, tag := range f.tags {
		q.Add("tag", tag)
	}
	if f.date != "" {
		q.Set("date", f.date)
	}
	if f.dateFrom != "" {
		q.Set("date_from", f.dateFrom)
	}
	if f.dateTo != "" {
		q.Set("date_to", f.dateTo)
	}
	return q
}

func (f *filterFlags) describe() string {
	var parts []string
	if f.author != "" {
		parts = append(parts, "author="+f.author)
	}
	if f.source != "" {
		parts = append(parts, "source="+f.source)
	}
	if f.sourceURL != "" {
		parts = append(parts, "source_url="+f.sourceURL)
	}
	if len(f.tags) > 0 {
		parts = append(parts, "tags="+strings.Join(f.tags, ","))
	}
	if f.date != "" {
		parts = append(parts, "date="+f.date)
	}
	if f.dateFrom != "" {
		parts = append(parts, "from="+f.dateFrom)
	}
	if f.dateTo != "" {
		parts = append(parts, "to="+f.dateTo)
	}
	return strings.Join(parts, " ")
}

func printIngestResult(result *IngestResult) {
	for _, item := range result.Items {
		switch item.Status {
		case "created":
			fmt.Printf("Stored: %s\n", item.Entry.ID)
			if len(item.Entry.Tags) > 0 {
				fmt.Printf("  Tags: %s\n", strings.Join(item.Entry.Tags, ", "))
			}
		case "conflict":
			fmt.Printf("Conflict (%s): this clashes with existing knowledge (score %.2f)\n",
				item.Conflict.Kind, item.Conflict.BestScore)
			fmt.Printf("  Existing entries: %s\n", strings.Join(item.Conflict.ExistingIDs, ", "))
			fmt.Printf("  Resolve with: klug resolve %s <%s>\n",
				item.Conflict.ResolutionID, strings.Join(item.Conflict.Options, "|"))
		case "failed":
			fmt.Printf("Failed: %s\n", item.Reason)
		}
	}
	if len(result.Items) > 1 {
		fmt.Printf("\n%d stored, %d conflicts, %d failed\n",
			result.Created, result.Conflicts, result.Failed)
	}
}
