package engine

import (
	"context"

	"github.com/klugworks/klugstore/internal/chunker"
	"github.com/klugworks/klugstore/internal/domain"
	"github.com/klugworks/klugstore/internal/telemetry"
)

// ImportItem is one document in a bulk import.
type ImportItem struct {
	Content   string
	SourceURL string
	Tags      []string
	Metadata  map[string]string
}

// ImportInput is a privileged batch submission. Every item is stored
// under the bulk-import source and the given author.
type ImportInput struct {
	Author string
	Items  []ImportItem
	Format string
}

// ImportResult aggregates per-item ingest outcomes. Rejected counts
// items whose input failed validation before any write.
type ImportResult struct {
	Items     []IngestResult
	Created   int
	Conflicts int
	Failed    int
	Rejected  int
}

// BulkImport ingests each item independently: a bad document is counted
// and skipped, it does not abort the batch. Conflicting chunks suspend
// exactly as they do for interactive ingestion.
func (e *Engine) BulkImport(ctx context.Context, input ImportInput, privileged bool) (*ImportResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "Engine.BulkImport", telemetry.SpanAttributes{
		Author:    input.Author,
		Operation: "import",
	})
	defer span.End()

	if !privileged {
		return nil, domain.ErrCapabilityRequired
	}
	if len(input.Items) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "import batch is empty")
	}

	result := &ImportResult{}
	for _, item := range input.Items {
		ingest, err := e.Ingest(ctx, IngestInput{
			Content:   item.Content,
			Author:    input.Author,
			Source:    domain.SourceBulkImport,
			SourceURL: item.SourceURL,
			Tags:      item.Tags,
			Format:    chunker.ParseFormat(input.Format),
			Metadata:  item.Metadata,
		})
		if err != nil {
			result.Rejected++
			continue
		}
		result.Items = append(result.Items, *ingest)
		result.Created += ingest.Created
		result.Conflicts += ingest.Conflicts
		result.Failed += ingest.Failed
	}
	return result, nil
}
