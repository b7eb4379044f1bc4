package engine

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/klugworks/klugstore/internal/chunker"
	"github.com/klugworks/klugstore/internal/domain"
	"github.com/klugworks/klugstore/internal/resolver"
	"github.com/klugworks/klugstore/internal/telemetry"
)

// IngestInput represents one piece of knowledge submitted for storage.
type IngestInput struct {
	Content   string
	Author    string
	Source    domain.Source
	SourceURL string
	Tags      []string
	Format    chunker.Format
	Metadata  map[string]string
}

// ItemStatus is the per-chunk outcome of an ingest.
type ItemStatus string

const (
	ItemCreated  ItemStatus = "created"
	ItemConflict ItemStatus = "conflict"
	ItemFailed   ItemStatus = "failed"
)

// IngestItem is the outcome for a single chunk. Exactly one of Entry and
// Conflict is set for created and conflict outcomes; a failed item may
// still carry an Entry when the record write landed but indexing did not.
type IngestItem struct {
	Status   ItemStatus
	Entry    *domain.Entry
	Conflict *domain.ConflictDescriptor
	Reason   string
}

// IngestResult reports per-chunk outcomes plus aggregate counts.
type IngestResult struct {
	Items     []IngestItem
	Created   int
	Conflicts int
	Failed    int
}

// Ingest normalizes, chunks, embeds, and stores one submission. Chunks
// succeed or fail independently: an embedding failure on chunk three does
// not roll back chunks one and two. A chunk whose embedding lands near an
// existing entry is suspended for resolution instead of stored.
func (e *Engine) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "Engine.Ingest", telemetry.SpanAttributes{
		Author:    input.Author,
		Operation: "ingest",
	})
	defer span.End()

	input.Tags = domain.NormalizeTags(input.Tags)
	if err := validateIngestInput(input); err != nil {
		return nil, err
	}

	result := &IngestResult{}
	for chunk := range e.chunks.Split(input.Content, input.Format) {
		item := e.ingestChunk(ctx, input, chunk)
		result.Items = append(result.Items, item)
		switch item.Status {
		case ItemCreated:
			result.Created++
		case ItemConflict:
			result.Conflicts++
		case ItemFailed:
			result.Failed++
		}
	}
	return result, nil
}

func validateIngestInput(input IngestInput) error {
	if strings.TrimSpace(input.Content) == "" {
		return domain.ErrEmptyContent
	}
	if input.Author == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "author is required")
	}
	return domain.ValidateTags(input.Tags)
}

// ingestChunk runs the write pipeline for one chunk: embed, conflict
// scan, record write, vector write. The record write happens before the
// vector write so a crash in between leaves a record orphan (recoverable
// by reconciliation) rather than a vector pointing at nothing.
func (e *Engine) ingestChunk(ctx context.Context, input IngestInput, chunk string) IngestItem {
	embedding, err := e.embedder.Embed(ctx, chunk)
	if err != nil {
		telemetry.CaptureError(ctx, err)
		return IngestItem{Status: ItemFailed, Reason: err.Error()}
	}

	if desc := e.scanForConflict(ctx, input, chunk, embedding); desc != nil {
		return IngestItem{Status: ItemConflict, Conflict: desc}
	}

	now := time.Now().UTC()
	entry := &domain.Entry{
		ID:                 e.uuidGen.NewString(),
		Content:            chunk,
		Author:             input.Author,
		Source:             input.Source,
		SourceURL:          input.SourceURL,
		Tags:               input.Tags,
		AdditionalMetadata: input.Metadata,
		EmbeddingModel:     e.embedder.ModelVersion(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := e.records.Put(ctx, entry); err != nil {
		telemetry.CaptureError(ctx, err)
		return IngestItem{Status: ItemFailed, Reason: "record store write failed: " + err.Error()}
	}

	if err := e.vectors.Upsert(ctx, entry.ID, embedding, entry.EmbeddingModel); err != nil {
		// The record landed, the vector did not. The entry exists but is
		// not queryable until reconciliation re-indexes it.
		telemetry.CaptureError(ctx, err)
		log.Printf("engine: entry %s stored without vector, awaiting reconciliation: %v", entry.ID, err)
		return IngestItem{
			Status: ItemFailed,
			Entry:  entry,
			Reason: "entry stored but not indexed; reconciliation will complete it",
		}
	}

	return IngestItem{Status: ItemCreated, Entry: entry}
}

// scanForConflict checks the chunk against its nearest stored neighbors.
// A non-nil descriptor means the chunk is suspended: nothing was written,
// and the pending write waits in the resolution registry.
func (e *Engine) scanForConflict(ctx context.Context, input IngestInput, chunk string, embedding []float32) *domain.ConflictDescriptor {
	matches, err := e.vectors.Search(ctx, embedding, e.embedder.ModelVersion(), e.opts.ConflictTopN)
	if err != nil {
		// Degraded scan: storing without a conflict check beats losing the
		// submission. Worst case is a duplicate a later query surfaces.
		telemetry.CaptureError(ctx, err)
		log.Printf("engine: conflict scan unavailable, storing without check: %v", err)
		return nil
	}

	neighbors := e.hydrateNeighbors(ctx, matches)
	desc := e.classifier.Classify(chunk, neighbors, time.Now())
	if desc == nil {
		return nil
	}

	e.resolutions.put(&pendingResolution{
		Descriptor: *desc,
		Candidate:  chunk,
		Embedding:  embedding,
		Author:     input.Author,
		Source:     input.Source,
		SourceURL:  input.SourceURL,
		Tags:       input.Tags,
		Metadata:   input.Metadata,
	})
	return desc
}

// hydrateNeighbors joins vector matches back to record content. A match
// whose record is missing is a vector orphan: it is reported and dropped,
// never classified against.
func (e *Engine) hydrateNeighbors(ctx context.Context, matches []Match) []resolver.Neighbor {
	if len(matches) == 0 {
		return nil
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Score >= e.classifier.Threshold() {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	entries, err := e.records.GetMany(ctx, ids)
	if err != nil {
		telemetry.CaptureError(ctx, err)
		return nil
	}

	neighbors := make([]resolver.Neighbor, 0, len(ids))
	for _, m := range matches {
		entry, ok := entries[m.ID]
		if !ok {
			if m.Score >= e.classifier.Threshold() {
				e.reportVectorOrphan(ctx, m.ID)
			}
			continue
		}
		neighbors = append(neighbors, resolver.Neighbor{
			ID:      entry.ID,
			Content: entry.Content,
			Score:   m.Score,
		})
	}
	return neighbors
}

func (e *Engine) reportVectorOrphan(ctx context.Context, id string) {
	err := errors.Join(domain.ErrVectorOrphan, errors.New("entry id "+id))
	telemetry.CaptureError(ctx, err)
	log.Printf("engine: vector orphan detected for entry %s", id)
}
