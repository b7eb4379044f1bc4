package engine

import (
	"context"
	"time"

	"github.com/klugworks/klugstore/internal/chunker"
	"github.com/klugworks/klugstore/internal/domain"
	"github.com/klugworks/klugstore/internal/telemetry"
)

// ResolveInput applies a contributor's decision to a suspended chunk.
// RevisedContent is consulted only for manual-edit.
type ResolveInput struct {
	ResolutionID   string
	Action         domain.ResolutionAction
	RevisedContent string
}

// ResolveResult reports the chunk's final state. Entry is set when the
// decision mutated or created an entry; Ingest is set for manual-edit,
// whose revised text re-enters the full ingestion pipeline and may itself
// conflict again. DroppedTags lists tags a merge could not keep within
// the per-entry limit, so the union is never truncated silently.
type ResolveResult struct {
	State       domain.ChunkState
	Entry       *domain.Entry
	Ingest      *IngestResult
	DroppedTags []string
}

// Resolve consumes a pending resolution. Each resolution id resolves at
// most once: the pending state is taken atomically, so a second resolve
// of the same id reports not found. Mutations run under the per-entry
// lock of the entry they touch.
func (e *Engine) Resolve(ctx context.Context, input ResolveInput) (*ResolveResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "Engine.Resolve", telemetry.SpanAttributes{
		ResolutionID: input.ResolutionID,
		Operation:    "resolve",
	})
	defer span.End()

	pending := e.resolutions.take(input.ResolutionID)
	if pending == nil {
		return nil, domain.ErrResolutionNotFound
	}

	switch input.Action {
	case domain.ActionCancel:
		return &ResolveResult{State: domain.ChunkStateDiscarded}, nil

	case domain.ActionReplace:
		// Replace swaps in exactly the suspended candidate, so the vector
		// computed at ingest is still valid and no second embedding call is
		// needed.
		entry, err := e.applyToExisting(ctx, pending, pending.Embedding, func(existing *domain.Entry) {
			existing.Content = pending.Candidate
		})
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		return &ResolveResult{State: domain.ChunkStateSuperseded, Entry: entry}, nil

	case domain.ActionMerge:
		var dropped []string
		entry, err := e.applyToExisting(ctx, pending, nil, func(existing *domain.Entry) {
			existing.Content = existing.Content + "\n\n" + pending.Candidate
			existing.Tags, dropped = mergeTags(existing.Tags, pending.Tags)
		})
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		return &ResolveResult{State: domain.ChunkStateSuperseded, Entry: entry, DroppedTags: dropped}, nil

	case domain.ActionManualEdit:
		revised := input.RevisedContent
		if revised == "" {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation,
				"manual-edit requires revised content", domain.ErrInvalidResolution)
		}
		// The revised text re-enters ingestion from the top, so it gets a
		// fresh conflict scan and may suspend again under a new id.
		ingest, err := e.Ingest(ctx, IngestInput{
			Content:   revised,
			Author:    pending.Author,
			Source:    pending.Source,
			SourceURL: pending.SourceURL,
			Tags:      pending.Tags,
			Format:    chunker.FormatText,
			Metadata:  pending.Metadata,
		})
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		state := domain.ChunkStateStored
		if ingest.Conflicts > 0 {
			state = domain.ChunkStateAwaitingResolution
		} else if ingest.Created == 0 {
			state = domain.ChunkStateDiscarded
		}
		return &ResolveResult{State: state, Ingest: ingest}, nil

	default:
		return nil, domain.ErrInvalidResolution
	}
}

// PendingResolutions reports how many chunks currently await a decision.
func (e *Engine) PendingResolutions() int {
	return e.resolutions.len()
}

// applyToExisting mutates the first conflicting entry under its lock,
// then re-indexes it. A nil embedding means the mutation produced new
// text and must be re-embedded; otherwise the caller vouches that the
// cached vector matches the post-mutation content. The record update
// lands before the vector write; a failure in between leaves a stale
// vector that the next successful upsert overwrites.
func (e *Engine) applyToExisting(ctx context.Context, pending *pendingResolution, embedding []float32, mutate func(*domain.Entry)) (*domain.Entry, error) {
	targetID := pending.Descriptor.ExistingIDs[0]

	e.locks.lock(targetID)
	defer e.locks.unlock(targetID)

	existing, err := e.records.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}

	mutate(existing)
	existing.UpdatedAt = time.Now().UTC()
	existing.EmbeddingModel = e.embedder.ModelVersion()

	if embedding == nil {
		embedding, err = e.embedder.Embed(ctx, existing.Content)
		if err != nil {
			return nil, err
		}
	}

	if err := e.records.Update(ctx, existing); err != nil {
		return nil, err
	}
	if err := e.vectors.Upsert(ctx, existing.ID, embedding, existing.EmbeddingModel); err != nil {
		telemetry.CaptureError(ctx, err)
		return nil, err
	}
	return existing, nil
}

// mergeTags unions tag sets in order, capped at the entry limit. Tags
// that do not fit are returned separately so the caller can surface the
// loss instead of swallowing it.
func mergeTags(existing, incoming []string) (merged, dropped []string) {
	merged = domain.NormalizeTags(append(append([]string{}, existing...), incoming...))
	if len(merged) > domain.MaxTags {
		dropped = merged[domain.MaxTags:]
		merged = merged[:domain.MaxTags]
	}
	return merged, dropped
}
