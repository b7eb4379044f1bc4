package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/klugworks/klugstore/internal/domain"
	"github.com/klugworks/klugstore/internal/pagination"
	"github.com/klugworks/klugstore/internal/telemetry"
)

// QueryInput is one natural-language retrieval request. Filter narrows
// results after ranking; TopK of zero means the engine default.
type QueryInput struct {
	Question string
	TopK     int
	Filter   domain.Filter
}

// QueryMatch pairs a surviving entry with its similarity score.
type QueryMatch struct {
	Entry *domain.Entry
	Score float32
}

// QueryOutput distinguishes "nothing relevant" (NoMatch true) from an
// error: an empty store answers honestly, it does not fail.
type QueryOutput struct {
	Matches []QueryMatch
	NoMatch bool
}

// Query embeds the question, ranks against the vector index, hydrates
// entries from the record store, and applies the filter. Results are
// ordered by score descending; ties break by recency (updated_at
// descending), then id ascending, so equal-score runs are deterministic.
// A vector hit with no backing record is reported as a consistency fault
// and excluded, never surfaced to the caller.
func (e *Engine) Query(ctx context.Context, input QueryInput) (*QueryOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "Engine.Query", telemetry.SpanAttributes{
		Operation: "query",
	})
	defer span.End()

	if strings.TrimSpace(input.Question) == "" {
		return nil, domain.ErrEmptyContent
	}
	filter := input.Filter.Normalize()
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	topK := input.TopK
	if topK <= 0 {
		topK = e.opts.DefaultTopK
	}

	embedding, err := e.embedder.Embed(ctx, input.Question)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	// Over-fetch when a filter is present: post-filtering discards
	// candidates, and topK survivors may live past position topK.
	fetch := topK
	if !filter.IsEmpty() {
		fetch = topK * 4
	}

	hits, err := e.vectors.Search(ctx, embedding, e.embedder.ModelVersion(), fetch)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if len(hits) == 0 {
		return &QueryOutput{NoMatch: true}, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	entries, err := e.records.GetMany(ctx, ids)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	matches := make([]QueryMatch, 0, len(hits))
	for _, h := range hits {
		entry, ok := entries[h.ID]
		if !ok {
			e.reportVectorOrphan(ctx, h.ID)
			continue
		}
		if !filter.Matches(entry) {
			continue
		}
		matches = append(matches, QueryMatch{Entry: entry, Score: h.Score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if !matches[i].Entry.UpdatedAt.Equal(matches[j].Entry.UpdatedAt) {
			return matches[i].Entry.UpdatedAt.After(matches[j].Entry.UpdatedAt)
		}
		return matches[i].Entry.ID < matches[j].Entry.ID
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	if len(matches) == 0 {
		return &QueryOutput{NoMatch: true}, nil
	}
	return &QueryOutput{Matches: matches}, nil
}

// ListInput pages through stored entries without ranking.
type ListInput struct {
	Filter domain.Filter
	Cursor string
	Limit  int
}

// List browses entries newest first. Unlike Query it reads only the
// record store, so record orphans awaiting reconciliation do appear here.
func (e *Engine) List(ctx context.Context, input ListInput) (*ListPage, error) {
	ctx, span := telemetry.StartSpan(ctx, "Engine.List", telemetry.SpanAttributes{
		Operation: "list",
	})
	defer span.End()

	filter := input.Filter.Normalize()
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "bad cursor", err)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	return e.records.ListWithCursor(ctx, filter, cursor, limit)
}
