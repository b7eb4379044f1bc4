package engine

import (
	"context"
	"time"

	"github.com/klugworks/klugstore/internal/domain"
	"github.com/klugworks/klugstore/internal/telemetry"
)

// MarkOutdated flags an entry for review without touching its content.
// Metadata-only: the stored text is unchanged, so the vector still
// matches it and is left alone. Flagged entries stay queryable until
// someone deletes or rewrites them.
func (e *Engine) MarkOutdated(ctx context.Context, id string) (*domain.Entry, error) {
	ctx, span := telemetry.StartSpan(ctx, "Engine.MarkOutdated", telemetry.SpanAttributes{
		EntryID:   id,
		Operation: "mark-outdated",
	})
	defer span.End()

	if id == "" {
		return nil, domain.ErrEntryNotFound
	}

	e.locks.lock(id)
	defer e.locks.unlock(id)

	entry, err := e.records.Get(ctx, id)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	entry.MarkOutdated(time.Now())
	if err := e.records.Update(ctx, entry); err != nil {
		span.SetError(err)
		return nil, err
	}
	return entry, nil
}
