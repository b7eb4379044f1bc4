package engine

import (
	"context"
	"log"

	"github.com/klugworks/klugstore/internal/domain"
	"github.com/klugworks/klugstore/internal/telemetry"
)

// Delete removes every entry matching the filter from both stores and
// returns the count removed. It is privileged: callers without the admin
// capability are refused before any read. An empty filter is refused
// outright; "delete everything" must never be expressible by accident.
func (e *Engine) Delete(ctx context.Context, filter domain.Filter, privileged bool) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "Engine.Delete", telemetry.SpanAttributes{
		Operation: "delete",
	})
	defer span.End()

	if !privileged {
		return 0, domain.ErrCapabilityRequired
	}

	filter = filter.Normalize()
	if filter.IsEmpty() {
		return 0, domain.ErrUnderspecifiedFilter
	}
	if err := filter.Validate(); err != nil {
		return 0, err
	}

	matched, err := e.records.Find(ctx, filter)
	if err != nil {
		span.SetError(err)
		return 0, err
	}
	if len(matched) == 0 {
		return 0, nil
	}

	ids := make([]string, len(matched))
	for i, entry := range matched {
		ids[i] = entry.ID
	}

	release := e.locks.lockAll(ids)
	defer release()

	// Vectors go first. If the record delete then fails, the leftover
	// records are record orphans and reconciliation re-indexes them; the
	// reverse order could leave vectors pointing at deleted records.
	if err := e.vectors.Delete(ctx, ids); err != nil {
		span.SetError(err)
		return 0, err
	}

	count, err := e.records.Delete(ctx, ids)
	if err != nil {
		span.SetError(err)
		log.Printf("engine: record delete failed after vector delete, %d entries await re-index: %v", len(ids), err)
		return 0, err
	}
	return count, nil
}
