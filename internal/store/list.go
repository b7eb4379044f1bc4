package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/klugworks/klugstore/internal/domain"
	"github.com/klugworks/klugstore/internal/engine"
	"github.com/klugworks/klugstore/internal/pagination"
)

// ListWithCursor pages through entries matching the filter, newest first.
// Keyset pagination over (created_at, id) keeps pages stable while new
// entries arrive.
func (r *EntryRepository) ListWithCursor(ctx context.Context, filter domain.Filter, cursor *pagination.Cursor, limit int) (*engine.ListPage, error) {
	if limit <= 0 {
		limit = 20
	}

	where, args := filterClauses(filter)
	if cursor != nil {
		args = append(args, cursor.Timestamp, cursor.LastID)
		where = append(where, fmt.Sprintf(`(created_at, id) < ($%d, $%d)`, len(args)-1, len(args)))
	}

	query := `SELECT ` + entryColumns + ` FROM knowledge_entries`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit+1)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanEntryRows(rows)
	if err != nil {
		return nil, err
	}

	page := &engine.ListPage{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		page.HasMore = true
		last := page.Items[limit-1]
		page.NextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}
	return page, nil
}
