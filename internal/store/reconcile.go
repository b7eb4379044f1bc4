package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/klugworks/klugstore/internal/domain"
)

// ReconcileRepository scans for one-sided entries across the record store
// and the vector index. A record without a vector is the defined
// recoverable state after a partial ingest; a vector without a record
// violates the consistency contract and gets pruned.
type ReconcileRepository struct {
	pool *pgxpool.Pool
}

func NewReconcileRepository(pool *pgxpool.Pool) *ReconcileRepository {
	return &ReconcileRepository{pool: pool}
}

// RecordOrphans returns entries with no vector under the current model
// version, oldest first. Quarantined entries are skipped; they failed
// re-embedding too many times and wait for manual review.
func (r *ReconcileRepository) RecordOrphans(ctx context.Context, modelVersion string, limit int) ([]*domain.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+entryColumns+`
		 FROM knowledge_entries e
		 WHERE NOT EXISTS (
		     SELECT 1 FROM entry_vectors v
		     WHERE v.entry_id = e.id AND v.model_version = $1
		 )
		 AND COALESCE(e.additional_metadata->>$2, '') <> 'true'
		 ORDER BY e.created_at ASC
		 LIMIT $3`,
		modelVersion, domain.MetaKeyQuarantined, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntryRows(rows)
}

// VectorOrphans returns vector ids whose record is gone.
func (r *ReconcileRepository) VectorOrphans(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT v.entry_id
		 FROM entry_vectors v
		 WHERE NOT EXISTS (
		     SELECT 1 FROM knowledge_entries e WHERE e.id = v.entry_id
		 )
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
