// Package vector is the Vector Index: a pgvector-backed similarity index
// mapping embeddings to entry ids. It is the source of truth for semantic
// ranking; entry content and provenance live in the record store, joined
// on the entry id.
package vector

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/klugworks/klugstore/internal/engine"
)

// Index persists entry embeddings in the entry_vectors table.
type Index struct {
	pool *pgxpool.Pool
}

func NewIndex(pool *pgxpool.Pool) *Index {
	return &Index{pool: pool}
}

// Upsert writes the embedding for an entry id under the given model
// version, replacing any previous vector for that id.
func (i *Index) Upsert(ctx context.Context, id string, embedding []float32, modelVersion string) error {
	_, err := i.pool.Exec(ctx,
		`INSERT INTO entry_vectors (entry_id, embedding, model_version, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (entry_id)
		 DO UPDATE SET embedding = EXCLUDED.embedding,
		               model_version = EXCLUDED.model_version,
		               updated_at = now()`,
		id, pgvector.NewVector(embedding), modelVersion,
	)
	return err
}

// Search returns the topK nearest entries by cosine similarity. Vectors
// embedded under a different model version are excluded rather than
// compared against mismatched dimensionality.
func (i *Index) Search(ctx context.Context, embedding []float32, modelVersion string, topK int) ([]engine.Match, error) {
	if topK <= 0 {
		topK = 5
	}

	rows, err := i.pool.Query(ctx,
		`SELECT entry_id, 1 - (embedding <=> $1) AS score
		 FROM entry_vectors
		 WHERE model_version = $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(embedding), modelVersion, topK,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []engine.Match
	for rows.Next() {
		var m engine.Match
		if err := rows.Scan(&m.ID, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Delete removes vectors for the given entry ids.
func (i *Index) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := i.pool.Exec(ctx, `DELETE FROM entry_vectors WHERE entry_id = ANY($1)`, ids)
	return err
}
