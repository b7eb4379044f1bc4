// Package store is the Record Store: structured persistence for knowledge
// entries and their provenance metadata. It is the source of truth for
// deletion, filtering, and auditing; semantic ranking lives in the vector
// index.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/klugworks/klugstore/internal/domain"
)

// dbtx is the slice of pgx shared by pools and transactions.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// EntryRepository persists knowledge entries in Postgres.
type EntryRepository struct {
	db dbtx
}

func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return &EntryRepository{db: pool}
}

func NewEntryRepositoryWithTx(tx pgx.Tx) *EntryRepository {
	return &EntryRepository{db: tx}
}

const entryColumns = `id, content, author, source, source_url, tags, additional_metadata, embedding_model, created_at, updated_at`

// Put inserts a new entry row.
func (r *EntryRepository) Put(ctx context.Context, e *domain.Entry) error {
	meta, err := marshalMetadata(e.AdditionalMetadata)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO knowledge_entries (`+entryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.Content, e.Author, e.Source, nullableString(e.SourceURL),
		tagsOrEmpty(e.Tags), meta, nullableString(e.EmbeddingModel), e.CreatedAt, e.UpdatedAt,
	)
	return err
}

// Get retrieves one entry by id.
func (r *EntryRepository) Get(ctx context.Context, id string) (*domain.Entry, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM knowledge_entries WHERE id = $1`, id)

	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

// GetMany retrieves entries for a set of ids; missing ids are simply
// absent from the result, the caller decides whether that is a fault.
func (r *EntryRepository) GetMany(ctx context.Context, ids []string) (map[string]*domain.Entry, error) {
	if len(ids) == 0 {
		return map[string]*domain.Entry{}, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+entryColumns+` FROM knowledge_entries WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]*domain.Entry, len(ids))
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out[e.ID] = e
	}
	return out, rows.Err()
}

// Update rewrites a mutable entry row (content, tags, metadata, model
// stamp, updated_at). id, author, source, and created_at are immutable.
func (r *EntryRepository) Update(ctx context.Context, e *domain.Entry) error {
	meta, err := marshalMetadata(e.AdditionalMetadata)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE knowledge_entries
		 SET content = $2, tags = $3, additional_metadata = $4, embedding_model = $5, updated_at = $6
		 WHERE id = $1`,
		e.ID, e.Content, tagsOrEmpty(e.Tags), meta, nullableString(e.EmbeddingModel), e.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

// Find returns entries matching the conjunction filter, newest first.
func (r *EntryRepository) Find(ctx context.Context, filter domain.Filter) ([]*domain.Entry, error) {
	where, args := filterClauses(filter)

	query := `SELECT ` + entryColumns + ` FROM knowledge_entries`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntryRows(rows)
}

// Delete removes entries by id and reports how many rows went away.
func (r *EntryRepository) Delete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM knowledge_entries WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func filterClauses(filter domain.Filter) ([]string, []any) {
	var where []string
	var args []any

	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if filter.Source != "" {
		add(`source = $%d`, string(filter.Source))
	}
	if filter.SourceURL != "" {
		add(`source_url = $%d`, filter.SourceURL)
	}
	if filter.Author != "" {
		add(`author = $%d`, filter.Author)
	}
	if len(filter.Tags) > 0 {
		add(`tags @> $%d`, filter.Tags)
	}
	if !filter.DateFrom.IsZero() {
		add(`created_at >= $%d`, filter.DateFrom)
	}
	if !filter.DateTo.IsZero() {
		add(`created_at < $%d`, filter.DateTo)
	}
	return where, args
}

func scanEntry(row pgx.Row) (*domain.Entry, error) {
	var e domain.Entry
	var sourceURL, model *string
	var meta []byte
	err := row.Scan(&e.ID, &e.Content, &e.Author, &e.Source, &sourceURL,
		&e.Tags, &meta, &model, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if sourceURL != nil {
		e.SourceURL = *sourceURL
	}
	if model != nil {
		e.EmbeddingModel = *model
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &e.AdditionalMetadata); err != nil {
			return nil, fmt.Errorf("failed to decode additional_metadata for %s: %w", e.ID, err)
		}
	}
	return &e, nil
}

func scanEntryRows(rows pgx.Rows) ([]*domain.Entry, error) {
	var entries []*domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func marshalMetadata(meta map[string]string) ([]byte, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode additional_metadata: %w", err)
	}
	return data, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
