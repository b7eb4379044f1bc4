// Package engine orchestrates the knowledge store: ingestion
// (chunk, embed, dual-write), querying (embed, similarity search,
// hydrate, filter), deletion, and conflict resolution. It owns the
// consistency contract between the record store and the vector index.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/klugworks/klugstore/internal/chunker"
	"github.com/klugworks/klugstore/internal/domain"
	"github.com/klugworks/klugstore/internal/pagination"
	"github.com/klugworks/klugstore/internal/resolver"
)

// Match is one vector index hit: an entry id plus a similarity score
// monotonic with relevance.
type Match struct {
	ID    string
	Score float32
}

// ListPage is one cursor-delimited slice of a filtered entry listing.
type ListPage struct {
	Items      []*domain.Entry
	NextCursor string
	HasMore    bool
}

// RecordStore is the structured persistence boundary. It is the source of
// truth for deletion, filtering, and auditing.
type RecordStore interface {
	Put(ctx context.Context, e *domain.Entry) error
	Get(ctx context.Context, id string) (*domain.Entry, error)
	GetMany(ctx context.Context, ids []string) (map[string]*domain.Entry, error)
	Update(ctx context.Context, e *domain.Entry) error
	Find(ctx context.Context, filter domain.Filter) ([]*domain.Entry, error)
	Delete(ctx context.Context, ids []string) (int64, error)
	ListWithCursor(ctx context.Context, filter domain.Filter, cursor *pagination.Cursor, limit int) (*ListPage, error)
}

// VectorIndex is the similarity index boundary. It is the source of truth
// for semantic ranking; ids join back to the record store.
type VectorIndex interface {
	Upsert(ctx context.Context, id string, embedding []float32, modelVersion string) error
	Search(ctx context.Context, embedding []float32, modelVersion string, topK int) ([]Match, error)
	Delete(ctx context.Context, ids []string) error
}

// Embedder is the pluggable embedding capability. Deterministic for a
// fixed (text, model version) pair.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelVersion() string
}

// Classifier decides whether a candidate chunk conflicts with its nearest
// neighbors. It enumerates options; it never mutates.
type Classifier interface {
	Classify(candidate string, neighbors []resolver.Neighbor, now time.Time) *domain.ConflictDescriptor
	Threshold() float32
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// Options carries the engine's product tuning.
type Options struct {
	// ConflictTopN is how many nearest neighbors each candidate chunk is
	// checked against.
	ConflictTopN int
	// DefaultTopK is the query result size when the caller does not ask
	// for one.
	DefaultTopK int
	// ResolutionTTL bounds how long a pending conflict waits for a human
	// decision before it expires.
	ResolutionTTL time.Duration
}

// DefaultOptions returns the shipped tuning.
func DefaultOptions() Options {
	return Options{
		ConflictTopN:  5,
		DefaultTopK:   5,
		ResolutionTTL: 24 * time.Hour,
	}
}

// Engine is safe for concurrent use. Mutations of the same entry id are
// serialized through a per-id lock; queries run lock-free.
type Engine struct {
	records     RecordStore
	vectors     VectorIndex
	embedder    Embedder
	classifier  Classifier
	chunks      *chunker.Chunker
	uuidGen     UUIDGenerator
	locks       *entryLocks
	resolutions *resolutionRegistry
	opts        Options
}

// New creates an Engine.
func New(records RecordStore, vectors VectorIndex, embedder Embedder, classifier Classifier, chunks *chunker.Chunker, opts Options) *Engine {
	if opts.ConflictTopN <= 0 {
		opts.ConflictTopN = DefaultOptions().ConflictTopN
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = DefaultOptions().DefaultTopK
	}
	if opts.ResolutionTTL <= 0 {
		opts.ResolutionTTL = DefaultOptions().ResolutionTTL
	}
	if chunks == nil {
		chunks = chunker.New(chunker.DefaultConfig())
	}
	return &Engine{
		records:     records,
		vectors:     vectors,
		embedder:    embedder,
		classifier:  classifier,
		chunks:      chunks,
		uuidGen:     &DefaultUUIDGenerator{},
		locks:       newEntryLocks(),
		resolutions: newResolutionRegistry(opts.ResolutionTTL),
		opts:        opts,
	}
}

// WithUUIDGenerator swaps the id source (for testing).
func (e *Engine) WithUUIDGenerator(gen UUIDGenerator) *Engine {
	e.uuidGen = gen
	return e
}
