package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/klugworks/klugstore/internal/domain"
)

const (
	// MaxRetries is how many reconciliation attempts an entry gets before
	// it is quarantined for manual review.
	MaxRetries = 3

	// batchSize bounds how many orphans one pass touches.
	batchSize = 50
)

// OrphanScanner finds one-sided entries across the two stores.
type OrphanScanner interface {
	RecordOrphans(ctx context.Context, modelVersion string, limit int) ([]*domain.Entry, error)
	VectorOrphans(ctx context.Context, limit int) ([]string, error)
}

// RecordUpdater persists quarantine marks on entries that keep failing.
type RecordUpdater interface {
	Update(ctx context.Context, e *domain.Entry) error
}

// VectorWriter repairs the vector side: re-index recovered records,
// prune vectors whose record is gone.
type VectorWriter interface {
	Upsert(ctx context.Context, id string, embedding []float32, modelVersion string) error
	Delete(ctx context.Context, ids []string) error
}

// Embedder re-embeds orphaned record content.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelVersion() string
}

// Reconciler restores the dual-store invariant in the background. A
// record without a vector is re-embedded and re-indexed; a vector
// without a record is pruned. Entries that fail re-indexing MaxRetries
// times are quarantined instead of being retried forever.
type Reconciler struct {
	scanner  OrphanScanner
	records  RecordUpdater
	vectors  VectorWriter
	embedder Embedder

	mu       sync.Mutex
	failures map[string]int
}

// NewReconciler creates a Reconciler.
func NewReconciler(scanner OrphanScanner, records RecordUpdater, vectors VectorWriter, embedder Embedder) *Reconciler {
	return &Reconciler{
		scanner:  scanner,
		records:  records,
		vectors:  vectors,
		embedder: embedder,
		failures: make(map[string]int),
	}
}

// ProcessJobs implements the JobProcessor interface.
func (r *Reconciler) ProcessJobs(ctx context.Context) error {
	if err := r.reindexRecordOrphans(ctx); err != nil {
		return err
	}
	return r.pruneVectorOrphans(ctx)
}

func (r *Reconciler) reindexRecordOrphans(ctx context.Context) error {
	orphans, err := r.scanner.RecordOrphans(ctx, r.embedder.ModelVersion(), batchSize)
	if err != nil {
		return fmt.Errorf("failed to scan record orphans: %w", err)
	}
	if len(orphans) == 0 {
		return nil
	}

	log.Printf("Reconciling %d record orphans", len(orphans))
	for _, entry := range orphans {
		if err := r.reindex(ctx, entry); err != nil {
			log.Printf("Error reconciling entry %s: %v", entry.ID, err)
			r.recordFailure(ctx, entry, err)
			continue
		}
		r.clearFailures(entry.ID)
	}
	return nil
}

func (r *Reconciler) reindex(ctx context.Context, entry *domain.Entry) error {
	embedding, err := r.embedder.Embed(ctx, entry.Content)
	if err != nil {
		return err
	}
	return r.vectors.Upsert(ctx, entry.ID, embedding, r.embedder.ModelVersion())
}

// recordFailure counts consecutive failures per entry and quarantines
// after MaxRetries. Counts live in memory: a restart resets them, which
// only means a quarantine takes a few more attempts.
func (r *Reconciler) recordFailure(ctx context.Context, entry *domain.Entry, cause error) {
	r.mu.Lock()
	r.failures[entry.ID]++
	count := r.failures[entry.ID]
	r.mu.Unlock()

	if count < MaxRetries {
		log.Printf("Entry %s will be retried (attempt %d/%d)", entry.ID, count, MaxRetries)
		return
	}

	log.Printf("Entry %s exceeded max retries (%d), quarantining: %v", entry.ID, MaxRetries, cause)
	if entry.AdditionalMetadata == nil {
		entry.AdditionalMetadata = make(map[string]string)
	}
	entry.AdditionalMetadata[domain.MetaKeyQuarantined] = "true"
	if err := r.records.Update(ctx, entry); err != nil {
		log.Printf("Error quarantining entry %s: %v", entry.ID, err)
		return
	}
	r.clearFailures(entry.ID)
}

func (r *Reconciler) clearFailures(id string) {
	r.mu.Lock()
	delete(r.failures, id)
	r.mu.Unlock()
}

func (r *Reconciler) pruneVectorOrphans(ctx context.Context) error {
	ids, err := r.scanner.VectorOrphans(ctx, batchSize)
	if err != nil {
		return fmt.Errorf("failed to scan vector orphans: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	log.Printf("Pruning %d vector orphans", len(ids))
	if err := r.vectors.Delete(ctx, ids); err != nil {
		return fmt.Errorf("failed to prune vector orphans: %w", err)
	}
	return nil
}
