// Package resolver detects semantic overlap between a candidate chunk and
// existing entries. It classifies, enumerates the resolution options, and
// stops: the contributor decides, never the resolver.
package resolver

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/klugworks/klugstore/internal/domain"
)

// Neighbor is an existing entry retrieved above the conflict threshold.
type Neighbor struct {
	ID      string
	Content string
	Score   float32
}

// Config tunes classification.
type Config struct {
	// Threshold is the similarity floor for treating a neighbor as
	// overlapping. Product-tuned, not derived.
	Threshold float32
	// DuplicateTokenOverlap is the token Jaccard index at or above which
	// embedding-similar texts count as restatements rather than
	// contradictions.
	DuplicateTokenOverlap float64
}

// DefaultConfig returns the shipped tuning.
func DefaultConfig() Config {
	return Config{
		Threshold:             0.86,
		DuplicateTokenOverlap: 0.65,
	}
}

// Resolver classifies candidate chunks against their nearest neighbors.
type Resolver struct {
	cfg Config
}

func New(cfg Config) *Resolver {
	if cfg.Threshold <= 0 {
		cfg = DefaultConfig()
	}
	if cfg.DuplicateTokenOverlap <= 0 {
		cfg.DuplicateTokenOverlap = DefaultConfig().DuplicateTokenOverlap
	}
	return &Resolver{cfg: cfg}
}

// Threshold is the similarity floor used for the engine's candidate search.
func (r *Resolver) Threshold() float32 {
	return r.cfg.Threshold
}

// Classify inspects neighbors at or above the threshold. It returns nil
// when the candidate is safe to store, or a descriptor in
// AwaitingResolution with exactly the four options otherwise. No store
// mutation happens here or before the caller resolves.
func (r *Resolver) Classify(candidate string, neighbors []Neighbor, now time.Time) *domain.ConflictDescriptor {
	var overlapping []Neighbor
	var best float32
	for _, n := range neighbors {
		if n.Score >= r.cfg.Threshold {
			overlapping = append(overlapping, n)
			if n.Score > best {
				best = n.Score
			}
		}
	}
	if len(overlapping) == 0 {
		return nil
	}

	kind := domain.ConflictKindContradiction
	for _, n := range overlapping {
		if tokenJaccard(candidate, n.Content) >= r.cfg.DuplicateTokenOverlap && !hasContradictionMarker(candidate) {
			kind = domain.ConflictKindDuplicate
			break
		}
	}

	ids := make([]string, 0, len(overlapping))
	for _, n := range overlapping {
		ids = append(ids, n.ID)
	}

	return &domain.ConflictDescriptor{
		ResolutionID:  uuid.NewString(),
		Kind:          kind,
		CandidateText: candidate,
		ExistingIDs:   ids,
		BestScore:     best,
		Options:       append([]domain.ResolutionAction(nil), domain.ResolutionActions...),
		State:         domain.ChunkStateAwaitingResolution,
		CreatedAt:     now.UTC(),
	}
}

var contradictionMarkers = []string{
	"no longer", "not anymore", "instead of", "actually", "correction",
	"used to", "is now", "was replaced", "changed to", "incorrect",
}

// hasContradictionMarker looks for phrasing that asserts a change to
// known facts. Embedding similarity plus an explicit marker is treated as
// a contradiction even when the texts share most tokens.
func hasContradictionMarker(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range contradictionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// tokenJaccard computes the Jaccard index over lowercased word sets.
func tokenJaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		tok := strings.Trim(f, ".,;:!?\"'()[]")
		if tok != "" {
			set[tok] = struct{}{}
		}
	}
	return set
}
