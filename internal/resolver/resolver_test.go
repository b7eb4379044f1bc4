package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klugworks/klugstore/internal/domain"
)

func TestClassifyBelowThresholdIsNoConflict(t *testing.T) {
	r := New(Config{Threshold: 0.9, DuplicateTokenOverlap: 0.65})

	desc := r.Classify("John Smith leads Backend/SRE.", []Neighbor{
		{ID: "e1", Content: "The deploy window is Tuesday.", Score: 0.42},
		{ID: "e2", Content: "Alice owns billing.", Score: 0.89},
	}, time.Now())

	assert.Nil(t, desc)
}

func TestClassifyNoNeighbors(t *testing.T) {
	r := New(DefaultConfig())
	assert.Nil(t, r.Classify("anything", nil, time.Now()))
}

func TestClassifyDuplicate(t *testing.T) {
	r := New(Config{Threshold: 0.86, DuplicateTokenOverlap: 0.6})

	desc := r.Classify("John Smith leads Backend/SRE.", []Neighbor{
		{ID: "e1", Content: "John Smith leads Backend/SRE!", Score: 0.99},
	}, time.Now())

	require.NotNil(t, desc)
	assert.Equal(t, domain.ConflictKindDuplicate, desc.Kind)
	assert.Equal(t, []string{"e1"}, desc.ExistingIDs)
	assert.InDelta(t, 0.99, desc.BestScore, 1e-6)
}

func TestClassifyContradiction(t *testing.T) {
	r := New(DefaultConfig())

	desc := r.Classify("Jane Doe is now the Backend/SRE lead.", []Neighbor{
		{ID: "e1", Content: "John Smith leads Backend/SRE.", Score: 0.91},
	}, time.Now())

	require.NotNil(t, desc)
	assert.Equal(t, domain.ConflictKindContradiction, desc.Kind)
}

func TestClassifyDescriptorShape(t *testing.T) {
	r := New(DefaultConfig())
	now := time.Date(2025, 2, 22, 12, 0, 0, 0, time.UTC)

	desc := r.Classify("The deploy window moved to Wednesday.", []Neighbor{
		{ID: "e1", Content: "The deploy window is Tuesday.", Score: 0.93},
		{ID: "e2", Content: "Deploys happen on Tuesdays.", Score: 0.90},
		{ID: "e3", Content: "Unrelated fact.", Score: 0.10},
	}, now)

	require.NotNil(t, desc)
	assert.NotEmpty(t, desc.ResolutionID)
	assert.Equal(t, domain.ChunkStateAwaitingResolution, desc.State)
	assert.Equal(t, now, desc.CreatedAt)
	assert.ElementsMatch(t, []string{"e1", "e2"}, desc.ExistingIDs, "sub-threshold neighbors excluded")

	// exactly the four options, in display order
	assert.Equal(t, []domain.ResolutionAction{
		domain.ActionReplace, domain.ActionMerge, domain.ActionCancel, domain.ActionManualEdit,
	}, desc.Options)
}

func TestTokenJaccard(t *testing.T) {
	assert.InDelta(t, 1.0, tokenJaccard("a b c", "c b a"), 1e-9)
	assert.InDelta(t, 0.0, tokenJaccard("a b", "c d"), 1e-9)
	assert.InDelta(t, 1.0, tokenJaccard("Hello, world!", "hello world"), 1e-9)
}
