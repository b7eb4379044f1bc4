package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klugworks/klugstore/internal/chunker"
	"github.com/klugworks/klugstore/internal/domain"
	"github.com/klugworks/klugstore/internal/pagination"
	"github.com/klugworks/klugstore/internal/resolver"
)

const testModel = "test-embedding-1"

// fakeEmbedder returns a fixed vector per text. Unseen texts get a fresh
// basis vector, so unrelated texts score 0 against each other and
// identical texts score 1.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	next    int
	failFor map[string]error
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		vectors: make(map[string][]float32),
		failFor: make(map[string]error),
	}
}

func (f *fakeEmbedder) alias(a, b string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors[b] = f.vectorLocked(a)
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[text]; ok {
		return nil, err
	}
	return f.vectorLocked(text), nil
}

func (f *fakeEmbedder) vectorLocked(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return v
	}
	v := make([]float32, 32)
	v[f.next%32] = 1
	f.next++
	f.vectors[text] = v
	return v
}

func (f *fakeEmbedder) ModelVersion() string { return testModel }

// fakeRecords is an in-memory RecordStore.
type fakeRecords struct {
	mu      sync.Mutex
	entries map[string]*domain.Entry
	putErr  error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{entries: make(map[string]*domain.Entry)}
}

func (f *fakeRecords) Put(_ context.Context, e *domain.Entry) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	f.entries[e.ID] = &cp
	return nil
}

func (f *fakeRecords) Get(_ context.Context, id string) (*domain.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeRecords) GetMany(_ context.Context, ids []string) (map[string]*domain.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*domain.Entry, len(ids))
	for _, id := range ids {
		if e, ok := f.entries[id]; ok {
			cp := *e
			out[id] = &cp
		}
	}
	return out, nil
}

func (f *fakeRecords) Update(_ context.Context, e *domain.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[e.ID]; !ok {
		return domain.ErrEntryNotFound
	}
	cp := *e
	f.entries[e.ID] = &cp
	return nil
}

func (f *fakeRecords) Find(_ context.Context, filter domain.Filter) ([]*domain.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Entry
	for _, e := range f.entries {
		if filter.Matches(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRecords) Delete(_ context.Context, ids []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := f.entries[id]; ok {
			delete(f.entries, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeRecords) ListWithCursor(_ context.Context, filter domain.Filter, cursor *pagination.Cursor, limit int) (*ListPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*domain.Entry
	for _, e := range f.entries {
		if filter.Matches(e) {
			cp := *e
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	if cursor != nil {
		for i, e := range all {
			if e.CreatedAt.Before(cursor.Timestamp) ||
				(e.CreatedAt.Equal(cursor.Timestamp) && e.ID < cursor.LastID) {
				all = all[i:]
				break
			}
		}
	}
	page := &ListPage{Items: all}
	if len(all) > limit {
		page.Items = all[:limit]
		page.HasMore = true
		last := page.Items[limit-1]
		page.NextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}
	return page, nil
}

// fakeIndex is an in-memory VectorIndex scoring by dot product.
type fakeIndex struct {
	mu        sync.Mutex
	vectors   map[string][]float32
	models    map[string]string
	upsertErr error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		vectors: make(map[string][]float32),
		models:  make(map[string]string),
	}
}

func (f *fakeIndex) Upsert(_ context.Context, id string, embedding []float32, modelVersion string) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors[id] = embedding
	f.models[id] = modelVersion
	return nil
}

func (f *fakeIndex) Search(_ context.Context, embedding []float32, modelVersion string, topK int) ([]Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matches []Match
	for id, v := range f.vectors {
		if f.models[id] != modelVersion {
			continue
		}
		matches = append(matches, Match{ID: id, Score: dot(embedding, v)})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (f *fakeIndex) Delete(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.vectors, id)
		delete(f.models, id)
	}
	return nil
}

func (f *fakeIndex) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.vectors[id]
	return ok
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		if i < len(b) {
			sum += a[i] * b[i]
		}
	}
	return sum
}

type seqUUIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqUUIDGen) NewString() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%04d", g.n)
}

type harness struct {
	engine   *Engine
	records  *fakeRecords
	index    *fakeIndex
	embedder *fakeEmbedder
}

func newHarness() *harness {
	records := newFakeRecords()
	index := newFakeIndex()
	embedder := newFakeEmbedder()
	eng := New(records, index, embedder, resolver.New(resolver.DefaultConfig()),
		chunker.New(chunker.DefaultConfig()), Options{})
	eng.WithUUIDGenerator(&seqUUIDGen{})
	return &harness{engine: eng, records: records, index: index, embedder: embedder}
}

func (h *harness) mustIngest(t *testing.T, input IngestInput) *domain.Entry {
	t.Helper()
	res, err := h.engine.Ingest(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, 1, res.Created, "expected exactly one created chunk")
	return res.Items[0].Entry
}

func TestIngestStoresEntry(t *testing.T) {
	h := newHarness()

	res, err := h.engine.Ingest(context.Background(), IngestInput{
		Content:   "The deploy window is Tuesday 10:00 UTC.",
		Author:    "alice",
		Source:    domain.SourceInteractive,
		SourceURL: "https://team.example/c/ops/p1",
		Tags:      []string{"#DeployOps", "ops"},
	})

	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, 1, res.Created)

	entry := res.Items[0].Entry
	require.NotNil(t, entry)
	assert.Equal(t, "alice", entry.Author)
	assert.Equal(t, []string{"deploy-ops", "ops"}, entry.Tags)
	assert.Equal(t, testModel, entry.EmbeddingModel)

	stored, err := h.records.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.Content, stored.Content)
	assert.True(t, h.index.has(entry.ID), "vector should be indexed")
}

func TestIngestValidation(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.engine.Ingest(ctx, IngestInput{Content: "  ", Author: "alice", Source: domain.SourceInteractive})
	assert.ErrorIs(t, err, domain.ErrEmptyContent)

	_, err = h.engine.Ingest(ctx, IngestInput{Content: "fact", Source: domain.SourceInteractive})
	require.Error(t, err)

	_, err = h.engine.Ingest(ctx, IngestInput{
		Content: "fact", Author: "alice", Source: domain.SourceInteractive,
		Tags: []string{"a", "b", "c", "d"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTag)
}

func TestIngestEmbeddingFailureFailsChunk(t *testing.T) {
	h := newHarness()
	h.embedder.failFor["unembeddable fact"] = errors.New("backend down")

	res, err := h.engine.Ingest(context.Background(), IngestInput{
		Content: "unembeddable fact",
		Author:  "alice",
		Source:  domain.SourceInteractive,
	})

	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, 1, res.Failed)
	assert.Nil(t, res.Items[0].Entry)
	assert.Empty(t, h.records.entries, "nothing should be written")
}

func TestIngestVectorFailureLeavesRecordOrphan(t *testing.T) {
	h := newHarness()
	h.index.upsertErr = errors.New("index down")

	res, err := h.engine.Ingest(context.Background(), IngestInput{
		Content: "orphaned fact",
		Author:  "alice",
		Source:  domain.SourceInteractive,
	})

	require.NoError(t, err)
	require.Equal(t, 1, res.Failed)
	item := res.Items[0]
	require.NotNil(t, item.Entry, "failed item still reports the stored entry")

	// record landed, vector did not
	_, err = h.records.Get(context.Background(), item.Entry.ID)
	assert.NoError(t, err)
	assert.False(t, h.index.has(item.Entry.ID))
}

func TestIngestConflictSuspendsChunk(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	existing := h.mustIngest(t, IngestInput{
		Content: "John Smith leads Backend/SRE.",
		Author:  "alice",
		Source:  domain.SourceInteractive,
	})

	candidate := "Jane Doe is now the Backend/SRE lead."
	h.embedder.alias(existing.Content, candidate)

	res, err := h.engine.Ingest(ctx, IngestInput{
		Content: candidate,
		Author:  "bob",
		Source:  domain.SourceInteractive,
	})

	require.NoError(t, err)
	require.Equal(t, 1, res.Conflicts)
	desc := res.Items[0].Conflict
	require.NotNil(t, desc)
	assert.Equal(t, domain.ConflictKindContradiction, desc.Kind)
	assert.Equal(t, []string{existing.ID}, desc.ExistingIDs)
	assert.Equal(t, domain.ChunkStateAwaitingResolution, desc.State)
	assert.Equal(t, 1, h.engine.PendingResolutions())

	// nothing stored until resolved
	assert.Len(t, h.records.entries, 1)
}

func TestQueryRanksByScore(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	relevant := h.mustIngest(t, IngestInput{
		Content: "The deploy window is Tuesday.", Author: "alice", Source: domain.SourceInteractive,
	})
	h.mustIngest(t, IngestInput{
		Content: "Coffee machine is on floor 3.", Author: "bob", Source: domain.SourceInteractive,
	})

	question := "when do we deploy?"
	h.embedder.alias(relevant.Content, question)

	out, err := h.engine.Query(ctx, QueryInput{Question: question, TopK: 5})
	require.NoError(t, err)
	require.False(t, out.NoMatch)
	require.NotEmpty(t, out.Matches)
	assert.Equal(t, relevant.ID, out.Matches[0].Entry.ID)
	assert.InDelta(t, 1.0, out.Matches[0].Score, 1e-6)
}

func TestQueryNoMatchOnEmptyStore(t *testing.T) {
	h := newHarness()

	out, err := h.engine.Query(context.Background(), QueryInput{Question: "anything at all"})
	require.NoError(t, err)
	assert.True(t, out.NoMatch)
	assert.Empty(t, out.Matches)
}

func TestQueryEmptyQuestionRejected(t *testing.T) {
	h := newHarness()
	_, err := h.engine.Query(context.Background(), QueryInput{Question: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyContent)
}

func TestQueryAppliesFilter(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	tagged := h.mustIngest(t, IngestInput{
		Content: "Rotation schedule lives in the ops wiki.", Author: "alice",
		Source: domain.SourceInteractive, Tags: []string{"ops"},
	})
	untagged := h.mustIngest(t, IngestInput{
		Content: "Rotation is weekly.", Author: "bob", Source: domain.SourceInteractive,
	})

	question := "where is the rotation schedule?"
	h.embedder.alias(tagged.Content, question)

	// make both entries rank identically so the filter does the work
	vec, err := h.embedder.Embed(ctx, tagged.Content)
	require.NoError(t, err)
	require.NoError(t, h.index.Upsert(ctx, untagged.ID, vec, testModel))

	out, err := h.engine.Query(ctx, QueryInput{
		Question: question,
		Filter:   domain.Filter{Tags: []string{"ops"}},
	})
	require.NoError(t, err)
	require.Len(t, out.Matches, 1)
	assert.Equal(t, tagged.ID, out.Matches[0].Entry.ID)
}

func TestQueryNeverSurfacesVectorOrphan(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	entry := h.mustIngest(t, IngestInput{
		Content: "Standup is at 09:30.", Author: "alice", Source: domain.SourceInteractive,
	})

	// fabricate an orphan: a vector whose record does not exist
	question := "when is standup?"
	h.embedder.alias(entry.Content, question)
	vec, _ := h.embedder.Embed(ctx, question)
	require.NoError(t, h.index.Upsert(ctx, "ghost-entry", vec, testModel))

	out, err := h.engine.Query(ctx, QueryInput{Question: question})
	require.NoError(t, err)
	for _, m := range out.Matches {
		assert.NotEqual(t, "ghost-entry", m.Entry.ID)
	}
	require.Len(t, out.Matches, 1)
	assert.Equal(t, entry.ID, out.Matches[0].Entry.ID)
}

func TestQueryTieBreaksByRecencyThenID(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	older := h.mustIngest(t, IngestInput{
		Content: "Fact variant one.", Author: "alice", Source: domain.SourceInteractive,
	})
	newer := h.mustIngest(t, IngestInput{
		Content: "Fact variant two.", Author: "alice", Source: domain.SourceInteractive,
	})

	// force distinct updated_at, then identical scores
	h.records.mu.Lock()
	h.records.entries[older.ID].UpdatedAt = time.Now().UTC().Add(-time.Hour)
	h.records.entries[newer.ID].UpdatedAt = time.Now().UTC()
	h.records.mu.Unlock()

	question := "the fact?"
	h.embedder.alias(older.Content, question)
	vec, err := h.embedder.Embed(ctx, older.Content)
	require.NoError(t, err)
	require.NoError(t, h.index.Upsert(ctx, newer.ID, vec, testModel))

	out, err := h.engine.Query(ctx, QueryInput{Question: question, TopK: 2})
	require.NoError(t, err)
	require.Len(t, out.Matches, 2)
	assert.Equal(t, newer.ID, out.Matches[0].Entry.ID, "equal scores break by recency")
	assert.Equal(t, older.ID, out.Matches[1].Entry.ID)
}

func TestDeleteRequiresCapability(t *testing.T) {
	h := newHarness()
	_, err := h.engine.Delete(context.Background(), domain.Filter{Author: "alice"}, false)
	assert.ErrorIs(t, err, domain.ErrCapabilityRequired)
}

func TestDeleteRejectsEmptyFilter(t *testing.T) {
	h := newHarness()
	_, err := h.engine.Delete(context.Background(), domain.Filter{}, true)
	assert.ErrorIs(t, err, domain.ErrUnderspecifiedFilter)
}

func TestDeleteRemovesFromBothStores(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	doomed := h.mustIngest(t, IngestInput{
		Content: "Old onboarding doc.", Author: "alice", Source: domain.SourceInteractive,
		SourceURL: "https://wiki.example/onboarding",
	})
	kept := h.mustIngest(t, IngestInput{
		Content: "Current runbook.", Author: "alice", Source: domain.SourceInteractive,
	})

	count, err := h.engine.Delete(ctx, domain.Filter{SourceURL: "https://wiki.example/onboarding"}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = h.records.Get(ctx, doomed.ID)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
	assert.False(t, h.index.has(doomed.ID))

	_, err = h.records.Get(ctx, kept.ID)
	assert.NoError(t, err)
	assert.True(t, h.index.has(kept.ID))
}

func TestDeleteNoMatchesIsZero(t *testing.T) {
	h := newHarness()
	count, err := h.engine.Delete(context.Background(), domain.Filter{Author: "nobody"}, true)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func suspendConflict(t *testing.T, h *harness) (*domain.Entry, *domain.ConflictDescriptor) {
	t.Helper()
	existing := h.mustIngest(t, IngestInput{
		Content: "The office wifi password is hunter2.",
		Author:  "alice",
		Source:  domain.SourceInteractive,
		Tags:    []string{"office"},
	})
	candidate := "The office wifi password changed to hunter3."
	h.embedder.alias(existing.Content, candidate)

	res, err := h.engine.Ingest(context.Background(), IngestInput{
		Content: candidate, Author: "bob", Source: domain.SourceInteractive, Tags: []string{"wifi"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Conflicts)
	return existing, res.Items[0].Conflict
}

func TestResolveCancelDiscards(t *testing.T) {
	h := newHarness()
	existing, desc := suspendConflict(t, h)

	out, err := h.engine.Resolve(context.Background(), ResolveInput{
		ResolutionID: desc.ResolutionID, Action: domain.ActionCancel,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ChunkStateDiscarded, out.State)

	stored, err := h.records.Get(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "The office wifi password is hunter2.", stored.Content, "cancel leaves the existing entry alone")
	assert.Zero(t, h.engine.PendingResolutions())
}

func TestResolveReplaceOverwritesInPlace(t *testing.T) {
	h := newHarness()
	existing, desc := suspendConflict(t, h)

	out, err := h.engine.Resolve(context.Background(), ResolveInput{
		ResolutionID: desc.ResolutionID, Action: domain.ActionReplace,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ChunkStateSuperseded, out.State)
	require.NotNil(t, out.Entry)
	assert.Equal(t, existing.ID, out.Entry.ID, "replace reuses the existing id")

	stored, err := h.records.Get(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.Equal(t, desc.CandidateText, stored.Content)
	assert.True(t, stored.UpdatedAt.After(existing.UpdatedAt))
	assert.Len(t, h.records.entries, 1, "no second entry created")
}

func TestResolveMergeCombinesContent(t *testing.T) {
	h := newHarness()
	existing, desc := suspendConflict(t, h)

	out, err := h.engine.Resolve(context.Background(), ResolveInput{
		ResolutionID: desc.ResolutionID, Action: domain.ActionMerge,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ChunkStateSuperseded, out.State)

	stored, err := h.records.Get(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.Content, "hunter2")
	assert.Contains(t, stored.Content, "hunter3")
	assert.Contains(t, stored.Tags, "office")
	assert.Contains(t, stored.Tags, "wifi")
}

func TestResolveManualEditReentersIngestion(t *testing.T) {
	h := newHarness()
	_, desc := suspendConflict(t, h)

	out, err := h.engine.Resolve(context.Background(), ResolveInput{
		ResolutionID:   desc.ResolutionID,
		Action:         domain.ActionManualEdit,
		RevisedContent: "Guest wifi uses a rotating password; see the ops dashboard.",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ChunkStateStored, out.State)
	require.NotNil(t, out.Ingest)
	assert.Equal(t, 1, out.Ingest.Created)
	assert.Len(t, h.records.entries, 2)
}

func TestResolveManualEditRequiresContent(t *testing.T) {
	h := newHarness()
	_, desc := suspendConflict(t, h)

	_, err := h.engine.Resolve(context.Background(), ResolveInput{
		ResolutionID: desc.ResolutionID, Action: domain.ActionManualEdit,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidResolution)
}

func TestResolveIsOneShot(t *testing.T) {
	h := newHarness()
	_, desc := suspendConflict(t, h)
	ctx := context.Background()

	_, err := h.engine.Resolve(ctx, ResolveInput{ResolutionID: desc.ResolutionID, Action: domain.ActionCancel})
	require.NoError(t, err)

	_, err = h.engine.Resolve(ctx, ResolveInput{ResolutionID: desc.ResolutionID, Action: domain.ActionCancel})
	assert.ErrorIs(t, err, domain.ErrResolutionNotFound)
}

func TestResolveUnknownID(t *testing.T) {
	h := newHarness()
	_, err := h.engine.Resolve(context.Background(), ResolveInput{
		ResolutionID: "never-issued", Action: domain.ActionCancel,
	})
	assert.ErrorIs(t, err, domain.ErrResolutionNotFound)
}

func TestResolveUnknownAction(t *testing.T) {
	h := newHarness()
	_, desc := suspendConflict(t, h)
	_, err := h.engine.Resolve(context.Background(), ResolveInput{
		ResolutionID: desc.ResolutionID, Action: domain.ResolutionAction("obliterate"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidResolution)
}

func TestBulkImportRequiresCapability(t *testing.T) {
	h := newHarness()
	_, err := h.engine.BulkImport(context.Background(), ImportInput{
		Author: "importer", Items: []ImportItem{{Content: "doc"}},
	}, false)
	assert.ErrorIs(t, err, domain.ErrCapabilityRequired)
}

func TestBulkImportItemsAreIndependent(t *testing.T) {
	h := newHarness()

	res, err := h.engine.BulkImport(context.Background(), ImportInput{
		Author: "importer",
		Items: []ImportItem{
			{Content: "First exported doc.", SourceURL: "https://export.example/1"},
			{Content: "   "}, // invalid, skipped
			{Content: "Second exported doc.", SourceURL: "https://export.example/2"},
		},
	}, true)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Rejected)

	for _, e := range h.records.entries {
		assert.Equal(t, domain.SourceBulkImport, e.Source)
		assert.Equal(t, "importer", e.Author)
	}
}

func TestListPagesNewestFirst(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entry := h.mustIngest(t, IngestInput{
			Content: fmt.Sprintf("List fact number %d.", i),
			Author:  "alice",
			Source:  domain.SourceInteractive,
		})
		// distinct created_at for a stable keyset order
		h.records.mu.Lock()
		h.records.entries[entry.ID].CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		h.records.mu.Unlock()
	}

	page, err := h.engine.List(ctx, ListInput{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)
	require.NotEmpty(t, page.NextCursor)

	rest, err := h.engine.List(ctx, ListInput{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	assert.Len(t, rest.Items, 1)
	assert.False(t, rest.HasMore)
}

func TestResolveReplaceReusesIngestEmbedding(t *testing.T) {
	h := newHarness()
	_, desc := suspendConflict(t, h)

	// the embedder going down must not block a replace: the candidate text
	// is stored verbatim, so the vector from ingest is reused
	h.embedder.failFor[desc.CandidateText] = errors.New("backend down")

	out, err := h.engine.Resolve(context.Background(), ResolveInput{
		ResolutionID: desc.ResolutionID, Action: domain.ActionReplace,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ChunkStateSuperseded, out.State)

	stored, err := h.records.Get(context.Background(), out.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, desc.CandidateText, stored.Content)
	assert.True(t, h.index.has(out.Entry.ID))
}

func TestResolveMergeReportsDroppedTags(t *testing.T) {
	h := newHarness()

	existing := h.mustIngest(t, IngestInput{
		Content: "VPN config lives in the ops vault.",
		Author:  "alice",
		Source:  domain.SourceInteractive,
		Tags:    []string{"vpn", "ops"},
	})
	candidate := "VPN config moved to the new secrets manager."
	h.embedder.alias(existing.Content, candidate)

	res, err := h.engine.Ingest(context.Background(), IngestInput{
		Content: candidate, Author: "bob", Source: domain.SourceInteractive,
		Tags: []string{"secrets", "migration"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Conflicts)
	desc := res.Items[0].Conflict

	out, err := h.engine.Resolve(context.Background(), ResolveInput{
		ResolutionID: desc.ResolutionID, Action: domain.ActionMerge,
	})
	require.NoError(t, err)

	// the union is four tags against a limit of three: the overflow is
	// reported, not swallowed
	assert.Equal(t, []string{"vpn", "ops", "secrets"}, out.Entry.Tags)
	assert.Equal(t, []string{"migration"}, out.DroppedTags)
}

func TestMarkOutdatedFlagsEntryForReview(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	entry := h.mustIngest(t, IngestInput{
		Content: "Support rota is posted on Fridays.", Author: "alice", Source: domain.SourceInteractive,
	})

	flagged, err := h.engine.MarkOutdated(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "true", flagged.AdditionalMetadata[domain.MetaKeyOutdated])
	assert.True(t, flagged.UpdatedAt.After(entry.UpdatedAt) || flagged.UpdatedAt.Equal(entry.UpdatedAt))

	stored, err := h.records.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "true", stored.AdditionalMetadata[domain.MetaKeyOutdated])
	assert.Equal(t, entry.Content, stored.Content, "content is untouched")
	assert.True(t, h.index.has(entry.ID), "flagging does not touch the vector")

	// flagged entries stay queryable
	question := "when is the rota posted?"
	h.embedder.alias(entry.Content, question)
	out, err := h.engine.Query(ctx, QueryInput{Question: question})
	require.NoError(t, err)
	require.NotEmpty(t, out.Matches)
	assert.Equal(t, entry.ID, out.Matches[0].Entry.ID)
}

func TestMarkOutdatedUnknownEntry(t *testing.T) {
	h := newHarness()
	_, err := h.engine.MarkOutdated(context.Background(), "never-stored")
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	_, err = h.engine.MarkOutdated(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestConcurrentIngestDissimilarFactsBothStored(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	contents := []string{
		"The deploy window is Tuesday 10:00 UTC.",
		"The coffee machine is on floor 3.",
	}
	results := make([]*IngestResult, len(contents))
	errs := make([]error, len(contents))

	var wg sync.WaitGroup
	for i := range contents {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.engine.Ingest(ctx, IngestInput{
				Content: contents[i], Author: "alice", Source: domain.SourceInteractive,
			})
		}(i)
	}
	wg.Wait()

	// unrelated facts score far below the conflict floor, so neither
	// ingest suspends regardless of interleaving
	for i := range contents {
		require.NoError(t, errs[i])
		require.Equal(t, 1, results[i].Created, "content %d should store cleanly", i)
	}
	assert.Zero(t, h.engine.PendingResolutions())

	questions := []string{"when do we deploy?", "where is the coffee machine?"}
	for i, q := range questions {
		h.embedder.alias(contents[i], q)
		out, err := h.engine.Query(ctx, QueryInput{Question: q})
		require.NoError(t, err)
		require.NotEmpty(t, out.Matches, "question %d should match", i)
		assert.Equal(t, results[i].Items[0].Entry.ID, out.Matches[0].Entry.ID)
	}
}

func TestConcurrentMutationsSameEntry(t *testing.T) {
	h := newHarness()
	existing := h.mustIngest(t, IngestInput{
		Content: "Concurrent base fact.", Author: "alice", Source: domain.SourceInteractive,
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.engine.Delete(context.Background(), domain.Filter{Author: "alice"}, true)
		}()
	}
	wg.Wait()

	_, err := h.records.Get(context.Background(), existing.ID)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
	assert.False(t, h.index.has(existing.ID))
}
