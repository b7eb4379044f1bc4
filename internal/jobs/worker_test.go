package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/klugworks/klugstore/internal/domain"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockOrphanScanner is a mock implementation of OrphanScanner
type MockOrphanScanner struct {
	mock.Mock
}

func (m *MockOrphanScanner) RecordOrphans(ctx context.Context, modelVersion string, limit int) ([]*domain.Entry, error) {
	args := m.Called(ctx, modelVersion, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Entry), args.Error(1)
}

func (m *MockOrphanScanner) VectorOrphans(ctx context.Context, limit int) ([]string, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockRecordUpdater is a mock implementation of RecordUpdater
type MockRecordUpdater struct {
	mock.Mock
}

func (m *MockRecordUpdater) Update(ctx context.Context, e *domain.Entry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

// MockVectorWriter is a mock implementation of VectorWriter
type MockVectorWriter struct {
	mock.Mock
}

func (m *MockVectorWriter) Upsert(ctx context.Context, id string, embedding []float32, modelVersion string) error {
	args := m.Called(ctx, id, embedding, modelVersion)
	return args.Error(0)
}

func (m *MockVectorWriter) Delete(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

// MockEmbedder is a mock implementation of Embedder
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbedder) ModelVersion() string {
	args := m.Called()
	return args.String(0)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_FirstPassIsImmediate tests that a pass runs before the first tick
func TestWorker_FirstPassIsImmediate(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertNumberOfCalls(t, "ProcessJobs", 1)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func newReconcilerMocks() (*MockOrphanScanner, *MockRecordUpdater, *MockVectorWriter, *MockEmbedder, *Reconciler) {
	scanner := new(MockOrphanScanner)
	records := new(MockRecordUpdater)
	vectors := new(MockVectorWriter)
	embedder := new(MockEmbedder)
	embedder.On("ModelVersion").Return("test-embed-1")
	return scanner, records, vectors, embedder, NewReconciler(scanner, records, vectors, embedder)
}

func TestReconciler_NothingToDo(t *testing.T) {
	scanner, _, _, _, rec := newReconcilerMocks()
	scanner.On("RecordOrphans", mock.Anything, "test-embed-1", batchSize).Return([]*domain.Entry{}, nil)
	scanner.On("VectorOrphans", mock.Anything, batchSize).Return([]string{}, nil)

	err := rec.ProcessJobs(context.Background())
	require.NoError(t, err)
}

func TestReconciler_ReindexesRecordOrphan(t *testing.T) {
	scanner, _, vectors, embedder, rec := newReconcilerMocks()

	orphan := &domain.Entry{ID: "e1", Content: "lost fact"}
	scanner.On("RecordOrphans", mock.Anything, "test-embed-1", batchSize).Return([]*domain.Entry{orphan}, nil)
	scanner.On("VectorOrphans", mock.Anything, batchSize).Return([]string{}, nil)
	embedder.On("Embed", mock.Anything, "lost fact").Return([]float32{0.1, 0.2}, nil)
	vectors.On("Upsert", mock.Anything, "e1", []float32{0.1, 0.2}, "test-embed-1").Return(nil)

	err := rec.ProcessJobs(context.Background())
	require.NoError(t, err)
	vectors.AssertCalled(t, "Upsert", mock.Anything, "e1", []float32{0.1, 0.2}, "test-embed-1")
}

func TestReconciler_QuarantinesAfterMaxRetries(t *testing.T) {
	scanner, records, _, embedder, rec := newReconcilerMocks()

	orphan := &domain.Entry{ID: "e1", Content: "unembeddable"}
	scanner.On("RecordOrphans", mock.Anything, "test-embed-1", batchSize).Return([]*domain.Entry{orphan}, nil)
	scanner.On("VectorOrphans", mock.Anything, batchSize).Return([]string{}, nil)
	embedder.On("Embed", mock.Anything, "unembeddable").Return(nil, errors.New("backend down"))
	records.On("Update", mock.Anything, mock.MatchedBy(func(e *domain.Entry) bool {
		return e.ID == "e1" && e.AdditionalMetadata[domain.MetaKeyQuarantined] == "true"
	})).Return(nil)

	ctx := context.Background()
	for i := 0; i < MaxRetries; i++ {
		require.NoError(t, rec.ProcessJobs(ctx))
	}

	records.AssertNumberOfCalls(t, "Update", 1)
}

func TestReconciler_PrunesVectorOrphans(t *testing.T) {
	scanner, _, vectors, _, rec := newReconcilerMocks()

	scanner.On("RecordOrphans", mock.Anything, "test-embed-1", batchSize).Return([]*domain.Entry{}, nil)
	scanner.On("VectorOrphans", mock.Anything, batchSize).Return([]string{"ghost-1", "ghost-2"}, nil)
	vectors.On("Delete", mock.Anything, []string{"ghost-1", "ghost-2"}).Return(nil)

	err := rec.ProcessJobs(context.Background())
	require.NoError(t, err)
	vectors.AssertCalled(t, "Delete", mock.Anything, []string{"ghost-1", "ghost-2"})
}

func TestReconciler_ScanFailurePropagates(t *testing.T) {
	scanner, _, _, _, rec := newReconcilerMocks()
	scanner.On("RecordOrphans", mock.Anything, "test-embed-1", batchSize).Return(nil, errors.New("db down"))

	err := rec.ProcessJobs(context.Background())
	assert.Error(t, err)
}
