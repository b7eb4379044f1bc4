//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/klugworks/klugstore/internal/api/handlers"
	"github.com/klugworks/klugstore/internal/chunker"
	"github.com/klugworks/klugstore/internal/engine"
	"github.com/klugworks/klugstore/internal/jobs"
	"github.com/klugworks/klugstore/internal/resolver"
	"github.com/klugworks/klugstore/internal/server"
	"github.com/klugworks/klugstore/internal/store"
	"github.com/klugworks/klugstore/internal/testutil"
	"github.com/klugworks/klugstore/internal/vector"
)

const e2eAdminToken = "e2e-admin-token"

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	Embedder     *hashEmbedder
	EntryRepo    *store.EntryRepository
	VectorIndex  *vector.Index
	Reconciler   *jobs.Reconciler
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with a pgvector container
// and an in-process server backed by a deterministic embedder.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	embedder := &hashEmbedder{}
	entryRepo := store.NewEntryRepository(pool)
	vectorIndex := vector.NewIndex(pool)
	reconcileRepo := store.NewReconcileRepository(pool)
	reconciler := jobs.NewReconciler(reconcileRepo, entryRepo, vectorIndex, embedder)

	serverURL, serverCloser := startServer(t, entryRepo, vectorIndex, embedder, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		Embedder:     embedder,
		EntryRepo:    entryRepo,
		VectorIndex:  vectorIndex,
		Reconciler:   reconciler,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// Reset truncates all tables for test isolation
func (e *E2ETestEnv) Reset() {
	if err := testutil.TruncateAll(e.Ctx, e.Pool); err != nil {
		e.T.Fatalf("failed to truncate tables: %v", err)
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, authToken string) (*APIResponse, int, error) {
	return e.doRequest("GET", path, nil, authToken)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, int, error) {
	return e.doRequest("POST", path, body, authToken)
}

// Delete performs a DELETE request with a JSON body
func (e *E2ETestEnv) Delete(path string, body interface{}, authToken string) (*APIResponse, int, error) {
	return e.doRequest("DELETE", path, body, authToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, int, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, 0, err
	}

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return &apiResp, resp.StatusCode, nil
}

// startServer wires the engine against the given stores and serves it
func startServer(t *testing.T, entryRepo *store.EntryRepository, vectorIndex *vector.Index, embedder engine.Embedder, port int) (string, func()) {
	eng := engine.New(
		entryRepo,
		vectorIndex,
		embedder,
		resolver.New(resolver.DefaultConfig()),
		chunker.New(chunker.DefaultConfig()),
		engine.DefaultOptions(),
	)

	router := server.NewRouter(server.RouterConfig{
		AdminToken:        e2eAdminToken,
		EntryHandler:      handlers.NewEntryHandler(eng),
		QueryHandler:      handlers.NewQueryHandler(eng, nil),
		ResolutionHandler: handlers.NewResolutionHandler(eng),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// hashEmbedder produces deterministic bag-of-words embeddings. Texts
// sharing most tokens score high on cosine similarity, which is enough
// to drive retrieval and conflict detection without a real model.
type hashEmbedder struct{}

const hashEmbedderDims = 1536

func (h *hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, hashEmbedderDims)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,!?;:\"'()")
		if token == "" {
			continue
		}
		hasher := fnv.New32a()
		hasher.Write([]byte(token))
		vec[hasher.Sum32()%hashEmbedderDims]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func (h *hashEmbedder) ModelVersion() string {
	return "e2e-hash-embedder-1"
}
