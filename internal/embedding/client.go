// Package embedding wraps the OpenAI embeddings API behind a small,
// deterministic adapter. For a fixed (text, model version) pair the
// backend returns the same vector, which is what lets the vector index
// compare entries embedded at different times.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/klugworks/klugstore/internal/domain"
)

const (
	// DefaultModel is the OpenAI model used for generating embeddings
	DefaultModel = openai.SmallEmbedding3
	// DefaultDimensions is the vector length produced by the default model
	DefaultDimensions = 1536

	defaultMaxRetries  = 3
	defaultCallTimeout = 30 * time.Second
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when the backend returns a vector of
	// unexpected length
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
)

// API is the slice of the OpenAI client the adapter needs.
type API interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Config configures the adapter. Model and Dimensions travel together:
// the model version is stamped onto every entry so retired models are
// never compared against current vectors.
type Config struct {
	APIKey      string
	Model       openai.EmbeddingModel
	Dimensions  int
	MaxRetries  int
	CallTimeout time.Duration
}

// Client generates embeddings with bounded retries.
type Client struct {
	api         API
	model       openai.EmbeddingModel
	dimensions  int
	maxRetries  int
	callTimeout time.Duration
}

// NewClient creates an adapter with defaults applied.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	return &Client{
		api:         openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		dimensions:  cfg.Dimensions,
		maxRetries:  cfg.MaxRetries,
		callTimeout: cfg.CallTimeout,
	}
}

// NewClientWithAPI creates an adapter over an explicit API implementation
// (for testing).
func NewClientWithAPI(api API, model openai.EmbeddingModel, dimensions int) *Client {
	c := NewClient(Config{Model: model, Dimensions: dimensions})
	c.api = api
	return c
}

// ModelVersion returns the model tag stamped onto entries.
func (c *Client) ModelVersion() string {
	return string(c.model)
}

// Dimensions returns the expected vector length.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Embed generates an embedding for the given text, retrying transient
// failures with exponential backoff. After retry exhaustion it fails with
// domain.ErrEmbeddingUnavailable, which aborts the enclosing ingestion of
// that chunk only.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	var vector []float32
	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()

		resp, err := c.api.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: c.model,
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return errors.New("no embedding data returned")
		}

		vector = resp.Data[0].Embedding
		if len(vector) != c.dimensions {
			// wrong shape will not fix itself on retry
			return backoff.Permanent(fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.dimensions, len(vector)))
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)),
		ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		if errors.Is(err, ErrWrongDimensions) {
			return nil, err
		}
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable,
			"embedding call failed after retries", errors.Join(domain.ErrEmbeddingUnavailable, err))
	}

	return vector, nil
}
