package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

const (
	// DefaultModel is the OpenAI model used for generating embeddings.
	DefaultModel = "text-embedding-3-small"

	// DefaultBatchSize balances requests-per-minute vs tokens-per-minute rate limits.
	DefaultBatchSize = 500

	// DefaultMaxInputChars bounds a single input text. The chunker targets
	// segments well below this, so hitting the limit indicates a caller bug.
	DefaultMaxInputChars = 8000
)

// Embedder generates embeddings for text using an OpenAI embedding model.
// It batches requests for efficiency and retries transient provider failures
// (rate limits, 5xx, timeouts) with exponential backoff.
type Embedder struct {
	client        *Client
	model         string
	batchSize     int
	maxInputChars int
}

// NewEmbedder creates a new Embedder. Zero values for model, batchSize and
// maxInputChars select the defaults.
func NewEmbedder(client *Client, model string, batchSize, maxInputChars int) *Embedder {
	if model == "" {
		model = DefaultModel
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxInputChars <= 0 {
		maxInputChars = DefaultMaxInputChars
	}
	return &Embedder{
		client:        client,
		model:         model,
		batchSize:     batchSize,
		maxInputChars: maxInputChars,
	}
}

// GenerateEmbeddings generates one vector per input text, in input order.
// Dimensionality is constant for a given model configuration.
func (e *Embedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	for i, text := range texts {
		if len([]rune(text)) > e.maxInputChars {
			return nil, fmt.Errorf("%w: text %d has %d chars, limit %d",
				ErrInvalidInput, i, len([]rune(text)), e.maxInputChars)
		}
	}

	var allEmbeddings [][]float32
	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		batch := texts[i:end]

		embeddings, err := e.embedBatchWithRetry(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("%w: batch %d-%d: %v", ErrEmbeddingService, i, end, err)
		}
		allEmbeddings = append(allEmbeddings, embeddings...)
	}

	return allEmbeddings, nil
}

// embedBatchWithRetry generates embeddings for a single batch with retry logic.
// Transient failures retry with exponential backoff; everything else is permanent.
func (e *Embedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32

	operation := func() error {
		resp, err := e.client.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			if isTransient(err) {
				return err // Will retry with backoff
			}
			return backoff.Permanent(err)
		}

		// Convert float64 to float32 for index storage
		embeddings = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			embeddings[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return embeddings, err
}

// isTransient reports whether the error is worth retrying: rate limits,
// server-side failures, or network timeouts.
func isTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// toFloat32 converts []float64 to []float32.
// OpenAI API returns float64, but the index uses float32 for memory efficiency.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
