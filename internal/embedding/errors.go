package embedding

import "errors"

var (
	// ErrEmbeddingService marks a provider failure that survived retries.
	ErrEmbeddingService = errors.New("embedding service failure")

	// ErrInvalidInput marks a text exceeding the per-input length limit.
	// Correct chunking upstream should make this unreachable.
	ErrInvalidInput = errors.New("embedding input too long")
)
