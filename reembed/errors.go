package reembed

import "errors"

var (
	// ErrInvalidBatchSize is returned when BatchSize is <= 0
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

	// ErrEmbeddingCountMismatch is returned when the embedder returns a
	// different number of vectors than texts it was given.
	ErrEmbeddingCountMismatch = errors.New("embedding count mismatch")
)
