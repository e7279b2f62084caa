package search

import "errors"

var (
	// ErrStoreRequired is returned when Retrieve is called without a chunk store.
	ErrStoreRequired = errors.New("chunk store required")

	// ErrInvalidTopK is returned when the result limit is not positive.
	ErrInvalidTopK = errors.New("top-k must be positive")

	// ErrInvalidWindow is returned when the keyword window is not positive.
	ErrInvalidWindow = errors.New("keyword window must be positive")
)
