package storage

import (
	"context"

	"github.com/poiesic/vidqa/core"
)

// ChunkStore is an append-only, ordered collection of transcript chunks.
// Implementations must be thread-safe and support concurrent access.
// Chunks returned by read operations are copies; mutating them never
// affects the store.
type ChunkStore interface {
	// Append adds chunk to the end of the store and returns true.
	// Chunks with blank text are silently discarded and Append returns false
	// with a nil error. On success Seq and CreatedAt are populated on chunk.
	Append(ctx context.Context, chunk *core.TranscriptChunk) (bool, error)

	// All returns every chunk in arrival order.
	All(ctx context.Context) ([]*core.TranscriptChunk, error)

	// WithEmbeddings returns only the chunks carrying an embedding, in arrival order.
	WithEmbeddings(ctx context.Context) ([]*core.TranscriptChunk, error)

	// Tail returns the last n chunks in arrival order.
	// Returns fewer when the store holds fewer than n.
	Tail(ctx context.Context, n int) ([]*core.TranscriptChunk, error)

	// SetEmbedding attaches embedding to the chunk with sequence number seq.
	// Only an absent vector may be filled in: a chunk that already has one is
	// left untouched and ErrEmbeddingPresent is returned. Returns
	// ErrChunkNotFound if no such chunk exists.
	SetEmbedding(ctx context.Context, seq uint64, embedding []float32) error

	// Len returns the number of stored chunks.
	Len(ctx context.Context) (int, error)

	// IsEmpty reports whether the store holds no chunks.
	IsEmpty(ctx context.Context) (bool, error)

	// Reset removes every chunk. Sequence numbers restart at 1.
	Reset(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
