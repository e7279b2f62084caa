// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package memory provides a slice-backed storage.ChunkStore.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/vidqa/core"
	"github.com/poiesic/vidqa/storage"
)

// ChunkStore keeps chunks in a slice guarded by a read-write mutex.
type ChunkStore struct {
	mu      sync.RWMutex
	chunks  []core.TranscriptChunk
	nextSeq uint64
	closed  bool
}

var _ storage.ChunkStore = (*ChunkStore)(nil)

// NewChunkStore creates an empty in-memory chunk store.
//
// Returns storage.ChunkStore interface to enforce abstraction.
func NewChunkStore() storage.ChunkStore {
	return newChunkStore()
}

func newChunkStore() *ChunkStore {
	return &ChunkStore{nextSeq: 1}
}

// Append adds chunk to the end of the store.
func (s *ChunkStore) Append(ctx context.Context, chunk *core.TranscriptChunk) (bool, error) {
	if core.ValidateChunk(chunk) != nil {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, storage.ErrStorageClosed
	}

	chunk.Seq = s.nextSeq
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now().UTC()
	}
	s.nextSeq++
	s.chunks = append(s.chunks, chunk.Clone())
	return true, nil
}

// All returns copies of every chunk in arrival order.
func (s *ChunkStore) All(ctx context.Context) ([]*core.TranscriptChunk, error) {
	return s.collect(ctx, 0, func(*core.TranscriptChunk) bool { return true })
}

// WithEmbeddings returns copies of the embedded chunks in arrival order.
func (s *ChunkStore) WithEmbeddings(ctx context.Context) ([]*core.TranscriptChunk, error) {
	return s.collect(ctx, 0, (*core.TranscriptChunk).HasEmbedding)
}

// Tail returns copies of the last n chunks in arrival order.
func (s *ChunkStore) Tail(ctx context.Context, n int) ([]*core.TranscriptChunk, error) {
	if n < 0 {
		return nil, storage.ErrInvalidQuery
	}
	if n == 0 {
		return []*core.TranscriptChunk{}, nil
	}

	return s.collect(ctx, n, func(*core.TranscriptChunk) bool { return true })
}

// SetEmbedding stores a copy of embedding on the chunk numbered seq, which
// must not have a vector yet.
func (s *ChunkStore) SetEmbedding(ctx context.Context, seq uint64, embedding []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}

	i, found := slices.BinarySearchFunc(s.chunks, seq, func(c core.TranscriptChunk, seq uint64) int {
		return cmp.Compare(c.Seq, seq)
	})
	if !found {
		return storage.ErrChunkNotFound
	}
	if s.chunks[i].HasEmbedding() {
		return storage.ErrEmbeddingPresent
	}
	s.chunks[i].Embedding = slices.Clone(embedding)
	return nil
}

// Len returns the number of stored chunks.
func (s *ChunkStore) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, storage.ErrStorageClosed
	}
	return len(s.chunks), nil
}

// IsEmpty reports whether the store holds no chunks.
func (s *ChunkStore) IsEmpty(ctx context.Context) (bool, error) {
	n, err := s.Len(ctx)
	return n == 0, err
}

// Reset drops every chunk. The old slice is released to the garbage collector.
func (s *ChunkStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	s.chunks = nil
	s.nextSeq = 1
	return nil
}

// Close releases the stored chunks. Further calls fail with storage.ErrStorageClosed.
func (s *ChunkStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.chunks = nil
	return nil
}

// collect copies the chunks that satisfy keep. A positive tail limits the
// scan to the last tail chunks.
func (s *ChunkStore) collect(ctx context.Context, tail int, keep func(*core.TranscriptChunk) bool) ([]*core.TranscriptChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}
	start := 0
	if tail > 0 && len(s.chunks) > tail {
		start = len(s.chunks) - tail
	}

	out := make([]*core.TranscriptChunk, 0, len(s.chunks)-start)
	for i := start; i < len(s.chunks); i++ {
		if !keep(&s.chunks[i]) {
			continue
		}
		c := s.chunks[i].Clone()
		out = append(out, &c)
	}
	return out, nil
}
