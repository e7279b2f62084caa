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


package badger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/vidqa/core"
	"github.com/poiesic/vidqa/storage"
)

// ChunkStore stores MUS-encoded chunks in BadgerDB under BigEndian sequence keys.
type ChunkStore struct {
	backend *Backend
	ownsDB  bool

	// mu serializes sequence assignment with Append and Reset.
	mu      sync.Mutex
	nextSeq uint64
}

var _ storage.ChunkStore = (*ChunkStore)(nil)

// NewChunkStore creates a chunk store on backend.
// Chunks left in the database by a previous process are dropped so every
// store starts empty. The caller keeps ownership of backend.
func NewChunkStore(backend *Backend) (*ChunkStore, error) {
	if err := backend.DropPrefix(chunkPrefix); err != nil {
		return nil, err
	}
	return &ChunkStore{
		backend: backend,
		nextSeq: 1,
	}, nil
}

// Append encodes chunk and stores it under the next sequence number.
func (s *ChunkStore) Append(ctx context.Context, chunk *core.TranscriptChunk) (bool, error) {
	if core.ValidateChunk(chunk) != nil {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := chunk.Clone()
	stored.Seq = s.nextSeq
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeChunkKey(stored.Seq), storage.MarshalChunk(&stored)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return false, err
	}

	s.nextSeq++
	chunk.Seq = stored.Seq
	chunk.CreatedAt = stored.CreatedAt
	return true, nil
}

// All returns every chunk in arrival order.
func (s *ChunkStore) All(ctx context.Context) ([]*core.TranscriptChunk, error) {
	return s.scan(ctx, func(*core.TranscriptChunk) bool { return true })
}

// WithEmbeddings returns the embedded chunks in arrival order.
func (s *ChunkStore) WithEmbeddings(ctx context.Context) ([]*core.TranscriptChunk, error) {
	return s.scan(ctx, (*core.TranscriptChunk).HasEmbedding)
}

// Tail returns the last n chunks in arrival order.
func (s *ChunkStore) Tail(ctx context.Context, n int) ([]*core.TranscriptChunk, error) {
	if n < 0 {
		return nil, storage.ErrInvalidQuery
	}
	chunks := make([]*core.TranscriptChunk, 0, n)
	if n == 0 {
		return chunks, nil
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		opts.Reverse = true
		opts.PrefetchSize = n

		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeChunkSeekKey()); iter.Valid() && len(chunks) < n; iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			chunk, err := readChunk(iter.Item())
			if err != nil {
				return err
			}
			chunks = append(chunks, chunk)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Reverse iteration yields newest first; restore arrival order.
	for i, j := 0, len(chunks)-1; i < j; i, j = i+1, j-1 {
		chunks[i], chunks[j] = chunks[j], chunks[i]
	}
	return chunks, nil
}

// SetEmbedding rewrites the chunk numbered seq with embedding attached.
// The check for an existing vector runs in the same transaction as the write.
func (s *ChunkStore) SetEmbedding(ctx context.Context, seq uint64, embedding []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeChunkKey(seq))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrChunkNotFound
		}
		if err != nil {
			return err
		}
		chunk, err := readChunk(item)
		if err != nil {
			return err
		}
		if chunk.HasEmbedding() {
			return storage.ErrEmbeddingPresent
		}
		chunk.Embedding = embedding
		if err := tx.Set(makeChunkKey(seq), storage.MarshalChunk(chunk)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Len counts the stored chunks without decoding values.
func (s *ChunkStore) Len(ctx context.Context) (int, error) {
	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		opts.PrefetchValues = false

		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// IsEmpty reports whether the store holds no chunks.
func (s *ChunkStore) IsEmpty(ctx context.Context) (bool, error) {
	empty := true
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		opts.PrefetchValues = false

		iter := tx.NewIterator(opts)
		defer iter.Close()

		iter.Rewind()
		empty = !iter.Valid()
		return nil
	}, false)
	return empty, err
}

// Reset drops every chunk and restarts sequence numbering.
func (s *ChunkStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.DropPrefix(chunkPrefix); err != nil {
		return err
	}
	s.nextSeq = 1
	return nil
}

// Close closes the backend when the store opened it itself.
func (s *ChunkStore) Close() error {
	if s.ownsDB {
		return s.backend.Close()
	}
	return nil
}

// scan iterates every chunk in key order and keeps those accepted by keep.
func (s *ChunkStore) scan(ctx context.Context, keep func(*core.TranscriptChunk) bool) ([]*core.TranscriptChunk, error) {
	var chunks []*core.TranscriptChunk

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)

		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			chunk, err := readChunk(iter.Item())
			if err != nil {
				return err
			}
			if keep(chunk) {
				chunks = append(chunks, chunk)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	if chunks == nil {
		chunks = []*core.TranscriptChunk{}
	}
	return chunks, nil
}

func readChunk(item *badger.Item) (*core.TranscriptChunk, error) {
	var chunk *core.TranscriptChunk
	err := item.Value(func(val []byte) error {
		var err error
		chunk, err = storage.UnmarshalChunk(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	if chunk.Seq == 0 {
		chunk.Seq = seqFromChunkKey(item.Key())
	}
	return chunk, nil
}
