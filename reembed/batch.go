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

package reembed

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/vidqa/ai"
	"github.com/poiesic/vidqa/core"
	"github.com/poiesic/vidqa/ingestion"
	"github.com/poiesic/vidqa/retry"
	"github.com/poiesic/vidqa/storage"
)

// BatchProcessor embeds one batch of chunks and attaches the vectors.
type BatchProcessor struct {
	target   Target
	embedder ai.Embedder
	retry    retry.Policy
}

// NewBatchProcessor creates a new batch processor.
func NewBatchProcessor(target Target, embedder ai.Embedder, policy retry.Policy) *BatchProcessor {
	return &BatchProcessor{
		target:   target,
		embedder: embedder,
		retry:    policy,
	}
}

// Process embeds chunks observed in epoch and returns how many received a vector.
// Returns ingestion.ErrSuperseded as soon as a reset is detected.
func (bp *BatchProcessor) Process(ctx context.Context, epoch uint64, chunks []*core.TranscriptChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	// Extract text content
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	// Generate embeddings with retry
	var embeddings [][]float32
	err := retry.Do(ctx, bp.retry, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCountMismatch, len(chunks), len(embeddings))
	}

	attached := 0
	for i, chunk := range chunks {
		if len(embeddings[i]) == 0 {
			continue
		}
		err := bp.target.AttachEmbedding(ctx, epoch, chunk.Seq, embeddings[i])
		if errors.Is(err, ingestion.ErrSuperseded) {
			return attached, err
		}
		if errors.Is(err, storage.ErrEmbeddingPresent) {
			continue
		}
		if err != nil {
			return attached, fmt.Errorf("failed to attach embedding to chunk %d: %w", chunk.Seq, err)
		}
		attached++
	}
	return attached, nil
}
