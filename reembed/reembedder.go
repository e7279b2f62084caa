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
	"log/slog"
	"time"

	"github.com/poiesic/vidqa/ai"
	"github.com/poiesic/vidqa/core"
	"github.com/poiesic/vidqa/ingestion"
	"github.com/poiesic/vidqa/retry"
)

// Target exposes the chunks missing a vector and accepts vectors for them.
// *ingestion.Pipeline implements Target.
type Target interface {
	// Unembedded returns the current epoch and the chunks without a vector.
	Unembedded(ctx context.Context) (uint64, []*core.TranscriptChunk, error)

	// AttachEmbedding stores vector on chunk seq unless epoch is stale.
	AttachEmbedding(ctx context.Context, epoch, seq uint64, vector []float32) error
}

var _ Target = (*ingestion.Pipeline)(nil)

// Config holds reembedding configuration.
type Config struct {
	// BatchSize is the number of chunks embedded per request
	BatchSize int

	// Retry controls repeated attempts for a failing batch
	Retry retry.Policy
}

// DefaultConfig returns the default reembedding configuration.
func DefaultConfig() *Config {
	return &Config{
		BatchSize: 16,
		Retry: retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    10 * time.Second,
			ShouldRetry: ai.IsRetryable,
		},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	return c.Retry.Validate()
}

// Result summarizes one reembedding run.
type Result struct {
	Candidates int  `json:"candidates"` // Chunks without a vector when the run started
	Embedded   int  `json:"embedded"`   // Chunks that received a vector
	Failed     int  `json:"failed"`     // Chunks whose batch failed
	Superseded bool `json:"superseded"` // A reset stopped the run early
}

// Reembedder embeds every stored chunk that lacks a vector.
type Reembedder struct {
	target    Target
	config    *Config
	processor *BatchProcessor
	logger    *slog.Logger
}

// NewReembedder creates a reembedder. A nil config uses DefaultConfig.
func NewReembedder(target Target, embedder ai.Embedder, config *Config) (*Reembedder, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Reembedder{
		target:    target,
		config:    config,
		processor: NewBatchProcessor(target, embedder, config.Retry),
		logger:    slog.Default().With("component", "reembed"),
	}, nil
}

// Run embeds the chunks missing a vector in batches. A failed batch is
// counted and skipped; a reset ends the run without error.
func (r *Reembedder) Run(ctx context.Context) (Result, error) {
	var res Result

	epoch, chunks, err := r.target.Unembedded(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list chunks: %w", err)
	}
	res.Candidates = len(chunks)
	if len(chunks) == 0 {
		return res, nil
	}

	r.logger.Info("reembedding chunks", "count", len(chunks), "batch_size", r.config.BatchSize, "epoch", epoch)
	start := time.Now()

	for offset := 0; offset < len(chunks); offset += r.config.BatchSize {
		end := min(offset+r.config.BatchSize, len(chunks))
		batch := chunks[offset:end]

		n, err := r.processor.Process(ctx, epoch, batch)
		res.Embedded += n
		switch {
		case errors.Is(err, ingestion.ErrSuperseded):
			res.Superseded = true
			r.logger.Info("reembedding stopped by reset", "embedded", res.Embedded)
			return res, nil
		case ctx.Err() != nil:
			return res, ctx.Err()
		case err != nil:
			res.Failed += len(batch) - n
			r.logger.Warn("batch failed", "first_seq", batch[0].Seq, "size", len(batch), "err", err)
		}
	}

	r.logger.Info("reembedding complete",
		"embedded", res.Embedded, "failed", res.Failed, "elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}
