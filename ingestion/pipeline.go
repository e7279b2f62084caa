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


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/vidqa/ai"
	"github.com/poiesic/vidqa/core"
	"github.com/poiesic/vidqa/retry"
	"github.com/poiesic/vidqa/storage"
)

// DefaultPoolSize leaves room for steps from earlier epochs to finish while
// the current epoch's step runs.
const DefaultPoolSize = 4

// DefaultStepTimeout bounds the processing step of one segment, so a stalled
// service cannot hold the queue.
const DefaultStepTimeout = 3 * time.Minute

// job is one submitted segment and the channel its result goes to.
type job struct {
	segment *core.Segment
	ctx     context.Context // cancelled when the segment's epoch ends
	result  chan IngestResult
}

// Stats is a snapshot of the queue state.
type Stats struct {
	Epoch   uint64
	Busy    bool
	Pending int
}

// Pipeline orchestrates the transcription, embedding and storage of audio segments.
// Segments are processed strictly one at a time in submission order.
type Pipeline struct {
	// mu guards queue, closed and every store mutation made by the pipeline.
	mu     sync.Mutex
	queue  *Queue[*job]
	closed bool

	store       storage.ChunkStore
	transcriber ai.Transcriber
	embedder    ai.Embedder
	pool        *ants.Pool
	embedRetry  retry.Policy
	stepTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	// epochCtx is derived from ctx and replaced on every reset; guarded by mu.
	epochCtx    context.Context
	epochCancel context.CancelFunc
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size.
// Default is 4, with a minimum of 2.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 2 {
			size = 2
		}

		// Release old pool
		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithEmbeddingRetry sets the retry policy for the best-effort embedding step.
// Default is a single attempt. A policy without ShouldRetry retries only
// errors classified as transient by ai.IsRetryable.
func WithEmbeddingRetry(policy retry.Policy) Option {
	return func(p *Pipeline) error {
		if err := policy.Validate(); err != nil {
			return err
		}
		if policy.ShouldRetry == nil {
			policy.ShouldRetry = ai.IsRetryable
		}
		p.embedRetry = policy
		return nil
	}
}

// WithStepTimeout bounds the transcription and embedding calls made for one
// segment. When it expires the segment fails and the queue moves on.
// Default is DefaultStepTimeout; zero disables the deadline.
func WithStepTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d < 0 {
			return fmt.Errorf("step timeout must not be negative: %s", d)
		}
		p.stepTimeout = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline writing to store.
func NewPipeline(store storage.ChunkStore, provider ai.AIProvider, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrChunkStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	pool, err := ants.NewPool(DefaultPoolSize)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	epochCtx, epochCancel := context.WithCancel(ctx)
	p := &Pipeline{
		queue:       NewQueue[*job](),
		store:       store,
		transcriber: provider.Transcriber(),
		embedder:    provider.Embedder(),
		pool:        pool,
		embedRetry:  retry.Once,
		stepTimeout: DefaultStepTimeout,
		ctx:         ctx,
		cancel:      cancel,
		epochCtx:    epochCtx,
		epochCancel: epochCancel,
		logger:      slog.Default().With("component", "ingestion"),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Submit queues segment for processing and returns a channel that yields
// exactly one IngestResult and is then closed. Submit never blocks on the
// external services or on the worker pool.
func (p *Pipeline) Submit(segment *core.Segment) <-chan IngestResult {
	j := &job{segment: segment, result: make(chan IngestResult, 1)}

	if err := core.ValidateSegment(segment); err != nil {
		res := IngestResult{Err: err, Message: "Transcription failed: " + err.Error()}
		if segment != nil {
			res.SegmentID = segment.Id
		}
		deliver(j, res)
		return j.result
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		deliver(j, IngestResult{SegmentID: segment.Id, Err: ErrPipelineClosed, Message: ErrPipelineClosed.Error()})
		return j.result
	}
	epoch, start := p.queue.Enqueue(j)
	segment.Epoch = epoch
	j.ctx = p.epochCtx
	pending := p.queue.Pending()
	p.mu.Unlock()

	if start {
		p.logger.Debug("segment admitted", "segment", segment.Id, "epoch", epoch)
		// Workers may all be busy finishing steps of earlier epochs.
		go p.dispatch(j)
	} else {
		p.logger.Debug("segment queued", "segment", segment.Id, "epoch", epoch, "pending", pending)
	}
	return j.result
}

// dispatch hands j to a worker, which then drains the queue of its epoch.
// Must be called without holding mu.
func (p *Pipeline) dispatch(j *job) {
	for j != nil {
		current := j
		err := p.pool.Submit(func() {
			p.drain(current)
		})
		if err == nil {
			return
		}
		p.logger.Error("failed to submit segment to worker pool", "segment", current.segment.Id, "err", err)
		j = p.finish(current, IngestResult{
			SegmentID: current.segment.Id,
			Epoch:     current.segment.Epoch,
			Err:       fmt.Errorf("%w: %w", ErrPipelineClosed, err),
			Message:   ErrPipelineClosed.Error(),
		})
	}
}

// drain processes j and every segment queued behind it in the same epoch.
func (p *Pipeline) drain(j *job) {
	for j != nil {
		res := p.process(j)
		j = p.finish(j, res)
	}
}

// finish commits res for j: the chunk is appended only if j's epoch is still
// current, then the queue slot is released and the next job, if any, returned.
// The store append and the queue transition happen under one lock.
func (p *Pipeline) finish(j *job, res IngestResult) *job {
	p.mu.Lock()
	current := j.segment.Epoch == p.queue.Epoch() && !p.closed
	switch {
	case !current:
		res = discarded(res)
	case res.Err == nil && res.Text != "":
		chunk := &core.TranscriptChunk{
			SegmentId: j.segment.Id,
			Text:      res.Text,
			Embedding: res.embedding,
		}
		stored, err := p.store.Append(p.ctx, chunk)
		switch {
		case err != nil:
			res.Err = err
			res.Message = "Failed to store transcript: " + err.Error()
		case stored:
			res.Stored = true
			res.Seq = chunk.Seq
			res.Embedded = chunk.HasEmbedding()
			res.Message = storedMessage(res)
		}
	}
	next, ok := p.queue.Complete(j.segment.Epoch)
	p.mu.Unlock()

	switch {
	case res.Stored:
		p.logger.Info("stored transcript chunk", "seq", res.Seq, "embedded", res.Embedded, "text", preview(res.Text))
	case res.Discarded:
		p.logger.Info("discarded result from previous epoch", "segment", res.SegmentID, "epoch", res.Epoch)
	case res.Err != nil:
		p.logger.Warn("segment failed", "segment", res.SegmentID, "err", res.Err)
	}
	deliver(j, res)

	if !ok {
		return nil
	}
	return next
}

// process runs the external calls for one segment without holding mu.
// The calls are cancelled by a reset and bounded by the step timeout.
func (p *Pipeline) process(j *job) IngestResult {
	segment := j.segment
	res := IngestResult{SegmentID: segment.Id, Epoch: segment.Epoch}

	ctx := j.ctx
	if p.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.stepTimeout)
		defer cancel()
	}

	text, err := p.transcriber.Transcribe(ctx, segment.Audio, segment.Format)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", core.ErrTranscriptionFailed, err)
		res.Message = transcriptionMessage(err)
		return res
	}

	res.Text = strings.TrimSpace(text)
	if res.Text == "" {
		res.Message = "No speech detected in segment."
		return res
	}

	if p.isStale(segment.Epoch) {
		return res
	}
	res.embedding = p.embed(ctx, res.Text)
	return res
}

// embed requests a vector for text. Failures are logged and yield nil.
func (p *Pipeline) embed(ctx context.Context, text string) []float32 {
	var vector []float32
	err := retry.Do(ctx, p.embedRetry, func() error {
		v, err := p.embedder.EmbedText(ctx, text)
		if err != nil {
			return err
		}
		if len(v) == 0 {
			return ai.ErrEmptyResponse
		}
		vector = v
		return nil
	})
	if err != nil {
		p.logger.Warn("embedding failed, storing chunk without vector", "err", err)
		return nil
	}
	return vector
}

func (p *Pipeline) isStale(epoch uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return epoch != p.queue.Epoch()
}

// Reset clears the store and the queue as one step and starts a new epoch.
// Pending segments are reported as discarded. The in-flight one has its calls
// cancelled and is reported as discarded when it finishes.
func (p *Pipeline) Reset(ctx context.Context) error {
	p.mu.Lock()
	err := p.store.Reset(ctx)
	dropped := p.queue.Reset()
	epoch := p.queue.Epoch()
	p.epochCancel()
	p.epochCtx, p.epochCancel = context.WithCancel(p.ctx)
	p.mu.Unlock()

	for _, j := range dropped {
		deliver(j, discarded(IngestResult{SegmentID: j.segment.Id, Epoch: j.segment.Epoch}))
	}
	p.logger.Info("ingestion reset", "epoch", epoch, "dropped", len(dropped))
	return err
}

// Unembedded returns the current epoch and the stored chunks that carry no
// vector, in arrival order.
func (p *Pipeline) Unembedded(ctx context.Context) (uint64, []*core.TranscriptChunk, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, nil, ErrPipelineClosed
	}

	all, err := p.store.All(ctx)
	if err != nil {
		return 0, nil, err
	}
	missing := make([]*core.TranscriptChunk, 0, len(all))
	for _, chunk := range all {
		if !chunk.HasEmbedding() {
			missing = append(missing, chunk)
		}
	}
	return p.queue.Epoch(), missing, nil
}

// AttachEmbedding stores vector on chunk seq, provided no reset happened
// since epoch was observed. Returns ErrSuperseded otherwise.
func (p *Pipeline) AttachEmbedding(ctx context.Context, epoch, seq uint64, vector []float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPipelineClosed
	}
	if epoch != p.queue.Epoch() {
		return ErrSuperseded
	}
	return p.store.SetEmbedding(ctx, seq, vector)
}

// Stats returns a snapshot of the queue state.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Epoch:   p.queue.Epoch(),
		Busy:    p.queue.Busy(),
		Pending: p.queue.Pending(),
	}
}

// Release stops accepting segments, discards pending ones, cancels in-flight
// calls and releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	var dropped []*job
	if p.queue != nil {
		dropped = p.queue.Reset()
	}
	p.mu.Unlock()

	for _, j := range dropped {
		deliver(j, discarded(IngestResult{SegmentID: j.segment.Id, Epoch: j.segment.Epoch}))
	}
	if p.cancel != nil {
		p.cancel()
	}
	if p.pool != nil {
		p.pool.Release()
	}
}

func discarded(res IngestResult) IngestResult {
	res.Discarded = true
	res.Stored = false
	res.Embedded = false
	res.embedding = nil
	// A step cancelled by the reset reports the reset, not the cancellation.
	if res.Err == nil || errors.Is(res.Err, context.Canceled) {
		res.Err = ErrSuperseded
	}
	res.Message = "Segment discarded after reset."
	return res
}

// deliver sends the single result for j and closes its channel.
func deliver(j *job, res IngestResult) {
	j.result <- res
	close(j.result)
}
