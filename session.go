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

// Package vidqa answers questions about a live video from its own
// transcript. A Session turns captured audio segments into an ordered store
// of transcript chunks and answers questions grounded in the chunks most
// relevant to them.
package vidqa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/vidqa/ai"
	"github.com/poiesic/vidqa/core"
	"github.com/poiesic/vidqa/ingestion"
	"github.com/poiesic/vidqa/reembed"
	"github.com/poiesic/vidqa/search"
	"github.com/poiesic/vidqa/storage"
	"github.com/poiesic/vidqa/storage/badger"
	"github.com/poiesic/vidqa/storage/memory"
)

// DefaultAskPoolSize bounds the questions answered concurrently by AskAsync.
const DefaultAskPoolSize = 8

// Session owns the transcript store, the ingestion pipeline and the
// retriever for one video. All entry points are safe for concurrent use.
type Session struct {
	id          string
	store       storage.ChunkStore
	pipeline    *ingestion.Pipeline
	retriever   *search.Retriever
	provider    ai.AIProvider
	embedder    ai.Embedder
	answerer    ai.Answerer
	instruction string
	backfill    *reembed.Config
	askPool     *ants.Pool
	logger      *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// SessionOption configures a Session.
type SessionOption func(*sessionOptions) error

type sessionOptions struct {
	id            string
	store         storage.ChunkStore
	useBadger     bool
	instruction   string
	backfill      *reembed.Config
	askPoolSize   int
	retrieverOpts []search.Option
	pipelineOpts  []ingestion.Option
	logger        *slog.Logger
}

// WithSessionID sets the session identifier. Default is a random UUID.
func WithSessionID(id string) SessionOption {
	return func(o *sessionOptions) error {
		if strings.TrimSpace(id) == "" {
			return errors.New("session id cannot be empty")
		}
		o.id = id
		return nil
	}
}

// WithChunkStore sets the transcript store. The session takes ownership and
// closes it on Close. Default is an in-memory store.
func WithChunkStore(store storage.ChunkStore) SessionOption {
	return func(o *sessionOptions) error {
		if store == nil {
			return ErrNilStore
		}
		o.store = store
		return nil
	}
}

// WithBadgerStore keeps the transcript in an in-memory badger database
// instead of a plain slice.
func WithBadgerStore() SessionOption {
	return func(o *sessionOptions) error {
		o.useBadger = true
		return nil
	}
}

// WithInstruction replaces the system instruction sent with every question.
func WithInstruction(instruction string) SessionOption {
	return func(o *sessionOptions) error {
		o.instruction = instruction
		return nil
	}
}

// WithBackfillConfig sets how Backfill batches and retries embedding requests.
// Default is reembed.DefaultConfig().
func WithBackfillConfig(cfg *reembed.Config) SessionOption {
	return func(o *sessionOptions) error {
		if cfg == nil {
			return errors.New("backfill config cannot be nil")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		o.backfill = cfg
		return nil
	}
}

// WithAskPoolSize bounds the number of questions answered at once by AskAsync.
// Default is 8.
func WithAskPoolSize(size int) SessionOption {
	return func(o *sessionOptions) error {
		if size < 1 {
			return fmt.Errorf("ask pool size must be positive, got %d", size)
		}
		o.askPoolSize = size
		return nil
	}
}

// WithRetrieverOptions passes options to the session's retriever.
func WithRetrieverOptions(opts ...search.Option) SessionOption {
	return func(o *sessionOptions) error {
		o.retrieverOpts = append(o.retrieverOpts, opts...)
		return nil
	}
}

// WithPipelineOptions passes options to the session's ingestion pipeline.
func WithPipelineOptions(opts ...ingestion.Option) SessionOption {
	return func(o *sessionOptions) error {
		o.pipelineOpts = append(o.pipelineOpts, opts...)
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) SessionOption {
	return func(o *sessionOptions) error {
		o.logger = logger
		return nil
	}
}

// NewSession creates a session for one video using the services of provider.
func NewSession(provider ai.AIProvider, opts ...SessionOption) (*Session, error) {
	if provider == nil {
		return nil, ErrProviderRequired
	}

	options := &sessionOptions{
		instruction: ai.DefaultInstruction,
		backfill:    reembed.DefaultConfig(),
		askPoolSize: DefaultAskPoolSize,
	}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	if options.id == "" {
		options.id = uuid.NewString()
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	logger := options.logger.With("component", "session", "session", options.id)

	store := options.store
	if store == nil {
		if options.useBadger {
			var err error
			store, err = badger.OpenMemoryChunkStore()
			if err != nil {
				return nil, fmt.Errorf("open transcript store: %w", err)
			}
		} else {
			store = memory.NewChunkStore()
		}
	}

	retrieverOpts := append([]search.Option{search.WithLogger(options.logger.With("component", "retriever"))}, options.retrieverOpts...)
	retriever, err := search.NewRetriever(retrieverOpts...)
	if err != nil {
		store.Close()
		return nil, err
	}

	pipelineOpts := append([]ingestion.Option{ingestion.WithLogger(options.logger.With("component", "ingestion"))}, options.pipelineOpts...)
	pipeline, err := ingestion.NewPipeline(store, provider, pipelineOpts...)
	if err != nil {
		store.Close()
		return nil, err
	}

	askPool, err := ants.NewPool(options.askPoolSize)
	if err != nil {
		pipeline.Release()
		store.Close()
		return nil, err
	}

	logger.Info("session created")
	return &Session{
		id:          options.id,
		store:       store,
		pipeline:    pipeline,
		retriever:   retriever,
		provider:    provider,
		embedder:    provider.Embedder(),
		answerer:    provider.Answerer(),
		instruction: options.instruction,
		backfill:    options.backfill,
		askPool:     askPool,
		logger:      logger,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Ingest queues one captured audio segment. The returned channel yields
// exactly one result once the segment has been processed, failed or been
// discarded by a reset.
func (s *Session) Ingest(audio []byte, format string) <-chan ingestion.IngestResult {
	return s.pipeline.Submit(core.NewSegment(audio, format))
}

// Ask answers question from the transcript collected so far.
// Every outcome, failures included, is reported as an Answer.
func (s *Session) Ask(ctx context.Context, question string) Answer {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return errorAnswer(ErrSessionClosed)
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return errorAnswer(ErrEmptyQuestion)
	}

	empty, err := s.store.IsEmpty(ctx)
	if err != nil {
		return errorAnswer(err)
	}
	if empty {
		s.logger.Debug("question asked before any transcript was stored")
		return infoAnswer(MessageNoTranscript)
	}
	if reporter, ok := s.provider.(ai.CredentialReporter); ok && !reporter.HasCredential() {
		return errorAnswer(ai.ErrNoCredential)
	}

	queryVector, err := s.embedQuestion(ctx, question)
	if err != nil {
		return errorAnswer(err)
	}

	results, err := s.retriever.Retrieve(ctx, question, queryVector, s.store)
	if err != nil {
		return errorAnswer(err)
	}
	if len(results) == 0 {
		return infoAnswer(MessageNoContext)
	}

	text, err := s.answerer.Answer(ctx, ai.AnswerRequest{
		Instruction: s.instruction,
		Context:     buildContext(results),
		Question:    question,
	})
	if err != nil {
		s.logger.Warn("answer generation failed", "err", err)
		return Answer{
			Kind: AnswerError,
			Text: answerErrorMessage(err),
			Err:  fmt.Errorf("%w: %w", core.ErrAnswerFailed, err),
		}
	}

	return Answer{Kind: AnswerGenerated, Text: strings.TrimSpace(text), Sources: results}
}

// embedQuestion returns the question's vector, or nil when vector search is
// not possible. Only a missing credential is reported as an error; any other
// embedding failure leaves the retriever to fall back to keyword matching.
func (s *Session) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	withVectors, err := s.store.WithEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	if len(withVectors) == 0 {
		return nil, nil
	}

	vector, err := s.embedder.EmbedText(ctx, question)
	if err != nil {
		if errors.Is(err, ai.ErrNoCredential) {
			return nil, err
		}
		s.logger.Warn("question embedding failed, using keyword matching", "err", err)
		return nil, nil
	}
	return vector, nil
}

// AskAsync answers question on the session's worker pool. The returned
// channel yields exactly one Answer and is then closed.
func (s *Session) AskAsync(ctx context.Context, question string) <-chan Answer {
	out := make(chan Answer, 1)
	err := s.askPool.Submit(func() {
		out <- s.Ask(ctx, question)
		close(out)
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolClosed) {
			err = ErrSessionClosed
		}
		out <- errorAnswer(err)
		close(out)
	}
	return out
}

// Reset clears the transcript and the ingestion queue in one step, for a new
// video. Results of segments submitted before the reset are discarded.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSessionClosed
	}
	if err := s.pipeline.Reset(ctx); err != nil {
		return err
	}
	s.logger.Info("session reset for new video")
	return nil
}

// Backfill embeds the stored chunks whose embedding failed during ingestion,
// so later questions can rank them by vector. A reset during the run stops it.
func (s *Session) Backfill(ctx context.Context) (reembed.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return reembed.Result{}, ErrSessionClosed
	}

	r, err := reembed.NewReembedder(s.pipeline, s.embedder, s.backfill)
	if err != nil {
		return reembed.Result{}, err
	}
	return r.Run(ctx)
}

// Status is a snapshot of the session state.
type Status struct {
	SessionID string `json:"session_id"`
	Epoch     uint64 `json:"epoch"`
	Chunks    int    `json:"chunks"`
	Embedded  int    `json:"embedded"`
	Busy      bool   `json:"busy"`
	Pending   int    `json:"pending"`
}

// Status reports the session state.
func (s *Session) Status(ctx context.Context) (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Status{}, ErrSessionClosed
	}

	stats := s.pipeline.Stats()
	chunks, err := s.store.Len(ctx)
	if err != nil {
		return Status{}, err
	}
	embedded, err := s.store.WithEmbeddings(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		SessionID: s.id,
		Epoch:     stats.Epoch,
		Chunks:    chunks,
		Embedded:  len(embedded),
		Busy:      stats.Busy,
		Pending:   stats.Pending,
	}, nil
}

// Close stops ingestion and releases the store and the AI provider.
// The session should not be used after calling Close.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.pipeline.Release()
	s.askPool.Release()

	// Close AI provider first
	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing transcript store", "err", err)
		return err
	}
	s.logger.Info("session closed")
	return nil
}
