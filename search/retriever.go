package search

import (
	"context"
	"log/slog"
	"slices"

	"github.com/poiesic/vidqa/core"
	"github.com/poiesic/vidqa/storage"
)

const (
	// DefaultTopK is the number of chunks returned when no limit is configured.
	DefaultTopK = 3

	// DefaultKeywordWindow is the number of most recent chunks searched in keyword mode.
	DefaultKeywordWindow = 5
)

// Retriever selects the chunks most relevant to a question.
// A Retriever holds no per-query state and is safe for concurrent use.
type Retriever struct {
	topK          int
	keywordWindow int
	monitor       RetrievalMonitor
	logger        *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithTopK sets the maximum number of results.
// Default is 3.
func WithTopK(k int) Option {
	return func(r *Retriever) error {
		if k < 1 {
			return ErrInvalidTopK
		}
		r.topK = k
		return nil
	}
}

// WithKeywordWindow sets how many of the most recent chunks keyword mode considers.
// Default is 5.
func WithKeywordWindow(n int) Option {
	return func(r *Retriever) error {
		if n < 1 {
			return ErrInvalidWindow
		}
		r.keywordWindow = n
		return nil
	}
}

// WithMonitor attaches a monitor that observes every retrieval.
func WithMonitor(monitor RetrievalMonitor) Option {
	return func(r *Retriever) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		r.monitor = monitor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRetriever creates a new retriever.
func NewRetriever(opts ...Option) (*Retriever, error) {
	r := &Retriever{
		topK:          DefaultTopK,
		keywordWindow: DefaultKeywordWindow,
		monitor:       &noopMonitor{},
		logger:        slog.Default().With("component", "retriever"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// TopK returns the configured result limit.
func (r *Retriever) TopK() int {
	return r.topK
}

// Retrieve returns up to TopK chunks from store, highest score first.
// queryVector may be nil, which forces keyword mode.
// An empty result means nothing relevant was found and is not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, queryVector []float32, store storage.ChunkStore) ([]core.ScoredChunk, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	r.monitor.Start(query, len(queryVector) > 0)

	withVectors, err := store.WithEmbeddings(ctx)
	if err != nil {
		r.logger.Error("error reading embedded chunks", "err", err)
		return nil, err
	}

	var (
		mode    Mode
		results []core.ScoredChunk
	)
	if len(withVectors) > 0 && len(queryVector) > 0 {
		mode = ModeVector
		r.monitor.ModeSelected(mode, len(withVectors))
		results = r.rankByVector(queryVector, withVectors)
	} else {
		recent, err := store.Tail(ctx, r.keywordWindow)
		if err != nil {
			r.logger.Error("error reading recent chunks", "err", err)
			return nil, err
		}
		mode = ModeKeyword
		r.monitor.ModeSelected(mode, len(recent))
		results = r.rankByKeyword(query, recent)
	}

	if len(results) > r.topK {
		results = results[:r.topK]
	}
	r.logger.Debug("retrieval complete", "mode", mode, "results", len(results))
	r.monitor.Finish(mode, results)

	return results, nil
}

func (r *Retriever) rankByVector(queryVector []float32, chunks []*core.TranscriptChunk) []core.ScoredChunk {
	results := make([]core.ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		scored := core.ScoredChunk{
			Seq:   chunk.Seq,
			Text:  chunk.Text,
			Score: Cosine(queryVector, chunk.Embedding),
		}
		r.monitor.Scored(scored)
		results = append(results, scored)
	}
	sortByScore(results)
	return results
}

func (r *Retriever) rankByKeyword(query string, chunks []*core.TranscriptChunk) []core.ScoredChunk {
	terms := keywords(query)
	results := make([]core.ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		scored := core.ScoredChunk{
			Seq:   chunk.Seq,
			Text:  chunk.Text,
			Score: keywordScore(terms, chunk.Text),
		}
		r.monitor.Scored(scored)
		if scored.Score <= 0 {
			continue
		}
		results = append(results, scored)
	}
	sortByScore(results)
	return results
}

// sortByScore orders results by descending score; ties keep their input order.
func sortByScore(results []core.ScoredChunk) {
	slices.SortStableFunc(results, func(a, b core.ScoredChunk) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
}
