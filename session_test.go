package vidqa

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/vidqa/ai"
	"github.com/poiesic/vidqa/ai/mock"
	"github.com/poiesic/vidqa/core"
	"github.com/poiesic/vidqa/ingestion"
	"github.com/poiesic/vidqa/reembed"
	"github.com/poiesic/vidqa/retry"
	"github.com/poiesic/vidqa/search"
	"github.com/poiesic/vidqa/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, opts ...SessionOption) (*Session, *mock.MockProvider) {
	t.Helper()
	provider := mock.NewMockProviderWithServices(mock.NewMockTranscriber(), mock.NewMockEmbedder(), mock.NewMockAnswerer())
	s, err := NewSession(provider, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, provider
}

func ingest(t *testing.T, s *Session, text string) ingestion.IngestResult {
	t.Helper()
	select {
	case res := <-s.Ingest([]byte(text), "webm"):
		require.NoError(t, res.Err)
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for ingest result")
		return ingestion.IngestResult{}
	}
}

// vectorTable scripts the embedder with fixed vectors per text.
func vectorTable(vectors map[string][]float32) func(context.Context, string) ([]float32, error) {
	return func(ctx context.Context, text string) ([]float32, error) {
		if v, ok := vectors[text]; ok {
			return v, nil
		}
		return nil, errors.New("unexpected text")
	}
}

func TestNewSession(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, _ := newTestSession(t)
		assert.NotEmpty(t, s.ID())
		assert.Equal(t, ai.DefaultInstruction, s.instruction)
		assert.Equal(t, search.DefaultTopK, s.retriever.TopK())
	})

	t.Run("with options", func(t *testing.T) {
		s, _ := newTestSession(t,
			WithSessionID("video-42"),
			WithChunkStore(memory.NewChunkStore()),
			WithInstruction("Answer briefly."),
			WithAskPoolSize(2),
			WithRetrieverOptions(search.WithTopK(5)),
			WithPipelineOptions(ingestion.WithPoolSize(3)),
			WithLogger(nil))
		assert.Equal(t, "video-42", s.ID())
		assert.Equal(t, "Answer briefly.", s.instruction)
		assert.Equal(t, 5, s.retriever.TopK())
		assert.Equal(t, 2, s.askPool.Cap())
	})

	t.Run("badger store", func(t *testing.T) {
		s, _ := newTestSession(t, WithBadgerStore())
		ingest(t, s, "stored in badger")

		status, err := s.Status(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, status.Chunks)
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := NewSession(nil)
		assert.Equal(t, ErrProviderRequired, err)
	})

	t.Run("invalid options", func(t *testing.T) {
		provider := mock.NewMockProvider()
		_, err := NewSession(provider, WithChunkStore(nil))
		assert.ErrorIs(t, err, ErrNilStore)
		_, err = NewSession(provider, WithAskPoolSize(0))
		assert.Error(t, err)
		_, err = NewSession(provider, WithSessionID("  "))
		assert.Error(t, err)
		_, err = NewSession(provider, WithRetrieverOptions(search.WithTopK(0)))
		assert.ErrorIs(t, err, search.ErrInvalidTopK)
	})
}

func TestSession_AskEmptyStore(t *testing.T) {
	s, provider := newTestSession(t)

	answer := s.Ask(context.Background(), "anything")

	assert.Equal(t, AnswerInfo, answer.Kind)
	assert.Equal(t, MessageNoTranscript, answer.Text)
	assert.NoError(t, answer.Err)
	assert.Equal(t, 0, provider.GetMockTranscriber().CallCount())
	assert.Equal(t, 0, provider.GetMockEmbedder().CallCount())
	assert.Equal(t, 0, provider.GetMockAnswerer().CallCount())
}

func TestSession_AskRanksByVector(t *testing.T) {
	s, provider := newTestSession(t)
	provider.GetMockEmbedder().SetEmbedTextFunc(vectorTable(map[string][]float32{
		"The sky is blue":            {1, 0},
		"Water boils at 100 degrees": {0, 1},
		"What color is it?":          {0.9, 0.1},
	}))

	ingest(t, s, "The sky is blue")
	ingest(t, s, "Water boils at 100 degrees")

	answer := s.Ask(context.Background(), "  What color is it?  ")

	require.NoError(t, answer.Err)
	assert.Equal(t, AnswerGenerated, answer.Kind)
	assert.Equal(t, "The sky is blue", answer.Text)
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "The sky is blue", answer.Sources[0].Text)
	assert.Greater(t, answer.Sources[0].Score, answer.Sources[1].Score)

	req, ok := provider.GetMockAnswerer().LastRequest()
	require.True(t, ok)
	assert.Equal(t, ai.DefaultInstruction, req.Instruction)
	assert.Equal(t, "The sky is blue\n\nWater boils at 100 degrees", req.Context)
	assert.Equal(t, "What color is it?", req.Question)
}

func TestSession_AskKeywordFallbackWithoutVectors(t *testing.T) {
	s, provider := newTestSession(t)
	embedder := provider.GetMockEmbedder()
	embedder.SetEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return nil, &ai.StatusError{Service: "embedding", StatusCode: 500}
	})

	ingest(t, s, "The dog runs fast")
	ingest(t, s, "Cats sleep all day")

	answer := s.Ask(context.Background(), "How fast does the dog go?")

	require.NoError(t, answer.Err)
	assert.Equal(t, AnswerGenerated, answer.Kind)
	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, "The dog runs fast", answer.Sources[0].Text)
	assert.Equal(t, 2, embedder.CallCount(), "question is not embedded when no chunk has a vector")
}

func TestSession_AskQuestionEmbeddingFailureDegrades(t *testing.T) {
	s, provider := newTestSession(t)
	embedder := provider.GetMockEmbedder()

	ingest(t, s, "The sky is blue")

	embedder.SetEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return nil, &ai.StatusError{Service: "embedding", StatusCode: 503}
	})
	answer := s.Ask(context.Background(), "Why is the sky blue?")

	require.NoError(t, answer.Err)
	assert.Equal(t, AnswerGenerated, answer.Kind)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "The sky is blue", answer.Sources[0].Text)
}

func TestSession_AskNoCredential(t *testing.T) {
	s, provider := newTestSession(t)
	ingest(t, s, "The sky is blue")

	provider.GetMockEmbedder().SetEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return nil, ai.ErrNoCredential
	})
	answer := s.Ask(context.Background(), "Why is the sky blue?")

	assert.Equal(t, AnswerError, answer.Kind)
	assert.Equal(t, MessageNoCredential, answer.Text)
	assert.ErrorIs(t, answer.Err, ai.ErrNoCredential)
	assert.Equal(t, 0, provider.GetMockAnswerer().CallCount())
}

func TestSession_AskWithoutCredentialChecksBeforeRetrieval(t *testing.T) {
	s, provider := newTestSession(t)
	provider.GetMockEmbedder().SetEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("embedding unavailable")
	})
	ingest(t, s, "The sky is blue")
	provider.SetHasCredential(false)

	answer := s.Ask(context.Background(), "Who won our match?")

	assert.Equal(t, AnswerError, answer.Kind)
	assert.Equal(t, MessageNoCredential, answer.Text)
	assert.ErrorIs(t, answer.Err, ai.ErrNoCredential)
	assert.Equal(t, 0, provider.GetMockAnswerer().CallCount())
}

func TestSession_AskNoRelevantContext(t *testing.T) {
	s, provider := newTestSession(t)
	provider.GetMockEmbedder().SetEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("embedding unavailable")
	})
	ingest(t, s, "The sky is blue")

	answer := s.Ask(context.Background(), "Who won our match?")

	assert.Equal(t, AnswerInfo, answer.Kind)
	assert.Equal(t, MessageNoContext, answer.Text)
	assert.Equal(t, 0, provider.GetMockAnswerer().CallCount())
}

func TestSession_AskAnswerFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{name: "status", err: &ai.StatusError{Service: "chat", StatusCode: 429}, message: "AI API error: 429"},
		{name: "no credential", err: ai.ErrNoCredential, message: MessageNoCredential},
		{name: "other", err: errors.New("connection refused"), message: "Error processing your question: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, provider := newTestSession(t)
			ingest(t, s, "The sky is blue")
			provider.GetMockAnswerer().SetAnswerFunc(func(ctx context.Context, req ai.AnswerRequest) (string, error) {
				return "", tt.err
			})

			answer := s.Ask(context.Background(), "What color is the sky?")

			assert.Equal(t, AnswerError, answer.Kind)
			assert.Equal(t, tt.message, answer.Text)
			assert.ErrorIs(t, answer.Err, core.ErrAnswerFailed)
			assert.ErrorIs(t, answer.Err, tt.err)
		})
	}
}

func TestSession_AskEmptyQuestion(t *testing.T) {
	s, provider := newTestSession(t)

	answer := s.Ask(context.Background(), "   ")

	assert.Equal(t, AnswerError, answer.Kind)
	assert.Equal(t, MessageEmptyQuestion, answer.Text)
	assert.ErrorIs(t, answer.Err, ErrEmptyQuestion)
	assert.Equal(t, 0, provider.GetMockAnswerer().CallCount())
}

func TestSession_Reset(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := context.Background()

	ingest(t, s, "first video")
	status, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Chunks)
	assert.Equal(t, uint64(0), status.Epoch)

	require.NoError(t, s.Reset(ctx))

	status, err = s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Chunks)
	assert.Equal(t, uint64(1), status.Epoch)
	assert.Equal(t, MessageNoTranscript, s.Ask(ctx, "what happened?").Text)

	res := ingest(t, s, "second video")
	assert.Equal(t, uint64(1), res.Seq)
}

func TestSession_ResetDiscardsLateTranscript(t *testing.T) {
	s, provider := newTestSession(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	provider.GetMockTranscriber().SetTranscribeFunc(func(ctx context.Context, audio []byte, format string) (string, error) {
		close(entered)
		<-release
		return string(audio), nil
	})

	ch := s.Ingest([]byte("from the old video"), "webm")
	<-entered
	require.NoError(t, s.Reset(context.Background()))
	close(release)

	res := <-ch
	assert.True(t, res.Discarded)

	status, err := s.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, status.Chunks)
}

func TestSession_Status(t *testing.T) {
	s, provider := newTestSession(t, WithSessionID("status-test"))
	embedder := provider.GetMockEmbedder()

	ingest(t, s, "embedded chunk")
	embedder.SetEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("down")
	})
	ingest(t, s, "plain chunk")

	status, err := s.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Status{SessionID: "status-test", Chunks: 2, Embedded: 1}, status)
}

func TestSession_AskAsync(t *testing.T) {
	s, _ := newTestSession(t)
	ingest(t, s, "The sky is blue")

	select {
	case answer, ok := <-s.AskAsync(context.Background(), "What color is the sky?"):
		require.True(t, ok)
		require.NoError(t, answer.Err)
		assert.Equal(t, "The sky is blue", answer.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for answer")
	}
}

func TestSession_Close(t *testing.T) {
	s, _ := newTestSession(t)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "Close is idempotent")

	answer := s.Ask(context.Background(), "hello?")
	assert.ErrorIs(t, answer.Err, ErrSessionClosed)

	answer = <-s.AskAsync(context.Background(), "hello?")
	assert.ErrorIs(t, answer.Err, ErrSessionClosed)

	assert.ErrorIs(t, s.Reset(context.Background()), ErrSessionClosed)
	_, err := s.Status(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)

	res := <-s.Ingest([]byte("late"), "webm")
	assert.ErrorIs(t, res.Err, ingestion.ErrPipelineClosed)
}

func TestAnswerKind_String(t *testing.T) {
	assert.Equal(t, "answer", AnswerGenerated.String())
	assert.Equal(t, "info", AnswerInfo.String())
	assert.Equal(t, "error", AnswerError.String())
	assert.Equal(t, "AnswerKind(9)", AnswerKind(9).String())
}

func TestSession_Backfill(t *testing.T) {
	s, provider := newTestSession(t, WithBackfillConfig(&reembed.Config{
		BatchSize: 2,
		Retry:     retry.Policy{MaxAttempts: 1},
	}))
	embedder := provider.GetMockEmbedder()
	ctx := context.Background()

	embedder.SetEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return nil, &ai.StatusError{Service: "embedding", StatusCode: 503}
	})
	ingest(t, s, "The sky is blue")
	ingest(t, s, "Water boils at 100 degrees")

	status, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Embedded)

	embedder.SetEmbedTextFunc(nil)
	res, err := s.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, reembed.Result{Candidates: 2, Embedded: 2}, res)

	status, err = s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Embedded)

	res, err = s.Backfill(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Candidates)

	_, err = NewSession(mock.NewMockProvider(), WithBackfillConfig(&reembed.Config{}))
	assert.ErrorIs(t, err, reembed.ErrInvalidBatchSize)

	require.NoError(t, s.Close())
	_, err = s.Backfill(ctx)
	assert.ErrorIs(t, err, ErrSessionClosed)
}
