package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/vidqa/ai"
	"github.com/poiesic/vidqa/ai/mock"
	"github.com/poiesic/vidqa/core"
	"github.com/poiesic/vidqa/retry"
	"github.com/poiesic/vidqa/storage"
	"github.com/poiesic/vidqa/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultTimeout = 5 * time.Second

type fixture struct {
	pipeline    *Pipeline
	store       storage.ChunkStore
	transcriber *mock.MockTranscriber
	embedder    *mock.MockEmbedder
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	provider := mock.NewMockProviderWithServices(mock.NewMockTranscriber(), mock.NewMockEmbedder(), mock.NewMockAnswerer())
	store := memory.NewChunkStore()

	p, err := NewPipeline(store, provider, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		p.Release()
		store.Close()
	})

	return &fixture{
		pipeline:    p,
		store:       store,
		transcriber: provider.GetMockTranscriber(),
		embedder:    provider.GetMockEmbedder(),
	}
}

func await(t *testing.T, ch <-chan IngestResult) IngestResult {
	t.Helper()
	select {
	case res, ok := <-ch:
		require.True(t, ok, "result channel closed without a result")
		return res
	case <-time.After(resultTimeout):
		t.Fatal("timed out waiting for ingest result")
		return IngestResult{}
	}
}

func storedTexts(t *testing.T, store storage.ChunkStore) []string {
	t.Helper()
	all, err := store.All(context.Background())
	require.NoError(t, err)
	out := make([]string, len(all))
	for i, c := range all {
		out[i] = c.Text
	}
	return out
}

func TestNewPipeline(t *testing.T) {
	provider := mock.NewMockProvider()
	store := memory.NewChunkStore()
	defer store.Close()

	t.Run("valid configuration", func(t *testing.T) {
		p, err := NewPipeline(store, provider)
		require.NoError(t, err)
		defer p.Release()
		assert.NotNil(t, p)
		assert.Equal(t, DefaultStepTimeout, p.stepTimeout)
	})

	t.Run("with options", func(t *testing.T) {
		p, err := NewPipeline(store, provider,
			WithPoolSize(1),
			WithLogger(slog.Default()),
			WithEmbeddingRetry(retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}))
		require.NoError(t, err)
		defer p.Release()
		assert.Equal(t, 2, p.pool.Cap())
		assert.NotNil(t, p.embedRetry.ShouldRetry)
	})

	t.Run("step timeout", func(t *testing.T) {
		p, err := NewPipeline(store, provider, WithStepTimeout(time.Second))
		require.NoError(t, err)
		defer p.Release()
		assert.Equal(t, time.Second, p.stepTimeout)

		_, err = NewPipeline(store, provider, WithStepTimeout(-time.Second))
		assert.Error(t, err)
	})

	t.Run("invalid retry policy", func(t *testing.T) {
		_, err := NewPipeline(store, provider, WithEmbeddingRetry(retry.Policy{}))
		assert.ErrorIs(t, err, retry.ErrInvalidMaxAttempts)
	})

	t.Run("nil store", func(t *testing.T) {
		_, err := NewPipeline(nil, provider)
		assert.Equal(t, ErrChunkStoreRequired, err)
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := NewPipeline(store, nil)
		assert.Equal(t, ErrAIProviderRequired, err)
	})
}

func TestPipeline_StoresChunkWithEmbedding(t *testing.T) {
	f := newFixture(t)

	res := await(t, f.pipeline.Submit(core.NewSegment([]byte("  The sky is blue  "), "webm")))

	require.NoError(t, res.Err)
	assert.True(t, res.OK())
	assert.True(t, res.Stored)
	assert.True(t, res.Embedded)
	assert.Equal(t, "The sky is blue", res.Text)
	assert.Equal(t, uint64(1), res.Seq)
	assert.Contains(t, res.Message, "Stored transcript chunk 1")

	embedded, err := f.store.WithEmbeddings(context.Background())
	require.NoError(t, err)
	require.Len(t, embedded, 1)
	assert.Equal(t, "The sky is blue", embedded[0].Text)
	assert.Equal(t, []string{"The sky is blue"}, f.embedder.Texts())
}

func TestPipeline_ProcessesSequentiallyInOrder(t *testing.T) {
	f := newFixture(t)
	f.transcriber.SetTranscribeFunc(func(ctx context.Context, audio []byte, format string) (string, error) {
		time.Sleep(20 * time.Millisecond)
		return string(audio), nil
	})

	inputs := []string{"first segment", "second segment", "third segment"}
	var results []<-chan IngestResult
	for _, in := range inputs {
		results = append(results, f.pipeline.Submit(core.NewSegment([]byte(in), "webm")))
	}

	for i, ch := range results {
		res := await(t, ch)
		require.NoError(t, res.Err)
		assert.Equal(t, uint64(i+1), res.Seq)
	}

	assert.Equal(t, inputs, storedTexts(t, f.store))
	assert.Equal(t, 3, f.transcriber.CallCount())
	assert.Equal(t, 1, f.transcriber.MaxConcurrent(), "never more than one transcription in flight")

	stats := f.pipeline.Stats()
	assert.False(t, stats.Busy)
	assert.Equal(t, 0, stats.Pending)
}

func TestPipeline_BlankTranscriptIsSkipped(t *testing.T) {
	f := newFixture(t)

	res := await(t, f.pipeline.Submit(core.NewSegment([]byte(" \n\t "), "webm")))

	require.NoError(t, res.Err)
	assert.False(t, res.Stored)
	assert.Empty(t, res.Text)
	assert.Equal(t, 0, f.embedder.CallCount(), "blank text is never embedded")

	empty, err := f.store.IsEmpty(context.Background())
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestPipeline_TranscriptionFailureAdvancesQueue(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{name: "status error", err: &ai.StatusError{Service: "transcription", StatusCode: 500}, message: "Transcription API error: 500"},
		{name: "no credential", err: ai.ErrNoCredential, message: "No API key available for transcription."},
		{name: "transport error", err: errors.New("connection reset"), message: "Transcription failed: connection reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.transcriber.SetTranscribeFunc(func(ctx context.Context, audio []byte, format string) (string, error) {
				if string(audio) == "bad" {
					return "", tt.err
				}
				return string(audio), nil
			})

			bad := f.pipeline.Submit(core.NewSegment([]byte("bad"), "webm"))
			good := f.pipeline.Submit(core.NewSegment([]byte("good"), "webm"))

			res := await(t, bad)
			require.Error(t, res.Err)
			assert.ErrorIs(t, res.Err, core.ErrTranscriptionFailed)
			assert.ErrorIs(t, res.Err, tt.err)
			assert.Equal(t, tt.message, res.Message)
			assert.False(t, res.Stored)

			res = await(t, good)
			require.NoError(t, res.Err)
			assert.True(t, res.Stored)
			assert.Equal(t, []string{"good"}, storedTexts(t, f.store))
		})
	}
}

func TestPipeline_EmbeddingFailureStoresWithoutVector(t *testing.T) {
	f := newFixture(t)
	f.embedder.SetEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return nil, &ai.StatusError{Service: "embedding", StatusCode: 500}
	})

	res := await(t, f.pipeline.Submit(core.NewSegment([]byte("Water boils at 100 degrees"), "webm")))

	require.NoError(t, res.Err)
	assert.True(t, res.Stored)
	assert.False(t, res.Embedded)
	assert.Contains(t, res.Message, "without embedding")
	assert.Equal(t, 1, f.embedder.CallCount(), "default policy makes a single attempt")

	all, err := f.store.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Nil(t, all[0].Embedding)
}

func TestPipeline_EmbeddingRetry(t *testing.T) {
	f := newFixture(t, WithEmbeddingRetry(retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}))

	var mu sync.Mutex
	calls := 0
	f.embedder.SetEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return nil, &ai.StatusError{Service: "embedding", StatusCode: 503}
		}
		return []float32{1, 0}, nil
	})

	res := await(t, f.pipeline.Submit(core.NewSegment([]byte("retry me"), "webm")))

	require.NoError(t, res.Err)
	assert.True(t, res.Embedded)
	assert.Equal(t, 2, f.embedder.CallCount())
}

func TestPipeline_EmbeddingRetrySkipsPermanentErrors(t *testing.T) {
	f := newFixture(t, WithEmbeddingRetry(retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}))
	f.embedder.SetEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return nil, ai.ErrNoCredential
	})

	res := await(t, f.pipeline.Submit(core.NewSegment([]byte("no key"), "webm")))

	require.NoError(t, res.Err)
	assert.True(t, res.Stored)
	assert.False(t, res.Embedded)
	assert.Equal(t, 1, f.embedder.CallCount())
}

func TestPipeline_ResetDiscardsInFlightAndPending(t *testing.T) {
	f := newFixture(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.transcriber.SetTranscribeFunc(func(ctx context.Context, audio []byte, format string) (string, error) {
		if string(audio) == "old" {
			close(entered)
			<-release
		}
		return string(audio), nil
	})

	inFlight := f.pipeline.Submit(core.NewSegment([]byte("old"), "webm"))
	queued := f.pipeline.Submit(core.NewSegment([]byte("queued"), "webm"))
	<-entered

	require.NoError(t, f.pipeline.Reset(context.Background()))

	res := await(t, queued)
	assert.True(t, res.Discarded)
	assert.ErrorIs(t, res.Err, ErrSuperseded)
	assert.Equal(t, uint64(0), res.Epoch)

	close(release)
	res = await(t, inFlight)
	assert.True(t, res.Discarded)
	assert.False(t, res.Stored)
	assert.False(t, res.OK())

	empty, err := f.store.IsEmpty(context.Background())
	require.NoError(t, err)
	assert.True(t, empty, "a result resolving after reset must not reach the new store")
	assert.Equal(t, 0, f.embedder.CallCount(), "stale text is not embedded")

	res = await(t, f.pipeline.Submit(core.NewSegment([]byte("new"), "webm")))
	require.NoError(t, res.Err)
	assert.Equal(t, uint64(1), res.Epoch)
	assert.Equal(t, uint64(1), res.Seq)
	assert.Equal(t, []string{"new"}, storedTexts(t, f.store))
}

func TestPipeline_ResetWhileNewEpochRuns(t *testing.T) {
	f := newFixture(t)

	oldEntered := make(chan struct{})
	releaseOld := make(chan struct{})
	f.transcriber.SetTranscribeFunc(func(ctx context.Context, audio []byte, format string) (string, error) {
		if string(audio) == "old" {
			close(oldEntered)
			<-releaseOld
		}
		return string(audio), nil
	})

	oldCh := f.pipeline.Submit(core.NewSegment([]byte("old"), "webm"))
	<-oldEntered
	require.NoError(t, f.pipeline.Reset(context.Background()))

	first := f.pipeline.Submit(core.NewSegment([]byte("fresh one"), "webm"))
	second := f.pipeline.Submit(core.NewSegment([]byte("fresh two"), "webm"))

	require.NoError(t, await(t, first).Err)
	require.NoError(t, await(t, second).Err)

	close(releaseOld)
	assert.True(t, await(t, oldCh).Discarded)

	assert.Equal(t, []string{"fresh one", "fresh two"}, storedTexts(t, f.store))
	assert.False(t, f.pipeline.Stats().Busy)
}

func TestPipeline_ResetCancelsInFlightCalls(t *testing.T) {
	f := newFixture(t)

	entered := make(chan struct{})
	f.transcriber.SetTranscribeFunc(func(ctx context.Context, audio []byte, format string) (string, error) {
		if string(audio) == "old" {
			close(entered)
			<-ctx.Done()
			return "", ctx.Err()
		}
		return string(audio), nil
	})

	oldCh := f.pipeline.Submit(core.NewSegment([]byte("old"), "webm"))
	<-entered
	require.NoError(t, f.pipeline.Reset(context.Background()))

	res := await(t, oldCh)
	assert.True(t, res.Discarded)
	assert.ErrorIs(t, res.Err, ErrSuperseded)

	res = await(t, f.pipeline.Submit(core.NewSegment([]byte("new"), "webm")))
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"new"}, storedTexts(t, f.store))
}

func TestPipeline_StepTimeoutFreesQueue(t *testing.T) {
	f := newFixture(t, WithStepTimeout(50*time.Millisecond))

	f.transcriber.SetTranscribeFunc(func(ctx context.Context, audio []byte, format string) (string, error) {
		if string(audio) == "stalled" {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return string(audio), nil
	})

	stalled := f.pipeline.Submit(core.NewSegment([]byte("stalled"), "webm"))
	next := f.pipeline.Submit(core.NewSegment([]byte("next"), "webm"))

	res := await(t, stalled)
	assert.False(t, res.Discarded)
	assert.ErrorIs(t, res.Err, core.ErrTranscriptionFailed)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)

	res = await(t, next)
	require.NoError(t, res.Err)
	assert.True(t, res.Stored)
	assert.Equal(t, []string{"next"}, storedTexts(t, f.store))
	assert.False(t, f.pipeline.Stats().Busy)
}

func TestPipeline_SubmitDoesNotWaitForBusyWorkers(t *testing.T) {
	f := newFixture(t)

	entered := make(chan struct{}, DefaultPoolSize)
	hang := make(chan struct{})
	f.transcriber.SetTranscribeFunc(func(ctx context.Context, audio []byte, format string) (string, error) {
		if strings.HasPrefix(string(audio), "stale") {
			entered <- struct{}{}
			<-hang
		}
		return string(audio), nil
	})

	var stale []<-chan IngestResult
	for i := 0; i < DefaultPoolSize; i++ {
		stale = append(stale, f.pipeline.Submit(core.NewSegment([]byte("stale "+string(rune('a'+i))), "webm")))
		<-entered
		require.NoError(t, f.pipeline.Reset(context.Background()))
	}

	submitted := make(chan (<-chan IngestResult), 1)
	go func() {
		submitted <- f.pipeline.Submit(core.NewSegment([]byte("fresh"), "webm"))
	}()

	var fresh <-chan IngestResult
	select {
	case fresh = <-submitted:
	case <-time.After(time.Second):
		close(hang)
		t.Fatal("Submit blocked while every worker was busy")
	}

	close(hang)
	for _, ch := range stale {
		assert.True(t, await(t, ch).Discarded)
	}
	res := await(t, fresh)
	require.NoError(t, res.Err)
	assert.Equal(t, uint64(DefaultPoolSize), res.Epoch)
	assert.Equal(t, []string{"fresh"}, storedTexts(t, f.store))
}

func TestPipeline_InvalidSegment(t *testing.T) {
	f := newFixture(t)

	res := await(t, f.pipeline.Submit(core.NewSegment(nil, "webm")))
	assert.ErrorIs(t, res.Err, core.ErrInvalidSegment)
	assert.Equal(t, 0, f.transcriber.CallCount())

	res = await(t, f.pipeline.Submit(nil))
	assert.ErrorIs(t, res.Err, core.ErrInvalidSegment)
}

func TestPipeline_SubmitAfterRelease(t *testing.T) {
	f := newFixture(t)
	f.pipeline.Release()

	res := await(t, f.pipeline.Submit(core.NewSegment([]byte("late"), "webm")))
	assert.ErrorIs(t, res.Err, ErrPipelineClosed)
	assert.Equal(t, 0, f.transcriber.CallCount())
}

func TestPipeline_Stats(t *testing.T) {
	f := newFixture(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.transcriber.SetTranscribeFunc(func(ctx context.Context, audio []byte, format string) (string, error) {
		once.Do(func() { close(entered) })
		<-release
		return string(audio), nil
	})

	a := f.pipeline.Submit(core.NewSegment([]byte("a"), "webm"))
	b := f.pipeline.Submit(core.NewSegment([]byte("b"), "webm"))
	<-entered

	stats := f.pipeline.Stats()
	assert.True(t, stats.Busy)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, uint64(0), stats.Epoch)

	close(release)
	await(t, a)
	await(t, b)
}

func TestPipeline_UnembeddedAndAttach(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	await(t, f.pipeline.Submit(core.NewSegment([]byte("with vector"), "webm")))
	f.embedder.SetEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("embedding down")
	})
	await(t, f.pipeline.Submit(core.NewSegment([]byte("without vector"), "webm")))

	epoch, missing, err := f.pipeline.Unembedded(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), epoch)
	require.Len(t, missing, 1)
	assert.Equal(t, "without vector", missing[0].Text)

	require.NoError(t, f.pipeline.AttachEmbedding(ctx, epoch, missing[0].Seq, []float32{1, 0}))
	err = f.pipeline.AttachEmbedding(ctx, epoch, 1, []float32{0, 1})
	assert.ErrorIs(t, err, storage.ErrEmbeddingPresent)
	_, missing, err = f.pipeline.Unembedded(ctx)
	require.NoError(t, err)
	assert.Empty(t, missing)

	require.NoError(t, f.pipeline.Reset(ctx))
	err = f.pipeline.AttachEmbedding(ctx, epoch, 1, []float32{1, 0})
	assert.ErrorIs(t, err, ErrSuperseded)

	f.pipeline.Release()
	_, _, err = f.pipeline.Unembedded(ctx)
	assert.ErrorIs(t, err, ErrPipelineClosed)
}
