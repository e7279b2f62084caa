// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Transcriber, ai.Embedder,
// ai.Answerer and ai.AIProvider for use in unit tests. The mocks allow tests
// to run without external AI service dependencies and enable controlled,
// deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockProvider := mock.NewMockProvider()
//	text, err := mockProvider.Transcriber().Transcribe(ctx, []byte("hello world"), "webm")
//
//	// Custom behavior injection
//	mockEmbedder := mock.NewMockEmbedder()
//	mockEmbedder.SetEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
//	    return []float32{0.1, 0.2, 0.3}, nil
//	})
//
//	// Check call counts
//	count := mockEmbedder.CallCount()
//
// # Default Behavior
//
// The mock implementations provide sensible defaults:
//
//   - MockTranscriber: Returns the audio bytes interpreted as UTF-8 text
//   - MockEmbedder: Returns deterministic vectors based on text hash
//   - MockAnswerer: Echoes the first line of the supplied context
//   - MockProvider: Aggregates the three
//
// All mocks are safe for concurrent use; the ingestion pipeline calls them
// from worker goroutines.
package mock
