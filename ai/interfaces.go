package ai

import "context"

// Transcriber converts recorded audio into text.
// Implementations must be thread-safe for concurrent use.
type Transcriber interface {
	// Transcribe sends one audio segment in the given container format
	// (e.g. "webm") and returns the recognized text.
	// A blank result is a valid outcome, not an error.
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
}

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// AnswerRequest is the input to answer generation.
type AnswerRequest struct {
	// Instruction is the system instruction constraining the answer.
	Instruction string

	// Context holds the retrieved transcript excerpts, most relevant first,
	// separated by blank lines.
	Context string

	// Question is the user's question, verbatim.
	Question string
}

// Answerer generates a free-text answer grounded in supplied context.
// Implementations must be thread-safe for concurrent use.
type Answerer interface {
	Answer(ctx context.Context, req AnswerRequest) (string, error)
}

// CredentialReporter is implemented by providers that can tell, without a
// remote call, whether requests will carry a credential.
type CredentialReporter interface {
	HasCredential() bool
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Transcriber returns the speech-to-text service.
	Transcriber() Transcriber

	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Answerer returns the answer-generation service.
	Answerer() Answerer

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
