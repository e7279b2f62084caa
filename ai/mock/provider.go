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


package mock

import "github.com/poiesic/vidqa/ai"

// MockProvider is a test double for ai.AIProvider.
// It aggregates mock transcriber, embedder and answerer instances.
type MockProvider struct {
	transcriber *MockTranscriber
	embedder    *MockEmbedder
	answerer    *MockAnswerer

	noCredential bool
}

// NewMockProvider creates a new mock provider with default mock services.
//
// Returns ai.AIProvider interface for consistency with production constructors.
// Use the GetMock accessors to reach concrete types for test assertions.
func NewMockProvider() ai.AIProvider {
	return &MockProvider{
		transcriber: NewMockTranscriber(),
		embedder:    NewMockEmbedder(),
		answerer:    NewMockAnswerer(),
	}
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
// This allows full control over the behavior of each service.
func NewMockProviderWithServices(transcriber *MockTranscriber, embedder *MockEmbedder, answerer *MockAnswerer) *MockProvider {
	return &MockProvider{
		transcriber: transcriber,
		embedder:    embedder,
		answerer:    answerer,
	}
}

// Transcriber returns the mock transcriber.
func (p *MockProvider) Transcriber() ai.Transcriber {
	return p.transcriber
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// Answerer returns the mock answerer.
func (p *MockProvider) Answerer() ai.Answerer {
	return p.answerer
}

// HasCredential reports true unless SetHasCredential(false) was called.
func (p *MockProvider) HasCredential() bool {
	return !p.noCredential
}

// SetHasCredential controls what HasCredential reports. Call it before the
// provider is shared.
func (p *MockProvider) SetHasCredential(ok bool) {
	p.noCredential = !ok
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockTranscriber returns the underlying mock transcriber for test assertions.
func (p *MockProvider) GetMockTranscriber() *MockTranscriber {
	return p.transcriber
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
// This allows tests to check call counts and inject custom behavior.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockAnswerer returns the underlying mock answerer for test assertions.
func (p *MockProvider) GetMockAnswerer() *MockAnswerer {
	return p.answerer
}
