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


package openai

import (
	"log/slog"

	"github.com/poiesic/vidqa/ai"
)

// Provider implements ai.AIProvider using OpenAI-compatible services.
// It manages transcriber, embedder and answerer instances.
type Provider struct {
	config      *ai.Config
	transcriber *Transcriber
	embedder    *Embedder
	answerer    *Answerer
	logger      *slog.Logger
}

// NewProvider creates a new AI provider with OpenAI-compatible services.
// The config is validated and normalized before use.
//
// A config without an API key is accepted. The provider is still usable and
// every call reports ai.ErrNoCredential.
//
// Returns ai.AIProvider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	transcriber, err := newTranscriber(config)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	answerer, err := newAnswerer(config)
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "openai-provider")
	if !config.HasCredential() {
		logger.Warn("no API key configured; transcription, embedding and answers will fail")
	}

	return &Provider{
		config:      config,
		transcriber: transcriber,
		embedder:    embedder,
		answerer:    answerer,
		logger:      logger,
	}, nil
}

// Transcriber returns the speech-to-text service.
func (p *Provider) Transcriber() ai.Transcriber {
	return p.transcriber
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Answerer returns the answer-generation service.
func (p *Provider) Answerer() ai.Answerer {
	return p.answerer
}

// HasCredential reports whether an API key is configured.
func (p *Provider) HasCredential() bool {
	return p.config.HasCredential()
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
