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


// Package ai provides abstractions for the remote AI services a session depends on.
//
// The session treats speech-to-text, text embedding and answer generation as
// opaque request/response collaborators. This package defines their contracts
// so the chunk store, ingestion queue and retriever can be built and tested
// without any network access.
//
// # Interfaces
//
//   - Transcriber: converts an audio segment to text
//   - Embedder: generates vector embeddings from text
//   - Answerer: produces an answer from retrieved context and a question
//   - AIProvider: aggregates the three for convenient initialization
//
// # Implementation Packages
//
//   - ai/openai: production implementation (Whisper via go-openai,
//     embeddings and chat via langchaingo)
//   - ai/mock: test doubles for unit testing without external dependencies
//
// Public constructors in ai/openai return interface types. Mock constructors
// return concrete types so tests can inject behavior and read call counts.
//
// # Errors
//
// Every production call fails fast with ErrNoCredential when Config.APIKey is
// empty. Non-success HTTP responses surface as *StatusError.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	text, err := provider.Transcriber().Transcribe(ctx, audio, "webm")
//	vector, err := provider.Embedder().EmbedText(ctx, text)
package ai
