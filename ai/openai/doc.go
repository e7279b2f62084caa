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


// Package openai provides AI service implementations using OpenAI-compatible APIs.
//
// Embeddings and answer generation go through the langchaingo library. Audio
// transcription uses the go-openai client because it supports multipart
// audio uploads. Any OpenAI-compatible service (Ollama, LocalAI, vLLM) can be
// targeted per service by setting the corresponding host.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    ai.WithEmbeddingHost("http://localhost:11434"), // /v1 added automatically
//	    ai.WithEmbeddingModel("nomic-embed-text"),
//	)
//
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	text, err := provider.Transcriber().Transcribe(ctx, audio, "webm")
//	answer, err := provider.Answerer().Answer(ctx, ai.AnswerRequest{
//	    Instruction: ai.DefaultInstruction,
//	    Context:     excerpts,
//	    Question:    "What is the speaker's name?",
//	})
package openai
