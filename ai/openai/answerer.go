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
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/vidqa/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Answerer implements ai.Answerer using OpenAI-compatible chat APIs.
type Answerer struct {
	client        llms.Model
	maxTokens     int
	temperature   float64
	timeout       time.Duration
	hasCredential bool
	logger        *slog.Logger
}

// newAnswerer is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newAnswerer(config *ai.Config) (*Answerer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(clientToken(config)),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, err
	}

	return &Answerer{
		client:        client,
		maxTokens:     config.MaxTokens,
		temperature:   config.Temperature,
		timeout:       config.RequestTimeout,
		hasCredential: config.HasCredential(),
		logger:        slog.Default().With("component", "openai-answerer"),
	}, nil
}

// NewAnswerer creates a new answerer using the provided configuration.
//
// Returns ai.Answerer interface to enforce abstraction.
func NewAnswerer(config *ai.Config) (ai.Answerer, error) {
	return newAnswerer(config)
}

// Answer sends the instruction, the retrieved excerpts and the question as a
// two-message chat and returns the first choice's content.
func (a *Answerer) Answer(ctx context.Context, req ai.AnswerRequest) (string, error) {
	if !a.hasCredential {
		return "", ai.ErrNoCredential
	}

	instruction := req.Instruction
	if instruction == "" {
		instruction = ai.DefaultInstruction
	}
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(instruction),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(buildUserPrompt(req.Context, req.Question)),
			},
		},
	}

	ctx, cancel := withDeadline(ctx, a.timeout)
	defer cancel()

	a.logger.Debug("requesting answer", "context_length", len(req.Context), "question_length", len(req.Question))
	response, err := a.client.GenerateContent(ctx, content,
		llms.WithTemperature(a.temperature),
		llms.WithMaxTokens(a.maxTokens))
	if err != nil {
		a.logger.Error("failed to generate answer", "err", err)
		return "", wrapServiceError("chat", err)
	}

	if len(response.Choices) < 1 {
		a.logger.Warn("no choices returned from model")
		return "", fmt.Errorf("chat: %w", ai.ErrEmptyResponse)
	}

	return response.Choices[0].Content, nil
}
