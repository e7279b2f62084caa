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
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/vidqa/ai"
	gogpt "github.com/sashabaranov/go-openai"
)

// Transcriber implements ai.Transcriber using an OpenAI-compatible
// audio transcription endpoint.
type Transcriber struct {
	client        *gogpt.Client
	model         string
	timeout       time.Duration
	hasCredential bool
	logger        *slog.Logger
}

// newTranscriber is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newTranscriber(config *ai.Config) (*Transcriber, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	clientConfig := gogpt.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = config.TranscriptionHost

	return &Transcriber{
		client:        gogpt.NewClientWithConfig(clientConfig),
		model:         config.TranscriptionModel,
		timeout:       config.RequestTimeout,
		hasCredential: config.HasCredential(),
		logger:        slog.Default().With("component", "openai-transcriber"),
	}, nil
}

// NewTranscriber creates a new transcriber using the provided configuration.
//
// Returns ai.Transcriber interface to enforce abstraction.
func NewTranscriber(config *ai.Config) (ai.Transcriber, error) {
	return newTranscriber(config)
}

// Transcribe uploads one audio segment as a multipart form and returns the
// recognized text untrimmed.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	if !t.hasCredential {
		return "", ai.ErrNoCredential
	}
	t.logger.Debug("transcribing segment", "bytes", len(audio), "format", format)

	ctx, cancel := withDeadline(ctx, t.timeout)
	defer cancel()

	resp, err := t.client.CreateTranscription(ctx, gogpt.AudioRequest{
		Model:    t.model,
		FilePath: audioFileName(format),
		Reader:   bytes.NewReader(audio),
		Format:   gogpt.AudioResponseFormatJSON,
	})
	if err != nil {
		t.logger.Error("transcription failed", "err", err)
		return "", transcriptionError(err)
	}
	return resp.Text, nil
}

func transcriptionError(err error) error {
	var apiErr *gogpt.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &ai.StatusError{Service: "transcription", StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
	}
	var reqErr *gogpt.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &ai.StatusError{Service: "transcription", StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return err
}
