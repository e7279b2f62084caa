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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidChunk indicates a TranscriptChunk failed validation.
	ErrInvalidChunk = errors.New("invalid transcript chunk")

	// ErrInvalidSegment indicates a Segment failed validation.
	ErrInvalidSegment = errors.New("invalid audio segment")

	// ErrEmptyText indicates the chunk text is empty or blank.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrEmptyAudio indicates a segment carries no audio bytes.
	ErrEmptyAudio = errors.New("audio cannot be empty")
)

// Collaborator failure errors
var (
	// ErrTranscriptionFailed wraps any failure of the transcription service.
	ErrTranscriptionFailed = errors.New("transcription failed")

	// ErrAnswerFailed wraps any failure of the answer-generation service.
	ErrAnswerFailed = errors.New("answer generation failed")
)
