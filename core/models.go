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

import (
	"encoding/binary"
	"fmt"
	"slices"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Segment IDs are content hashes; chunk sequence numbers are assigned by the store.
type ID uint64

// IDFromContent generates a deterministic ID from raw content using BLAKE2b hashing.
// This ensures that identical audio produces identical segment IDs.
func IDFromContent(data []byte) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write(data)
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// String formats the ID as 16 hex digits.
func (id ID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// DefaultAudioFormat is the container format captured by the recorder.
const DefaultAudioFormat = "webm"

// Segment is one captured piece of audio waiting to be transcribed.
type Segment struct {
	Id         ID
	Audio      []byte
	Format     string    // Container format, e.g. "webm", "wav"
	CapturedAt time.Time // When the segment was handed to the session
	Epoch      uint64    // Session epoch at enqueue time (set by the ingestion queue)
}

// NewSegment builds a Segment for raw audio, fingerprinting it by content.
func NewSegment(audio []byte, format string) *Segment {
	if format == "" {
		format = DefaultAudioFormat
	}
	return &Segment{
		Id:         IDFromContent(audio),
		Audio:      audio,
		Format:     format,
		CapturedAt: time.Now().UTC(),
	}
}

// TranscriptChunk is one transcribed segment with an optional embedding.
// Once appended to a store a chunk is never modified.
type TranscriptChunk struct {
	Seq       uint64    // Arrival position in the store, starting at 1 (set by the store)
	SegmentId ID        // Segment the text was transcribed from
	Text      string    // Transcribed text, never blank once stored
	Embedding []float32 // Semantic vector; nil when embedding failed or was skipped
	CreatedAt time.Time // When the chunk was appended (set by the store)
}

// HasEmbedding reports whether the chunk carries a semantic vector.
func (c *TranscriptChunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// Clone returns a deep copy so callers never share the stored vector.
func (c TranscriptChunk) Clone() TranscriptChunk {
	c.Embedding = slices.Clone(c.Embedding)
	return c
}

// ScoredChunk is a retrieval result. Score is cosine similarity in vector
// mode and a keyword overlap ratio in keyword mode; the two are not comparable.
type ScoredChunk struct {
	Seq   uint64
	Text  string
	Score float64
}
