package ingestion

import (
	"errors"
	"fmt"

	"github.com/poiesic/vidqa/ai"
	"github.com/poiesic/vidqa/core"
)

// IngestResult reports the outcome of one submitted segment.
type IngestResult struct {
	SegmentID core.ID
	Epoch     uint64 // Epoch the segment was submitted in
	Text      string // Trimmed transcript; empty when transcription failed or was blank
	Seq       uint64 // Chunk sequence number when Stored
	Stored    bool   // A chunk was appended
	Embedded  bool   // The stored chunk carries a vector
	Discarded bool   // A reset happened before the segment finished
	Err       error
	Message   string // Human-readable summary suitable for display

	embedding []float32
}

// OK reports whether the segment was processed without error.
// Blank transcripts and stored chunks are both OK.
func (r IngestResult) OK() bool {
	return r.Err == nil && !r.Discarded
}

func transcriptionMessage(err error) string {
	if errors.Is(err, ai.ErrNoCredential) {
		return "No API key available for transcription."
	}
	if code, ok := ai.StatusCode(err); ok {
		return fmt.Sprintf("Transcription API error: %d", code)
	}
	return "Transcription failed: " + err.Error()
}

func storedMessage(r IngestResult) string {
	if r.Embedded {
		return fmt.Sprintf("Stored transcript chunk %d: %q", r.Seq, preview(r.Text))
	}
	return fmt.Sprintf("Stored transcript chunk %d without embedding: %q", r.Seq, preview(r.Text))
}

// preview shortens text for log and status lines.
func preview(text string) string {
	const max = 50
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
