package core

import (
	"testing"
	"time"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name     string
		content  []byte
		wantSame bool
	}{
		{
			name:     "same content produces same ID",
			content:  []byte("test audio"),
			wantSame: true,
		},
		{
			name:     "empty content",
			content:  []byte{},
			wantSame: true,
		},
		{
			name:     "binary content",
			content:  []byte{0x1a, 0x45, 0xdf, 0xa3, 0x00, 0xff},
			wantSame: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if tt.wantSame && id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent([]byte("segment1"))
	id2 := IDFromContent([]byte("segment2"))

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestNewSegment(t *testing.T) {
	audio := []byte("fake webm bytes")

	seg := NewSegment(audio, "")
	if seg.Format != DefaultAudioFormat {
		t.Errorf("NewSegment() format = %q, want %q", seg.Format, DefaultAudioFormat)
	}
	if seg.Id != IDFromContent(audio) {
		t.Errorf("NewSegment() id = %d, want content hash", seg.Id)
	}
	if seg.Epoch != 0 {
		t.Errorf("NewSegment() epoch = %d, want 0 before enqueue", seg.Epoch)
	}

	wav := NewSegment(audio, "wav")
	if wav.Format != "wav" {
		t.Errorf("NewSegment() format = %q, want wav", wav.Format)
	}
}

func TestTranscriptChunk_HasEmbedding(t *testing.T) {
	tests := []struct {
		name  string
		chunk TranscriptChunk
		want  bool
	}{
		{name: "nil embedding", chunk: TranscriptChunk{Text: "a"}, want: false},
		{name: "empty embedding", chunk: TranscriptChunk{Text: "a", Embedding: []float32{}}, want: false},
		{name: "with embedding", chunk: TranscriptChunk{Text: "a", Embedding: []float32{1, 0}}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.chunk.HasEmbedding(); got != tt.want {
				t.Errorf("HasEmbedding() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTranscriptChunk_Clone(t *testing.T) {
	original := TranscriptChunk{Seq: 1, Text: "hello", Embedding: []float32{1, 2}}
	clone := original.Clone()
	clone.Embedding[0] = 42

	if original.Embedding[0] != 1 {
		t.Errorf("Clone() shares embedding storage with original")
	}
}

func TestTranscriptChunkMUS(t *testing.T) {
	chunk := TranscriptChunk{
		Seq:       7,
		SegmentId: IDFromContent([]byte("seg")),
		Text:      "Water boils at 100 degrees",
		Embedding: []float32{0.25, -1.5, 0},
		CreatedAt: time.UnixMicro(1_700_000_000_123_456).UTC(),
	}

	buf := make([]byte, TranscriptChunkMUS.Size(chunk))
	n := TranscriptChunkMUS.Marshal(chunk, buf)
	if n != len(buf) {
		t.Fatalf("Marshal() wrote %d bytes, Size() reported %d", n, len(buf))
	}

	got, read, err := TranscriptChunkMUS.Unmarshal(buf)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if read != n {
		t.Errorf("Unmarshal() read %d bytes, want %d", read, n)
	}
	if got.Seq != chunk.Seq || got.SegmentId != chunk.SegmentId || got.Text != chunk.Text {
		t.Errorf("Unmarshal() = %+v, want %+v", got, chunk)
	}
	if !got.CreatedAt.Equal(chunk.CreatedAt) {
		t.Errorf("Unmarshal() CreatedAt = %v, want %v", got.CreatedAt, chunk.CreatedAt)
	}
	for i := range chunk.Embedding {
		if got.Embedding[i] != chunk.Embedding[i] {
			t.Errorf("Unmarshal() Embedding[%d] = %v, want %v", i, got.Embedding[i], chunk.Embedding[i])
		}
	}
}

func TestTranscriptChunkMUS_NoEmbedding(t *testing.T) {
	chunk := TranscriptChunk{Seq: 1, Text: "no vector", CreatedAt: time.Now().UTC()}

	buf := make([]byte, TranscriptChunkMUS.Size(chunk))
	TranscriptChunkMUS.Marshal(chunk, buf)

	got, _, err := TranscriptChunkMUS.Unmarshal(buf)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.HasEmbedding() {
		t.Errorf("Unmarshal() produced an embedding for a chunk without one")
	}
}

func TestID_String(t *testing.T) {
	if got := ID(0xabc).String(); got != "0000000000000abc" {
		t.Errorf("ID.String() = %q, want %q", got, "0000000000000abc")
	}
}
