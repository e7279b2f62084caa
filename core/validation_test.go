package core

import (
	"errors"
	"testing"
)

func TestValidateChunk(t *testing.T) {
	tests := []struct {
		name    string
		chunk   *TranscriptChunk
		wantErr error
	}{
		{
			name:    "valid chunk",
			chunk:   &TranscriptChunk{Text: "The sky is blue"},
			wantErr: nil,
		},
		{
			name:    "valid chunk without embedding",
			chunk:   &TranscriptChunk{Text: "The sky is blue", Embedding: nil},
			wantErr: nil,
		},
		{
			name:    "nil chunk",
			chunk:   nil,
			wantErr: ErrInvalidChunk,
		},
		{
			name:    "empty text",
			chunk:   &TranscriptChunk{Text: ""},
			wantErr: ErrEmptyText,
		},
		{
			name:    "whitespace text",
			chunk:   &TranscriptChunk{Text: " \n\t "},
			wantErr: ErrEmptyText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChunk(tt.chunk)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateChunk() error = %v, want nil", err)
				}
				return
			}

			if err == nil {
				t.Errorf("ValidateChunk() error = nil, want %v", tt.wantErr)
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateChunk() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSegment(t *testing.T) {
	tests := []struct {
		name    string
		segment *Segment
		wantErr error
	}{
		{
			name:    "valid segment",
			segment: NewSegment([]byte{1, 2, 3}, "webm"),
			wantErr: nil,
		},
		{
			name:    "nil segment",
			segment: nil,
			wantErr: ErrInvalidSegment,
		},
		{
			name:    "empty audio",
			segment: NewSegment(nil, "webm"),
			wantErr: ErrEmptyAudio,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSegment(tt.segment)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateSegment() error = %v, want nil", err)
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateSegment() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsBlank(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", true},
		{"   ", true},
		{"\n\t", true},
		{"a", false},
		{"  hello  ", false},
	}

	for _, tt := range tests {
		if got := IsBlank(tt.text); got != tt.want {
			t.Errorf("IsBlank(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
