package mock

import (
	"context"
	"sync"
)

// MockTranscriber is a test double for ai.Transcriber.
// By default the audio bytes are returned as the transcript, which lets tests
// script transcripts by choosing segment contents.
type MockTranscriber struct {
	mu sync.Mutex

	// TranscribeFunc is called by Transcribe if set.
	TranscribeFunc func(ctx context.Context, audio []byte, format string) (string, error)

	callCount int
	active    int
	maxActive int
}

// NewMockTranscriber creates a mock transcriber with default echo behavior.
func NewMockTranscriber() *MockTranscriber {
	return &MockTranscriber{}
}

// SetTranscribeFunc replaces the behavior while other goroutines may be calling.
func (m *MockTranscriber) SetTranscribeFunc(fn func(ctx context.Context, audio []byte, format string) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TranscribeFunc = fn
}

// Transcribe returns the scripted transcript for audio.
func (m *MockTranscriber) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.active++
	if m.active > m.maxActive {
		m.maxActive = m.active
	}
	fn := m.TranscribeFunc
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active--
		m.mu.Unlock()
	}()

	if fn != nil {
		return fn(ctx, audio, format)
	}
	return string(audio), nil
}

// CallCount returns the number of times Transcribe was called.
func (m *MockTranscriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// MaxConcurrent returns the highest number of Transcribe calls observed in flight at once.
func (m *MockTranscriber) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxActive
}

// Reset clears the counters and custom function.
func (m *MockTranscriber) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.maxActive = 0
	m.TranscribeFunc = nil
}
