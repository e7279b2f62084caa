package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/vidqa/ai"
)

// MockAnswerer is a test double for ai.Answerer.
type MockAnswerer struct {
	mu sync.Mutex

	// AnswerFunc is called by Answer if set.
	// If nil, the first excerpt of the context is returned.
	AnswerFunc func(ctx context.Context, req ai.AnswerRequest) (string, error)

	callCount int
	requests  []ai.AnswerRequest
}

// NewMockAnswerer creates a mock answerer with default echo behavior.
func NewMockAnswerer() *MockAnswerer {
	return &MockAnswerer{}
}

// SetAnswerFunc replaces the behavior while other goroutines may be calling.
func (m *MockAnswerer) SetAnswerFunc(fn func(ctx context.Context, req ai.AnswerRequest) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AnswerFunc = fn
}

// Answer records req and returns a scripted answer.
func (m *MockAnswerer) Answer(ctx context.Context, req ai.AnswerRequest) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.requests = append(m.requests, req)
	fn := m.AnswerFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	first, _, _ := strings.Cut(req.Context, "\n\n")
	return first, nil
}

// CallCount returns the number of times Answer was called.
func (m *MockAnswerer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastRequest returns the most recent request, or false if none was made.
func (m *MockAnswerer) LastRequest() (ai.AnswerRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return ai.AnswerRequest{}, false
	}
	return m.requests[len(m.requests)-1], true
}

// Reset clears the call history and custom function.
func (m *MockAnswerer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.requests = nil
	m.AnswerFunc = nil
}
