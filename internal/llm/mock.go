package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MockClient is a Client for tests and local development. It replays a
// canned response in chunks and records every request it receives.
type MockClient struct {
	mu       sync.Mutex
	response string
	chunks   []string
	err      error
	requests []Request
}

// NewMockClient creates a mock that echoes a fixed OTHER classification.
func NewMockClient() *MockClient {
	return &MockClient{
		response: `{"expense":{"category":"OTHER","amount":0,"date":"01-Jan","details":"mock expense","participants":""}}`,
	}
}

// SetResponse sets the full content the mock returns, emitted as one chunk.
func (m *MockClient) SetResponse(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = content
	m.chunks = nil
}

// SetExpenseResponse marshals the given record into the response envelope.
func (m *MockClient) SetExpenseResponse(expense any) error {
	body, err := json.Marshal(map[string]any{"expense": expense})
	if err != nil {
		return fmt.Errorf("marshal mock expense: %w", err)
	}
	m.SetResponse(string(body))
	return nil
}

// SetChunks makes the mock stream the given chunks; their concatenation is
// the full content.
func (m *MockClient) SetChunks(chunks ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = chunks
	m.response = ""
	for _, c := range chunks {
		m.response += c
	}
}

// SetError makes every call fail with err.
func (m *MockClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Requests returns a copy of the recorded requests.
func (m *MockClient) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// StreamCompletion implements Client.
func (m *MockClient) StreamCompletion(ctx context.Context, req Request, emit func(chunk string)) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	err := m.err
	chunks := m.chunks
	response := m.response
	m.mu.Unlock()

	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if emit != nil {
		if len(chunks) > 0 {
			for _, c := range chunks {
				emit(c)
			}
		} else {
			emit(response)
		}
	}
	return response, nil
}
