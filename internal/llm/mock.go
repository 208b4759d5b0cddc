package llm

import (
	"context"
	"sync"
)

// MockClient is a scripted Client for tests. Responses are chosen, in
// order of precedence, by the handler, the sequential responses, or the
// fixed response.
type MockClient struct {
	mu        sync.Mutex
	response  string
	responses []string
	next      int
	err       error
	handler   func(CompletionRequest) (string, error)

	// Calls records every request received.
	Calls []CompletionRequest
}

// NewMockClient creates a mock answering every call with response.
func NewMockClient(response string) *MockClient {
	return &MockClient{response: response}
}

// WithResponses cycles through responses, one per call.
func (m *MockClient) WithResponses(responses ...string) *MockClient {
	m.responses = responses
	return m
}

// WithError makes every call fail with err.
func (m *MockClient) WithError(err error) *MockClient {
	m.err = err
	return m
}

// WithHandler computes each response from the request.
func (m *MockClient) WithHandler(fn func(CompletionRequest) (string, error)) *MockClient {
	m.handler = fn
	return m
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}

	content, err := m.content(req)
	if err != nil {
		return nil, err
	}
	return &CompletionResponse{Content: content, FinishReason: "stop", Model: "mock"}, nil
}

func (m *MockClient) content(req CompletionRequest) (string, error) {
	if m.handler != nil {
		return m.handler(req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) > 0 {
		r := m.responses[m.next%len(m.responses)]
		m.next++
		return r, nil
	}
	return m.response, nil
}

// CallCount returns the number of calls received.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent request, or nil before any call.
func (m *MockClient) LastCall() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	last := m.Calls[len(m.Calls)-1]
	return &last
}

// Reset clears recorded calls and restarts the response cycle.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.next = 0
}
