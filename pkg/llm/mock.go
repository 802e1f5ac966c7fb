package llm

import (
	"context"
	"sync"
)

// MockLLMClient is a configurable mock for testing LLM functionality.
// Set CompleteFunc to control behavior in tests.
type MockLLMClient struct {
	// CompleteFunc is called when Complete is invoked.
	// If nil, Complete returns Reply.
	CompleteFunc func(ctx context.Context, req Request) (*Result, error)

	// Reply is returned when CompleteFunc is nil. Defaults to "mock reply".
	Reply string

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string

	// Endpoint is returned by GetEndpoint. Defaults to "http://mock-endpoint".
	Endpoint string

	mu       sync.Mutex
	requests []Request
}

// NewMockLLMClient creates a new mock with sensible defaults.
func NewMockLLMClient() *MockLLMClient {
	return &MockLLMClient{
		Reply:    "mock reply",
		Model:    "mock-model",
		Endpoint: "http://mock-endpoint",
	}
}

var _ LLMClient = (*MockLLMClient)(nil)

// Complete implements LLMClient.
func (m *MockLLMClient) Complete(ctx context.Context, req Request) (*Result, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &Result{Content: m.Reply}, nil
}

// GetModel implements LLMClient.
func (m *MockLLMClient) GetModel() string {
	return m.Model
}

// GetEndpoint implements LLMClient.
func (m *MockLLMClient) GetEndpoint() string {
	return m.Endpoint
}

// Requests returns the requests received so far.
func (m *MockLLMClient) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Calls returns the number of Complete calls.
func (m *MockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
