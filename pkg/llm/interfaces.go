package llm

import "context"

// Message is one turn of a conversation. Role is "system", "user" or "assistant".
type Message struct {
	Role    string
	Content string
}

// Request is a chat completion request. System, when set, is sent first.
type Request struct {
	System      string
	Messages    []Message
	Temperature float64
}

// Result is a completed reply with usage stats.
type Result struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// LLMClient defines the interface for chat completion.
// Use this interface for dependency injection to enable mocking in tests.
type LLMClient interface {
	// Complete returns the model's reply to the conversation.
	Complete(ctx context.Context, req Request) (*Result, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}
