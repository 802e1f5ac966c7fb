// Package llm provides the OpenAI-compatible client used for estimate
// reports and chat replies, typically against a local Ollama server.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Client provides access to an OpenAI-compatible chat completion endpoint.
type Client struct {
	client   *openai.Client
	endpoint string
	model    string
	timeout  time.Duration
	logger   *zap.Logger
}

// Config holds configuration for creating an LLM client.
type Config struct {
	Endpoint string        // API root, e.g. "http://localhost:11434/v1"
	Model    string        // Model name, e.g. "qwen2.5:3b"
	APIKey   string        // Optional for local endpoints
	Timeout  time.Duration // Per-request timeout, zero for none
}

// NewClient creates a new OpenAI-compatible LLM client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")

	return &Client{
		client:   openai.NewClientWithConfig(clientConfig),
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		logger:   logger.Named("llm"),
	}, nil
}

var _ LLMClient = (*Client)(nil)

// Complete sends the conversation and returns the first choice.
// An empty reply is reported as an ErrorTypeEmpty error.
func (c *Client) Complete(ctx context.Context, req Request) (*Result, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("messages", len(messages)),
		zap.Float64("temperature", req.Temperature))

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		classified := ClassifyError(err)
		classified.Model = c.model
		classified.Endpoint = c.endpoint
		return nil, classified
	}

	if len(resp.Choices) == 0 {
		return nil, NewError(ErrorTypeEmpty, "no choices in response", false, nil)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, NewError(ErrorTypeEmpty, "empty response", false, nil)
	}

	c.logger.Info("LLM request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &Result{
		Content:          content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// GenerateResponse sends a single user prompt with a system message.
func (c *Client) GenerateResponse(ctx context.Context, prompt, systemMessage string, temperature float64) (*Result, error) {
	return c.Complete(ctx, Request{
		System:      systemMessage,
		Messages:    []Message{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: temperature,
	})
}

// GetModel returns the configured model name.
func (c *Client) GetModel() string {
	return c.model
}

// GetEndpoint returns the configured endpoint.
func (c *Client) GetEndpoint() string {
	return c.endpoint
}

// String describes the client for logs.
func (c *Client) String() string {
	return fmt.Sprintf("llm(%s @ %s)", c.model, c.endpoint)
}
