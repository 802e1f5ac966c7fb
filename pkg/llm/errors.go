package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrorType classifies LLM failures.
type ErrorType string

const (
	ErrorTypeEndpoint  ErrorType = "endpoint"   // Server unreachable or failing
	ErrorTypeAuth      ErrorType = "auth"       // Credentials rejected
	ErrorTypeModel     ErrorType = "model"      // Model not available on the server
	ErrorTypeRateLimit ErrorType = "rate_limit" // Throttled
	ErrorTypeEmpty     ErrorType = "empty"      // Model produced no content
	ErrorTypeCircuit   ErrorType = "circuit"    // Call refused by the circuit breaker
	ErrorTypeUnknown   ErrorType = "unknown"
)

// Error represents a structured LLM error with classification.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	Cause      error
	StatusCode int    // HTTP status code if applicable
	Model      string // Model name if known
	Endpoint   string // Endpoint URL if known
}

// Error implements the error interface.
func (e *Error) Error() string {
	parts := []string{string(e.Type)}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Model != "" {
		parts = append(parts, "model="+e.Model)
	}
	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements retry.RetryableError.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewError creates a new structured LLM error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// ClassifyError categorizes an error into a structured Error.
// HTTP status codes reported by the client take precedence over message text.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	// Caller gave up; retrying inside the same context cannot help.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrorTypeEndpoint, "request timeout", false, err)
	}

	if status := statusCode(err); status > 0 {
		classified := classifyStatus(status, err)
		classified.StatusCode = status
		return classified
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewError(ErrorTypeEndpoint, "connection failed", true, err)
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "connection refused"), strings.Contains(lower, "no such host"):
		return NewError(ErrorTypeEndpoint, "connection failed", true, err)
	case strings.Contains(lower, "timeout"):
		return NewError(ErrorTypeEndpoint, "request timeout", true, err)
	case strings.Contains(lower, "model") && strings.Contains(lower, "not found"):
		return NewError(ErrorTypeModel, "model not found", false, err)
	}

	return NewError(ErrorTypeUnknown, "llm error", false, err)
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func classifyStatus(status int, err error) *Error {
	lower := strings.ToLower(err.Error())
	switch {
	case status == 401 || status == 403:
		return NewError(ErrorTypeAuth, "authentication failed", false, err)
	case status == 404 && strings.Contains(lower, "model"):
		return NewError(ErrorTypeModel, "model not found", false, err)
	case status == 404:
		return NewError(ErrorTypeEndpoint, "endpoint not found", false, err)
	case status == 429:
		return NewError(ErrorTypeRateLimit, "rate limited", true, err)
	case status >= 500:
		return NewError(ErrorTypeEndpoint, "server error", true, err)
	default:
		return NewError(ErrorTypeUnknown, "request rejected", false, err)
	}
}

// IsRetryable returns true if err is a retryable LLM error.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// GetErrorType extracts the ErrorType from an error.
func GetErrorType(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}
