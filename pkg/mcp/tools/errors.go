package tools

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

// Error codes returned in tool results.
const (
	CodeInvalidParameters = "invalid_parameters"
	CodeRetrievalFailed   = "retrieval_failed"
)

// ErrorResponse represents a structured error in tool results.
// Errors the caller can act on are returned as a tool result with IsError
// set, so the details reach the model instead of being swallowed by the
// client as a protocol error.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for recoverable errors such as bad parameters or an unavailable
// catalog. Programming errors should still return Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}
