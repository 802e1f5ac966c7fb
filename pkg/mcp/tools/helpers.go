package tools

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// getOptionalString extracts an optional string argument from the request.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return ""
	}
	val, ok := args[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(val)
}

// getStringArray extracts a required array of strings. Every element must be
// a string; blank elements are kept so input order and counts are preserved.
func getStringArray(req mcp.CallToolRequest, key string) ([]string, error) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("missing required parameter %q", key)
	}
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, fmt.Errorf("missing required parameter %q", key)
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("parameter %q must be an array of strings", key)
	}

	values := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s[%d] must be a string", key, i)
		}
		values = append(values, s)
	}
	return values, nil
}
