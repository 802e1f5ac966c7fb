package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// callTool sends a tools/call request through the server and returns the
// text of the first content item together with the isError flag.
func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) (string, bool) {
	t.Helper()

	params := map[string]any{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	request, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  params,
	})
	require.NoError(t, err)

	result := s.HandleMessage(context.Background(), request)
	resultBytes, err := json.Marshal(result)
	require.NoError(t, err)

	var response struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resultBytes, &response))
	require.Nil(t, response.Error, "unexpected JSON-RPC error")
	require.NotEmpty(t, response.Result.Content)
	return response.Result.Content[0].Text, response.Result.IsError
}

func listToolNames(t *testing.T, s *server.MCPServer) []string {
	t.Helper()

	result := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`))
	resultBytes, err := json.Marshal(result)
	require.NoError(t, err)

	var response struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resultBytes, &response))

	names := make([]string, 0, len(response.Result.Tools))
	for _, tool := range response.Result.Tools {
		names = append(names, tool.Name)
	}
	return names
}

func TestRegisterHealthTool(t *testing.T) {
	mcpServer := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterHealthTool(mcpServer, "test-version", false)

	assert.Contains(t, listToolNames(t, mcpServer), "health")
}

func TestHealthTool_Execute(t *testing.T) {
	tests := []struct {
		name       string
		llmEnabled bool
		wantLLM    string
	}{
		{name: "llm enabled", llmEnabled: true, wantLLM: "enabled"},
		{name: "llm disabled", llmEnabled: false, wantLLM: "disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mcpServer := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
			RegisterHealthTool(mcpServer, "1.2.3", tt.llmEnabled)

			text, isError := callTool(t, mcpServer, "health", nil)
			require.False(t, isError)

			var health healthResult
			require.NoError(t, json.Unmarshal([]byte(text), &health))
			assert.Equal(t, "ok", health.Status)
			assert.Equal(t, "1.2.3", health.Version)
			assert.Equal(t, tt.wantLLM, health.LLM)
		})
	}
}
