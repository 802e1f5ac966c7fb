package mcp

import (
	"context"
	"errors"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func toolRequest(name string, args map[string]any) *mcplib.CallToolRequest {
	req := &mcplib.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func TestCallLogger_ErrorResult(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := NewCallLogger(zap.New(core))

	ctx := context.Background()
	req := toolRequest("estimate_assembly_time", map[string]any{"names": []any{}})
	c.beforeCallTool(ctx, 1, req)
	c.afterCallTool(ctx, 1, req, &mcplib.CallToolResult{IsError: true})

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "MCP tool call returned an error result", logs.All()[0].Message)

	_, pending := c.startTimes.Load(1)
	assert.False(t, pending, "start time must be released after the call")
}

func TestCallLogger_OnErrorSanitizes(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := NewCallLogger(zap.New(core))

	req := toolRequest("estimate_assembly_time", nil)
	c.onError(context.Background(), 2, mcplib.MethodToolsCall, req,
		errors.New("dial postgres://app:hunter2@db/catalog failed"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.NotContains(t, entry.ContextMap()["error"], "hunter2")
}

func TestCallLogger_OnErrorIgnoresOtherMethods(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := NewCallLogger(zap.New(core))

	c.onError(context.Background(), 3, mcplib.MethodToolsList, nil, errors.New("x"))
	assert.Zero(t, logs.Len())
}

func TestSummarizeArguments(t *testing.T) {
	assert.Nil(t, summarizeArguments(nil))
	assert.Nil(t, summarizeArguments("not a map"))

	names := make([]any, maxLoggedNames+5)
	for i := range names {
		names[i] = "n"
	}
	summary := summarizeArguments(map[string]any{"names": names, "project_code": "PRJ"})

	assert.Len(t, summary["names"], maxLoggedNames)
	assert.Equal(t, maxLoggedNames+5, summary["names_count"])
	assert.Equal(t, "PRJ", summary["project_code"])

	short := summarizeArguments(map[string]any{"names": []any{"a"}})
	assert.Equal(t, []any{"a"}, short["names"])
	assert.NotContains(t, short, "names_count")
}
