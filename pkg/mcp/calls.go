package mcp

import (
	"context"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-estimator/pkg/logging"
)

// maxLoggedNames bounds how many names of a call are copied into the log.
const maxLoggedNames = 20

// CallLogger logs MCP tool calls with their duration and outcome.
type CallLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewCallLogger creates a CallLogger.
func NewCallLogger(logger *zap.Logger) *CallLogger {
	return &CallLogger{logger: logger.Named("calls")}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (c *CallLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(c.beforeCallTool)
	hooks.AddAfterCallTool(c.afterCallTool)
	hooks.AddOnError(c.onError)
	return hooks
}

func (c *CallLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	c.startTimes.Store(id, time.Now())
}

func (c *CallLogger) afterCallTool(_ context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	startTime := c.loadAndDeleteStart(id)

	fields := []zap.Field{
		zap.String("tool", req.Params.Name),
		zap.Duration("elapsed", time.Since(startTime)),
		zap.Any("arguments", summarizeArguments(req.Params.Arguments)),
	}
	if result != nil && result.IsError {
		c.logger.Info("MCP tool call returned an error result", fields...)
		return
	}
	c.logger.Info("MCP tool call", fields...)
}

func (c *CallLogger) onError(_ context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}

	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	startTime := c.loadAndDeleteStart(id)
	c.logger.Error("MCP tool call failed",
		zap.String("tool", req.Params.Name),
		zap.Duration("elapsed", time.Since(startTime)),
		zap.String("error", logging.SanitizeError(err)))
}

func (c *CallLogger) loadAndDeleteStart(id any) time.Time {
	if v, ok := c.startTimes.LoadAndDelete(id); ok {
		return v.(time.Time)
	}
	return time.Now()
}

// summarizeArguments keeps scalar arguments as they are and shortens long
// name lists so a large request does not flood the log.
func summarizeArguments(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	summary := make(map[string]any, len(params))
	for k, v := range params {
		list, ok := v.([]any)
		if !ok {
			summary[k] = v
			continue
		}
		if len(list) > maxLoggedNames {
			summary[k] = list[:maxLoggedNames]
			summary[k+"_count"] = len(list)
			continue
		}
		summary[k] = list
	}
	return summary
}
