package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-estimator/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-estimator/pkg/services"
)

// ServerName is the name reported to MCP clients.
const ServerName = "ekaya-estimator"

// Server wraps the mcp-go MCPServer with the estimator tools.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// ToolDeps holds the services the MCP tools call into.
type ToolDeps struct {
	Estimates  services.EstimateService
	LLMEnabled bool
}

// NewServer creates a new MCP server instance. Tool calls are logged through
// a CallLogger attached as server hooks.
func NewServer(name, version string, logger *zap.Logger) *Server {
	logger = logger.Named("mcp")
	calls := NewCallLogger(logger)

	mcpServer := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithHooks(calls.Hooks()),
	)

	return &Server{
		mcp:    mcpServer,
		logger: logger,
	}
}

// RegisterTools registers the health and estimate tools.
func (s *Server) RegisterTools(version string, deps ToolDeps) {
	tools.RegisterHealthTool(s.mcp, version, deps.LLMEnabled)
	tools.RegisterEstimateTool(s.mcp, deps.Estimates, s.logger)
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// RegisterTool is a convenience wrapper for registering a tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}
