package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-estimator/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-estimator/pkg/models"
	"github.com/ekaya-inc/ekaya-estimator/pkg/services"
)

// EstimateToolName is the name under which the estimate tool is registered.
const EstimateToolName = "estimate_assembly_time"

// estimateToolResult is the JSON payload returned by the estimate tool.
type estimateToolResult struct {
	Found          []models.MatchResult `json:"found_items"`
	NotFound       []string             `json:"not_found_items"`
	TotalByCabinet map[string]int       `json:"total_time_by_cabinet"`
	TotalByProject map[string]int       `json:"total_time_by_project"`
	TotalMinutes   int                  `json:"total_minutes"`
}

// RegisterEstimateTool adds the estimate_assembly_time tool to the MCP server.
func RegisterEstimateTool(s *server.MCPServer, estimates services.EstimateService, logger *zap.Logger) {
	logger = logger.Named("mcp-estimate")

	tool := mcp.NewTool(
		EstimateToolName,
		mcp.WithDescription(
			"Estimate assembly time for a list of equipment names. "+
				"Each name is matched against the parts catalog (exact, then fuzzy with synonyms) "+
				"and the matched times are summed per cabinet and per project. "+
				"Names that could not be matched are returned in not_found_items.",
		),
		mcp.WithArray(
			"names",
			mcp.Required(),
			mcp.Description("Equipment names as written by the user, e.g. ['Насос А-12', 'щиток управления']"),
			mcp.WithStringItems(),
		),
		mcp.WithString(
			"project_code",
			mcp.Description("Optional - restrict matching to one project code"),
		),
		mcp.WithString(
			"cabinet_code",
			mcp.Description("Optional - restrict matching to one cabinet code"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		names, err := getStringArray(req, "names")
		if err != nil {
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		}
		if len(names) == 0 {
			return NewErrorResult(CodeInvalidParameters, "names must contain at least one item"), nil
		}

		filters := models.CatalogFilters{
			ProjectCode: getOptionalString(req, "project_code"),
			CabinetCode: getOptionalString(req, "cabinet_code"),
		}

		outcome, err := estimates.Estimate(ctx, names, filters)
		switch {
		case errors.Is(err, apperrors.ErrInvalidInput):
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		case errors.Is(err, apperrors.ErrRetrieval):
			logger.Warn("Estimate tool could not reach the catalog", zap.Error(err))
			return NewErrorResultWithDetails(CodeRetrievalFailed,
				"catalog is temporarily unavailable, retry later",
				map[string]any{"inputs": len(names)}), nil
		case err != nil:
			return nil, fmt.Errorf("estimate: %w", err)
		}

		payload, err := json.Marshal(estimateToolResult{
			Found:          outcome.Found,
			NotFound:       outcome.NotFound,
			TotalByCabinet: outcome.TotalByCabinet,
			TotalByProject: outcome.TotalByProject,
			TotalMinutes:   outcome.TotalMinutes(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal estimate result: %w", err)
		}
		return mcp.NewToolResultText(string(payload)), nil
	})
}
