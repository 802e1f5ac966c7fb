package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-estimator/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-estimator/pkg/models"
)

type fakeEstimateService struct {
	outcome *models.EstimateOutcome
	err     error

	calls       int
	lastNames   []string
	lastFilters models.CatalogFilters
}

func (f *fakeEstimateService) Estimate(_ context.Context, names []string, filters models.CatalogFilters) (*models.EstimateOutcome, error) {
	f.calls++
	f.lastNames = names
	f.lastFilters = filters
	return f.outcome, f.err
}

func (f *fakeEstimateService) InvalidateCache() {}

func newEstimateToolServer(svc *fakeEstimateService) *server.MCPServer {
	mcpServer := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterEstimateTool(mcpServer, svc, zap.NewNop())
	return mcpServer
}

func pumpOutcome() *models.EstimateOutcome {
	return &models.EstimateOutcome{
		Found: []models.MatchResult{{
			UserInput:       "Насос А-12",
			MatchedName:     "Насос А-12",
			MatchScore:      100,
			MatchKind:       models.MatchKindExact,
			Article:         "P-12",
			Cabinet:         "ШУ-1",
			Project:         "PRJ",
			QuantityPerUnit: 1,
			TimePerUnit:     40,
		}},
		NotFound:       []string{"неизвестная деталь"},
		TotalByCabinet: map[string]int{"ШУ-1": 40},
		TotalByProject: map[string]int{"PRJ": 40},
	}
}

func TestRegisterEstimateTool_Listed(t *testing.T) {
	mcpServer := newEstimateToolServer(&fakeEstimateService{})

	assert.Contains(t, listToolNames(t, mcpServer), EstimateToolName)
}

func TestEstimateTool_Success(t *testing.T) {
	svc := &fakeEstimateService{outcome: pumpOutcome()}
	mcpServer := newEstimateToolServer(svc)

	text, isError := callTool(t, mcpServer, EstimateToolName, map[string]any{
		"names":        []any{"Насос А-12", "неизвестная деталь"},
		"project_code": " PRJ ",
	})
	require.False(t, isError, text)

	assert.Equal(t, 1, svc.calls)
	assert.Equal(t, []string{"Насос А-12", "неизвестная деталь"}, svc.lastNames)
	assert.Equal(t, models.CatalogFilters{ProjectCode: "PRJ"}, svc.lastFilters)

	var result estimateToolResult
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	require.Len(t, result.Found, 1)
	assert.Equal(t, "P-12", result.Found[0].Article)
	assert.Equal(t, []string{"неизвестная деталь"}, result.NotFound)
	assert.Equal(t, map[string]int{"ШУ-1": 40}, result.TotalByCabinet)
	assert.Equal(t, 40, result.TotalMinutes)
}

func TestEstimateTool_InvalidNames(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{name: "missing names", args: map[string]any{}},
		{name: "empty names", args: map[string]any{"names": []any{}}},
		{name: "names not an array", args: map[string]any{"names": "Насос"}},
		{name: "non-string element", args: map[string]any{"names": []any{"Насос", 12}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeEstimateService{outcome: pumpOutcome()}
			mcpServer := newEstimateToolServer(svc)

			text, isError := callTool(t, mcpServer, EstimateToolName, tt.args)
			require.True(t, isError)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal([]byte(text), &resp))
			assert.Equal(t, CodeInvalidParameters, resp.Code)
			assert.Zero(t, svc.calls, "estimate must not run for invalid parameters")
		})
	}
}

func TestEstimateTool_RetrievalFailure(t *testing.T) {
	svc := &fakeEstimateService{err: fmt.Errorf("%w: connection refused", apperrors.ErrRetrieval)}
	mcpServer := newEstimateToolServer(svc)

	text, isError := callTool(t, mcpServer, EstimateToolName, map[string]any{"names": []any{"щиток"}})
	require.True(t, isError)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	assert.Equal(t, CodeRetrievalFailed, resp.Code)
	assert.NotContains(t, resp.Message, "connection refused")
}

func TestEstimateTool_InvalidInputFromService(t *testing.T) {
	svc := &fakeEstimateService{err: fmt.Errorf("%w: names must not be empty", apperrors.ErrInvalidInput)}
	mcpServer := newEstimateToolServer(svc)

	text, isError := callTool(t, mcpServer, EstimateToolName, map[string]any{"names": []any{"щиток"}})
	require.True(t, isError)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	assert.Equal(t, CodeInvalidParameters, resp.Code)
}

func TestEstimateTool_UnexpectedError(t *testing.T) {
	svc := &fakeEstimateService{err: errors.New("boom")}
	mcpServer := newEstimateToolServer(svc)

	request, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      EstimateToolName,
			"arguments": map[string]any{"names": []any{"щиток"}},
		},
	})
	require.NoError(t, err)

	result := mcpServer.HandleMessage(context.Background(), request)
	resultBytes, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(resultBytes), "boom")
}
