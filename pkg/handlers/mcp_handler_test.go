package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-estimator/pkg/mcp"
)

func newMCPMux(t *testing.T) *http.ServeMux {
	t.Helper()

	mcpServer := mcp.NewServer(mcp.ServerName, "test", zap.NewNop())
	mcpServer.RegisterTools("test", mcp.ToolDeps{
		Estimates:  &fakeEstimateService{outcome: cabinetOutcome()},
		LLMEnabled: false,
	})

	mux := http.NewServeMux()
	NewMCPHandler(mcpServer, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestMCPHandler_RejectsNonPOST(t *testing.T) {
	mux := newMCPMux(t)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(method, "/mcp", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		assert.Equal(t, "POST", rec.Header().Get("Allow"))
	}
}

func TestMCPHandler_ToolsCall(t *testing.T) {
	mux := newMCPMux(t)

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"estimate_assembly_time","arguments":{"names":["щиток"]}}}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "SH-1")
}
