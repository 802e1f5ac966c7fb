package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-estimator/pkg/models"
)

func newChatMux(chat *fakeChatService) *http.ServeMux {
	mux := http.NewServeMux()
	NewChatHandler(chat, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestChatHandler_Defaults(t *testing.T) {
	chat := &fakeChatService{resp: &models.ChatResponse{Reply: "Привет"}}
	mux := newChatMux(chat)

	rec := postJSON(mux, "/v1/chat", `{"message":"Сколько времени займет сборка?"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, models.ChatModeAuto, chat.lastReq.Mode)
	assert.True(t, chat.lastReq.UseLLM)

	var resp models.ChatResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Привет", resp.Reply)
	assert.Nil(t, resp.Data)
}

func TestChatHandler_PassesFieldsThrough(t *testing.T) {
	chat := &fakeChatService{resp: &models.ChatResponse{Reply: "ok", Data: models.NewEstimateResponse(cabinetOutcome())}}
	mux := newChatMux(chat)

	body := `{
		"message": "посчитай",
		"names": ["щиток"],
		"history": [{"role":"user","content":"привет"},{"role":"assistant","content":"здравствуйте"}],
		"cabinet_code": "ШУ-1",
		"mode": "estimate",
		"use_llm": false
	}`
	rec := postJSON(mux, "/v1/chat", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req := chat.lastReq
	assert.Equal(t, "посчитай", req.Message)
	assert.Equal(t, []string{"щиток"}, req.Names)
	assert.Len(t, req.History, 2)
	assert.Equal(t, models.CatalogFilters{CabinetCode: "ШУ-1"}, req.Filters)
	assert.Equal(t, models.ChatModeEstimate, req.Mode)
	assert.False(t, req.UseLLM)

	var resp models.ChatResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Data)
	assert.Equal(t, map[string]int{"ШУ-1": 90}, resp.Data.TotalByCabinet)
}

func TestChatHandler_InvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty message", body: `{"message":"   "}`},
		{name: "unknown mode", body: `{"message":"привет","mode":"report"}`},
		{name: "unknown role", body: `{"message":"привет","history":[{"role":"bot","content":"x"}]}`},
		{name: "malformed", body: `{"message":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &fakeChatService{resp: &models.ChatResponse{}}
			mux := newChatMux(chat)

			rec := postJSON(mux, "/v1/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, chat.calls)
		})
	}
}

func TestChatHandler_ServiceError(t *testing.T) {
	chat := &fakeChatService{err: errors.New("unexpected")}
	mux := newChatMux(chat)

	rec := postJSON(mux, "/v1/chat", `{"message":"привет"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
