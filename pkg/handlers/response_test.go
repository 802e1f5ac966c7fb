package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-estimator/pkg/apperrors"
)

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		errorCode  string
		message    string
	}{
		{"bad request", http.StatusBadRequest, "invalid_input", "names must not be empty"},
		{"unavailable", http.StatusServiceUnavailable, "retrieval_failed", "Catalog is temporarily unavailable"},
		{"internal error", http.StatusInternalServerError, "internal_error", "something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			require.NoError(t, ErrorResponse(w, tt.statusCode, tt.errorCode, tt.message))

			assert.Equal(t, tt.statusCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.errorCode, body["error"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteJSON(w, http.StatusOK, map[string]string{"key": "value"}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"key":"value"}`, w.Body.String())

	w = httptest.NewRecorder()
	require.NoError(t, WriteJSON(w, http.StatusCreated, []int{1}))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid object", body: `{"names":["щиток"]}`},
		{name: "empty body", body: ``, wantErr: true},
		{name: "malformed", body: `{"names":`, wantErr: true},
		{name: "two objects", body: `{"names":[]} {"names":[]}`, wantErr: true},
		{name: "wrong type", body: `{"names":"щиток"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/v1/estimate", strings.NewReader(tt.body))

			var req EstimateRequest
			err := decodeJSON(w, r, &req)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{"щиток"}, req.Names)
		})
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	body := `{"names":["` + strings.Repeat("x", maxBodyBytes) + `"]}`
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/estimate", strings.NewReader(body))

	var req EstimateRequest
	err := decodeJSON(w, r, &req)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid input", fmt.Errorf("%w: names must not be empty", apperrors.ErrInvalidInput), http.StatusBadRequest, "invalid_input"},
		{"retrieval", fmt.Errorf("%w: dial tcp: refused", apperrors.ErrRetrieval), http.StatusServiceUnavailable, "retrieval_failed"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeServiceError(w, zap.NewNop(), tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body["error"])
			assert.NotContains(t, body["message"], "refused")
		})
	}
}
