package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-estimator/pkg/apperrors"
)

// maxBodyBytes bounds request bodies. A few thousand names fit comfortably.
const maxBodyBytes = 1 << 20

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// decodeJSON reads a single JSON object from the request body into dst.
// Decoding problems are reported as apperrors.ErrInvalidInput.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: request body exceeds %d bytes", apperrors.ErrInvalidInput, maxErr.Limit)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body is empty", apperrors.ErrInvalidInput)
		default:
			return fmt.Errorf("%w: malformed JSON: %v", apperrors.ErrInvalidInput, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must contain a single JSON object", apperrors.ErrInvalidInput)
	}
	return nil
}

// writeServiceError maps a service error to an HTTP status and error code.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status, code, message := http.StatusInternalServerError, "internal_error", "Internal server error"
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		status, code, message = http.StatusBadRequest, "invalid_input", err.Error()
	case errors.Is(err, apperrors.ErrRetrieval):
		status, code, message = http.StatusServiceUnavailable, "retrieval_failed", "Catalog is temporarily unavailable"
	default:
		logger.Error("Unhandled service error", zap.Error(err))
	}

	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
