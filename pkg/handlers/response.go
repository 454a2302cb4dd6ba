// Package handlers contains the HTTP layer: route registration, request
// decoding, and the mapping from service errors to status codes.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Zutavern/apo-sub001/pkg/apperrors"
)

// ErrorDetail carries the typed error envelope for failed refreshes.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// APIResponse is the common envelope for the data endpoints.
type APIResponse struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteSuccess writes a success envelope around data.
func WriteSuccess(w http.ResponseWriter, data any) error {
	return WriteJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// WriteServiceError maps a service error onto the envelope and status code.
// The mapping is exhaustive over the error variants the services produce;
// anything unrecognized is a 500.
func WriteServiceError(w http.ResponseWriter, err error) error {
	status, detail := classifyError(err)
	return WriteJSON(w, status, APIResponse{Success: false, Error: &detail})
}

func classifyError(err error) (int, ErrorDetail) {
	var validationErr *apperrors.ValidationError
	var storageErr *apperrors.StorageError
	var providerErr *apperrors.ProviderError

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, ErrorDetail{Type: "not_found", Message: err.Error()}
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity, ErrorDetail{Type: "validation_error", Message: validationErr.Error()}
	case apperrors.IsTimeout(err):
		return http.StatusGatewayTimeout, ErrorDetail{Type: "provider_timeout", Message: err.Error()}
	case errors.As(err, &storageErr):
		return http.StatusServiceUnavailable, ErrorDetail{Type: "storage_error", Message: storageErr.Error()}
	case errors.As(err, &providerErr):
		return http.StatusBadGateway, ErrorDetail{Type: "provider_error", Message: providerErr.Error()}
	default:
		return http.StatusInternalServerError, ErrorDetail{Type: "internal_error", Message: err.Error()}
	}
}
