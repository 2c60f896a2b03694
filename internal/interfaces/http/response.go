package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"fintrack/internal/shared/apperr"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// StatusFor maps the error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	switch apperr.Kind(err) {
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrValidation, apperr.ErrMalformedRule:
		return http.StatusBadRequest
	case apperr.ErrDuplicatePayment:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := StatusFor(err)
	resp := errorResponse{Error: err.Error()}

	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		resp.Error = "internal error"
	}
	writeJSON(w, status, resp)
}
