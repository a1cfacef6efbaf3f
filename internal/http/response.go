package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aderut/moridam/internal/delivery"
	"github.com/aderut/moridam/internal/domain"
	"github.com/aderut/moridam/pkg/circuitbreaker"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps service errors to HTTP responses. Server side failures
// are logged; their details never reach the client.
func handleError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var validationErr *domain.ValidationError
	var depErr *domain.DependencyError

	switch {
	case errors.As(err, &validationErr):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   validationErr.Message,
			Code:    "validation_error",
			Details: validationErr.Field,
		})
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrIllegalTransition):
		respondError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, delivery.ErrStaleQuote):
		respondError(w, http.StatusConflict, "stale_quote", "a newer delivery quote was requested")
	case errors.Is(err, delivery.ErrNoRoute):
		respondError(w, http.StatusBadRequest, "no_route", "Could not calculate distance")
	case errors.As(err, &depErr):
		requestLogger(r, logger).Error("dependency failure",
			zap.String("dependency", depErr.Dependency),
			zap.Error(depErr.Err),
		)
		if circuitbreaker.IsOpen(err) || errors.Is(err, context.DeadlineExceeded) {
			respondError(w, http.StatusServiceUnavailable, "service_unavailable",
				depErr.Dependency+" is temporarily unavailable, please retry")
			return
		}
		respondError(w, http.StatusBadGateway, "bad_gateway",
			depErr.Dependency+" failed, please retry")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		requestLogger(r, logger).Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// errorsIsClient reports errors caused by the request rather than a backend.
func errorsIsClient(err error) bool {
	return domain.IsValidation(err) || errors.Is(err, domain.ErrNotFound)
}

func decodeBody(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := decodeBody(r, dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return false
	}
	return true
}
