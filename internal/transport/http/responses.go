package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/llmjudge/evalengine/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error onto an HTTP status/code pair. Grounded on
// teacher internal/adapter/httpserver/responses.go::writeError's
// errors.Is-switch idiom, re-keyed to this system's domain error taxonomy.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status, code = http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrMaintenanceMode):
		status, code = http.StatusServiceUnavailable, "MAINTENANCE"
	case errors.Is(err, domain.ErrAllBackendsDown):
		status, code = http.StatusServiceUnavailable, "ALL_BACKENDS_DOWN"
	case errors.Is(err, domain.ErrBreakerOpen):
		status, code = http.StatusServiceUnavailable, "BREAKER_OPEN"
	case errors.Is(err, domain.ErrRetriesExhausted):
		status, code = http.StatusBadGateway, "RETRIES_EXHAUSTED"
	case errors.Is(err, domain.ErrTimeout):
		status, code = http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, domain.ErrParseFailed):
		status, code = http.StatusBadGateway, "PARSE_FAILED"
	}
	writeJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: err.Error()}})
}
