// Package handlers is the HTTP surface of the booking API. Routes use the
// net/http ServeMux method patterns; bodies are JSON in and out.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"tablebook/internal/apperr"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps classified errors to HTTP statuses; anything unclassified
// is logged and hidden behind a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"

	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		status = http.StatusNotFound
		msg = err.Error()
	case apperr.KindForbidden:
		status = http.StatusForbidden
		msg = err.Error()
	case apperr.KindBusinessRule:
		status = http.StatusUnprocessableEntity
		msg = err.Error()
	case apperr.KindUnauthorized:
		status = http.StatusUnauthorized
		msg = err.Error()
	default:
		logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}

	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return false
	}
	return true
}
