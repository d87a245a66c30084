package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aneupi/finance-engine/generic"
	"go.uber.org/zap"
)

// internalErrorMessage is all a client sees of a 500.
const internalErrorMessage = "internal server error"

// statusFor maps engine and auth errors to an HTTP status.
func statusFor(err error) int {
	switch {
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, ErrMissingToken), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error envelope. Client errors carry their message (which
// names the offending field); server errors are logged and hidden.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, status, internalErrorMessage)
		return
	}
	writeError(w, status, err.Error())
}

// =============================================================================
// ENVELOPE
// =============================================================================

// Envelope is the body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Year    *int   `json:"year,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

func writeYearData(w http.ResponseWriter, year int, data any) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Year: &year})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Success: false, Error: message})
}
