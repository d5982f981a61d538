package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/kozaktomas/attendance-kiosk/internal/kiosk"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// maxJSONBody limits JSON request bodies.
const maxJSONBody = 64 << 10

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// statusForSessionError maps session errors to HTTP status codes.
func statusForSessionError(err error) int {
	switch {
	case errors.Is(err, kiosk.ErrInvalidAction):
		return http.StatusBadRequest
	case errors.Is(err, kiosk.ErrLocationDenied):
		return http.StatusForbidden
	case errors.Is(err, kiosk.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, kiosk.ErrBusy),
		errors.Is(err, kiosk.ErrNotArmed),
		errors.Is(err, kiosk.ErrDeviceBusy),
		errors.Is(err, kiosk.ErrStopped),
		errors.Is(err, kiosk.ErrClosed):
		return http.StatusConflict
	case errors.Is(err, kiosk.ErrPermission):
		return http.StatusServiceUnavailable
	case errors.Is(err, kiosk.ErrModelLoad), errors.Is(err, kiosk.ErrEnrollment):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
