package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mmynk/cameratogether/internal/groupapi"
	"github.com/mmynk/cameratogether/internal/service"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

func respondStatus(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, groupapi.ErrorBody{
		Error:   http.StatusText(status),
		Message: message,
	})
}

// respondError maps a service error onto its HTTP status. Internal errors
// are logged and hidden from the caller.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(service.CodeOf(err))
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = "internal error"
	}
	respondStatus(w, status, message)
}

func statusFor(code service.Code) int {
	switch code {
	case service.CodeInvalidArgument, service.CodeFailedPrecondition:
		return http.StatusBadRequest
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeAlreadyExists:
		return http.StatusConflict
	case service.CodePermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

var errEmptyBody = errors.New("request body is required")

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}
