package handler

// Response helpers shared by all handlers.
//
// Every error leaving the API has one shape:
//
//	{"error": "not_found", "message": "post not found with id 7", "field": ""}
//
// writeError owns the mapping from the error taxonomy to HTTP status codes;
// no other file translates errors to transport. Services stay HTTP-agnostic,
// and a new error kind gets wired up in exactly one switch.

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/karim/bloghub/internal/apperror"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// writeJSON sends data as JSON with the given status. Headers and status
// must be written before the body — once Encode writes, headers are sealed.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		// Encoding errors at this point mean the connection is going away;
		// there is nothing useful left to send.
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeError translates a domain error to its transport representation.
func writeError(w http.ResponseWriter, err error) {
	kind, status := classify(err)

	resp := ErrorResponse{Error: kind, Message: err.Error()}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		resp.Message = appErr.Message
		resp.Field = appErr.Field
	}
	if status == http.StatusInternalServerError {
		// Internal details stay in the logs, not the response body.
		resp.Message = "internal server error"
	}

	writeJSON(w, status, resp)
}

func classify(err error) (kind string, status int) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return "validation", http.StatusBadRequest
	case errors.Is(err, apperror.ErrAuthentication):
		return "authentication", http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return "forbidden", http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return "not_found", http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return "conflict", http.StatusConflict
	default:
		return "internal", http.StatusInternalServerError
	}
}

// decodeJSON decodes a request body into dst, rejecting unknown fields so
// client typos fail loudly instead of being silently dropped.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("", "request body is not valid JSON")
	}
	return nil
}
