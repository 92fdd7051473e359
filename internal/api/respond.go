package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/socialchef/chefai/internal/errors"
	"github.com/socialchef/chefai/internal/logger"
	"github.com/socialchef/chefai/internal/middleware"
)

// maxBodyBytes bounds request bodies; several base64 photos fit comfortably.
const maxBodyBytes = 32 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status     string                  `json:"status"`
	Error      string                  `json:"error"`
	Message    string                  `json:"message"`
	Recovery   string                  `json:"recovery,omitempty"`
	Violations []errors.FieldViolation `json:"violations,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError renders err in the error shape. Errors outside the taxonomy become a generic
// 500 so internal details never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		if stderrors.Is(err, context.Canceled) {
			slog.Info("Request cancelled by client", "path", r.URL.Path)
			return
		}
		appErr = errors.NewInternalError("Something went wrong while cooking.", err)
	}

	level := slog.LevelWarn
	if appErr.StatusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	attrs := []any{
		"path", r.URL.Path,
		"error_code", appErr.Code(),
		"error", err.Error(),
		logger.WithTraceContext(r.Context()),
	}
	if id, ok := middleware.GetRequestID(r.Context()); ok {
		attrs = append(attrs, "request_id", id)
	}
	slog.Log(r.Context(), level, "Request failed", attrs...)

	writeJSON(w, appErr.StatusCode, ErrorResponse{
		Status:     "error",
		Error:      appErr.Code(),
		Message:    appErr.Message,
		Recovery:   appErr.RecoverySuggestion(),
		Violations: appErr.Violations,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return errors.NewValidationError("Invalid request body", "INVALID_BODY", "Send a JSON object.")
	}
	return nil
}
