// Package httputil provides HTTP utility functions for request and response handling.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/covert/internal/errors"
)

// ErrorResponse represents a structured error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// MakeJSONResponse writes body as JSON with the given status code.
func MakeJSONResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// StatusForError maps a domain error to its HTTP status code and error body.
// Internal errors never expose their message.
func StatusForError(err error) (int, ErrorResponse) {
	kind := apperrors.KindOf(err)
	response := ErrorResponse{Error: kind, Message: err.Error()}

	switch kind {
	case apperrors.KindInvalidState:
		return http.StatusServiceUnavailable, response
	case apperrors.KindPermissionDenied:
		response.Message = "permission denied"
		return http.StatusForbidden, response
	case apperrors.KindUnauthorized:
		response.Message = "authentication is required"
		return http.StatusUnauthorized, response
	case apperrors.KindNotFound:
		return http.StatusNotFound, response
	case apperrors.KindConflict:
		return http.StatusConflict, response
	case apperrors.KindInvalidInput:
		if apperrors.Is(err, apperrors.ErrMalformedInput) {
			response.Error = "bad_request"
			return http.StatusBadRequest, response
		}
		return http.StatusUnprocessableEntity, response
	default:
		response.Message = "an internal error occurred"
		return http.StatusInternalServerError, response
	}
}

// HandleErrorGin maps domain errors to HTTP status codes and writes a JSON response.
// Server errors are logged at error level and client errors at debug level.
func HandleErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if err == nil {
		return
	}

	statusCode, response := StatusForError(err)

	if logger != nil {
		level := slog.LevelDebug
		if statusCode >= http.StatusInternalServerError && statusCode != http.StatusServiceUnavailable {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request failed",
			slog.Int("status_code", statusCode),
			slog.String("error_code", response.Error),
			slog.Any("error", err),
		)
	}

	c.JSON(statusCode, response)
}
