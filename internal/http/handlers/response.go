// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the standard response utilities used across all endpoints:
// a structured error envelope, consistent JSON serialization, and helpers for
// common patterns, so responses stay uniform and machine-friendly.
//
// Conventions:
//   - All error responses return an ErrorResponse with a stable `code`.
//   - fail() centralizes error logging and formatting; 5xx responses are
//     logged with request context.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leadvane/adkey-backend/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
//
// RequestID correlates server logs with client-side errors (echoed from the
// X-Request-ID header), Code is a stable machine-readable string (see
// errors.go constants), and Message is safe for display.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// fail aborts the request with a structured error and logs server-side errors.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	resp := ErrorResponse{
		RequestID: reqID,
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail(), used by router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
