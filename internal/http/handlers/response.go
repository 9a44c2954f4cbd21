// Package handlers contains the Gin HTTP handlers for the REST surface:
// accounts, chat overview management, message history, and public keys.
// Handlers stay thin: they bind input, call a service, and shape the
// response. Error responses share one JSON envelope of request_id, code,
// and message.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the JSON envelope returned by every failing endpoint.
type ErrorResponse struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// requestID returns the correlation ID set by the RequestID middleware.
func requestID(c *gin.Context) string {
	return c.Writer.Header().Get("X-Request-ID")
}

// ok writes a JSON success response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an empty 204 response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// fail aborts the request with the standard error envelope.
func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: requestID(c),
		Code:      code,
		Message:   message,
	})
}

// Fail is the exported form of fail for use outside the package, such as the
// router's NoRoute and NoMethod fallbacks.
func Fail(c *gin.Context, status int, code, message string) {
	fail(c, status, code, message)
}
