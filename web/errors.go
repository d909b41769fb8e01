package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	TypeMethodNotFound   = "METHOD_NOT_FOUND"
	TypeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	TypeTimeout          = "REQUEST_TIMEOUT"
)

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// AbortWithError writes an ErrorResponse and stops the handler chain.
func AbortWithError(c *gin.Context, status int, typ, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Message: message, Type: typ})
}

func notFound(c *gin.Context) {
	AbortWithError(c, http.StatusNotFound, TypeMethodNotFound, "method not found")
}

func methodNotAllowed(c *gin.Context) {
	AbortWithError(c, http.StatusMethodNotAllowed, TypeMethodNotAllowed, "method not allowed")
}

// Healthz answers liveness and readiness probes.
func Healthz(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
