package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fenggwsx/NovaMind/internal/protocol"
	"github.com/fenggwsx/NovaMind/internal/service"
)

// statusFor maps a service error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": ...}. Unclassified errors are logged and
// answered with fallback so internals never reach the client.
func (a *App) respondError(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	msg, ok := service.PublicMessage(err)
	if !ok {
		msg = fallback
	}
	if status >= http.StatusInternalServerError {
		a.logger.ErrorContext(c.Request.Context(), fallback,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}
	abortWithError(c, status, msg)
}

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, protocol.ErrorResponse{Error: msg})
}
