package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fenggwsx/NovaMind/internal/protocol"
)

func (a *App) handleTest(c *gin.Context) {
	c.JSON(http.StatusOK, protocol.StatusResponse{Message: "Server is working!"})
}

func (a *App) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, protocol.StatusResponse{Status: "ok"})
}

// handleReady reports whether the database answers.
func (a *App) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := a.store.Ping(ctx); err != nil {
		a.logger.WarnContext(ctx, "readiness check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, protocol.StatusResponse{Status: "unavailable"})
		return
	}
	c.JSON(http.StatusOK, protocol.StatusResponse{Status: "ready"})
}
