package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ShutdownHandler lets the local client stop the server.
type ShutdownHandler struct {
	trigger func()
}

// NewShutdownHandler creates a ShutdownHandler that calls trigger on request.
// trigger must be safe to call more than once.
func NewShutdownHandler(trigger func()) *ShutdownHandler {
	return &ShutdownHandler{trigger: trigger}
}

// Shutdown handles POST /api/shutdown.
func (h *ShutdownHandler) Shutdown(c *gin.Context) {
	c.Status(http.StatusNoContent)
	h.trigger()
}

// RegisterRoutes registers the shutdown route on a Gin router group.
func (h *ShutdownHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/shutdown", h.Shutdown)
}
