package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lyric-companion/backend/internal/config"
)

// ConfigHandler serves the client_options section of the server config.
type ConfigHandler struct {
	options *config.ClientOptions
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(options *config.ClientOptions) *ConfigHandler {
	return &ConfigHandler{options: options}
}

// Get handles GET /api/config.
func (h *ConfigHandler) Get(c *gin.Context) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", h.options.Load())
}

// RegisterRoutes registers the config route on a Gin router group.
func (h *ConfigHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/config", h.Get)
}
