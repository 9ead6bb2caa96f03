package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lyric-companion/backend/internal/session"
	"github.com/lyric-companion/backend/internal/ws"
)

// maxPingBody caps the echoed ping body.
const maxPingBody = 64 << 10

// ServerInfoHandler answers liveness and identity queries.
type ServerInfoHandler struct {
	version  string
	license  string
	started  time.Time
	hub      *ws.Hub
	sessions *session.Manager
}

// NewServerInfoHandler creates a new ServerInfoHandler.
func NewServerInfoHandler(version, license string, hub *ws.Hub, sessions *session.Manager) *ServerInfoHandler {
	return &ServerInfoHandler{
		version:  version,
		license:  license,
		started:  time.Now(),
		hub:      hub,
		sessions: sessions,
	}
}

// StatusResponse summarises the running server.
type StatusResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	Uptime         string `json:"uptime"`
	LiveSessions   int    `json:"liveSessions"`
	StateVersion   uint64 `json:"stateVersion"`
	StateID        string `json:"stateId"`
	RecordedActive int    `json:"recordedActive"`
}

// Ping handles POST /api/server-info/ping - echoes the body.
func (h *ServerInfoHandler) Ping(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPingBody))
	if err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Failed to read request body")
		return
	}
	contentType := c.ContentType()
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	c.Data(http.StatusOK, contentType, body)
}

// Version handles GET /api/server-info/version.
func (h *ServerInfoHandler) Version(c *gin.Context) {
	c.String(http.StatusOK, "%s", h.version)
}

// License handles GET /api/server-info/license.
func (h *ServerInfoHandler) License(c *gin.Context) {
	c.String(http.StatusOK, "%s", h.license)
}

// Status handles GET /api/server-info/status.
func (h *ServerInfoHandler) Status(c *gin.Context) {
	st, version := h.hub.Store().Snapshot()
	resp := StatusResponse{
		Status:       "ok",
		Version:      h.version,
		Uptime:       formatDuration(time.Since(h.started)),
		LiveSessions: h.hub.Count(),
		StateVersion: version,
		StateID:      st.ID,
	}
	if h.sessions != nil {
		resp.RecordedActive = h.sessions.ActiveCount()
	}
	c.JSON(http.StatusOK, resp)
}

// RegisterRoutes registers the server info routes on a Gin router group.
func (h *ServerInfoHandler) RegisterRoutes(rg *gin.RouterGroup) {
	info := rg.Group("/server-info")
	{
		info.POST("/ping", h.Ping)
		info.GET("/version", h.Version)
		info.GET("/license", h.License)
		info.GET("/status", h.Status)
	}
}
