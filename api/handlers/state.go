package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lyric-companion/backend/internal/model"
	"github.com/lyric-companion/backend/internal/ws"
)

// StateHandler serves the shared state over WebSocket and as a read-only snapshot.
type StateHandler struct {
	hub *ws.Hub
}

// NewStateHandler creates a new StateHandler.
func NewStateHandler(hub *ws.Hub) *StateHandler {
	return &StateHandler{hub: hub}
}

// SnapshotResponse is the HTTP view of the current state.
type SnapshotResponse struct {
	State       model.CurrentState `json:"state"`
	Version     uint64             `json:"version"`
	Subscribers int                `json:"subscribers"`
}

// Connect handles GET /api/state - upgrades to the state sync protocol.
func (h *StateHandler) Connect(c *gin.Context) {
	h.hub.ServeHTTP(c.Writer, c.Request)
}

// Snapshot handles GET /api/state/snapshot.
func (h *StateHandler) Snapshot(c *gin.Context) {
	store := h.hub.Store()
	st, version := store.Snapshot()
	c.JSON(http.StatusOK, SnapshotResponse{
		State:       st,
		Version:     version,
		Subscribers: store.Subscribers(),
	})
}

// RegisterRoutes registers the state routes on a Gin router group.
func (h *StateHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/state", h.Connect)
	rg.GET("/state/snapshot", h.Snapshot)
}
