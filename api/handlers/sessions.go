package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lyric-companion/backend/internal/model"
	"github.com/lyric-companion/backend/internal/session"
)

// SessionHandler exposes the state hub connection audit log.
type SessionHandler struct {
	sessionManager *session.Manager
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionManager *session.Manager) *SessionHandler {
	return &SessionHandler{
		sessionManager: sessionManager,
	}
}

// SessionResponse represents a connection record in API responses.
type SessionResponse struct {
	ID          string `json:"id"`
	RemoteAddr  string `json:"remoteAddr"`
	UserAgent   string `json:"userAgent,omitempty"`
	Status      string `json:"status"`
	CloseReason string `json:"closeReason,omitempty"`
	FramesIn    int64  `json:"framesIn"`
	FramesOut   int64  `json:"framesOut"`
	Duration    string `json:"duration"`
	ConnectedAt string `json:"connectedAt"`
	ClosedAt    string `json:"closedAt,omitempty"`
}

func toSessionResponse(r *model.ConnectionRecord) *SessionResponse {
	resp := &SessionResponse{
		ID:          r.ID,
		RemoteAddr:  r.RemoteAddr,
		UserAgent:   r.UserAgent,
		Status:      string(r.Status),
		CloseReason: string(r.CloseReason),
		FramesIn:    r.FramesIn,
		FramesOut:   r.FramesOut,
		Duration:    formatDuration(r.Duration()),
		ConnectedAt: r.ConnectedAt.Format(time.RFC3339),
	}
	if r.ClosedAt != nil {
		resp.ClosedAt = r.ClosedAt.Format(time.RFC3339)
	}
	return resp
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return time.Duration(h*time.Hour + m*time.Minute + s*time.Second).String()
	}
	if m > 0 {
		return time.Duration(m*time.Minute + s*time.Second).String()
	}
	return time.Duration(s * time.Second).String()
}

// List handles GET /api/sessions - recent connections, newest first.
// With ?active=true only live connections are returned, oldest first.
func (h *SessionHandler) List(c *gin.Context) {
	var records []*model.ConnectionRecord

	if active, _ := strconv.ParseBool(c.Query("active")); active {
		records = h.sessionManager.Active()
	} else {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive integer")
				return
			}
			limit = n
		}

		var err error
		records, err = h.sessionManager.List(c.Request.Context(), limit)
		if err != nil {
			sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list sessions: "+err.Error())
			return
		}
	}

	response := make([]*SessionResponse, len(records))
	for i, rec := range records {
		response[i] = toSessionResponse(rec)
	}

	c.JSON(http.StatusOK, response)
}

// Get handles GET /api/sessions/:id.
func (h *SessionHandler) Get(c *gin.Context) {
	sessionID := c.Param("id")

	rec, err := h.sessionManager.Get(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session "+sessionID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get session: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(rec))
}

// RegisterRoutes registers the session handler routes on a Gin router group.
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	{
		sessions.GET("", h.List)
		sessions.GET("/:id", h.Get)
	}
}
