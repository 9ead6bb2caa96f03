package model

import (
	"time"
)

// SessionStatus represents the status of a state hub connection.
type SessionStatus string

const (
	SessionStatusOpen   SessionStatus = "open"
	SessionStatusClosed SessionStatus = "closed"
)

// CloseReason classifies why a connection session ended.
type CloseReason string

const (
	CloseReasonNone      CloseReason = ""
	CloseReasonClient    CloseReason = "client_closed"
	CloseReasonTransport CloseReason = "transport_error"
	CloseReasonProtocol  CloseReason = "protocol_error"
	CloseReasonShutdown  CloseReason = "shutdown"
)

// ConnectionRecord is the audit entry kept for every accepted state hub connection.
// It never carries state content.
type ConnectionRecord struct {
	ID          string        `json:"id"`
	RemoteAddr  string        `json:"remoteAddr"`
	UserAgent   string        `json:"userAgent,omitempty"`
	Status      SessionStatus `json:"status"`
	CloseReason CloseReason   `json:"closeReason,omitempty"`
	FramesIn    int64         `json:"framesIn"`
	FramesOut   int64         `json:"framesOut"`
	ConnectedAt time.Time     `json:"connectedAt"`
	ClosedAt    *time.Time    `json:"closedAt,omitempty"`
}

// Duration returns how long the connection has been (or was) open.
func (r *ConnectionRecord) Duration() time.Duration {
	if r.ClosedAt != nil {
		return r.ClosedAt.Sub(r.ConnectedAt)
	}
	return time.Since(r.ConnectedAt)
}

// ConnectionSummary is the final tally written when a session ends.
type ConnectionSummary struct {
	CloseReason CloseReason
	FramesIn    int64
	FramesOut   int64
	ClosedAt    time.Time
}
