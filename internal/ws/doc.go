// Package ws implements the state synchronization hub served over WebSocket.
//
// The package implements:
//   - Protocol codec: untagged JSON frames discriminated by which key is present
//   - Session: one per client, running a reader, a writer and a broadcaster
//   - Hub: upgrades requests, registers sessions and closes them on shutdown
//
// Inbound frames:
//
//	{"get": true}
//	{"state": {"id": "...", "content": <any JSON>}}
//	{"ping": "..."}
//	{"pong": "..."}
//
// Outbound frames:
//
//	{"state": {"id": "...", "content": <any JSON>}}
//	{"pong": "..."}
//
// A "state" frame replaces the shared state for everyone and is answered only
// through the broadcast every session, the sender's included, receives. A
// frame that matches none of the inbound shapes closes that client's
// connection with status 1003; other clients are unaffected.
//
// Application-level ping/pong is answered but not enforced: a client that
// stops sending pings is never disconnected by the hub.
package ws
