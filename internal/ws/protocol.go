package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lyric-companion/backend/internal/model"
)

// ErrUnrecognizedFrame is wrapped by every ProtocolError.
var ErrUnrecognizedFrame = errors.New("frame matches no known request shape")

// RequestKind identifies which inbound shape a frame matched.
type RequestKind int

const (
	RequestGet RequestKind = iota + 1
	RequestSet
	RequestPing
	RequestPong
)

func (k RequestKind) String() string {
	switch k {
	case RequestGet:
		return "get"
	case RequestSet:
		return "state"
	case RequestPing:
		return "ping"
	case RequestPong:
		return "pong"
	default:
		return "unknown"
	}
}

// Request is a decoded client frame. Exactly one of the fields after Kind is
// meaningful, selected by Kind.
type Request struct {
	Kind    RequestKind
	Get     bool
	State   model.CurrentState
	Payload string
}

// ResponseKind identifies an outbound shape.
type ResponseKind int

const (
	ResponseState ResponseKind = iota + 1
	ResponsePong
)

// Response is a server frame before encoding.
type Response struct {
	Kind    ResponseKind
	State   model.CurrentState
	Payload string
}

// StateResponse builds a {"state": ...} frame.
func StateResponse(st model.CurrentState) Response {
	return Response{Kind: ResponseState, State: st}
}

// PongResponse builds a {"pong": ...} frame.
func PongResponse(payload string) Response {
	return Response{Kind: ResponsePong, Payload: payload}
}

// ProtocolError reports a frame that could not be decoded into any request.
type ProtocolError struct {
	Frame  string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s: %s", e.Reason, e.Frame)
}

func (e *ProtocolError) Unwrap() error {
	return ErrUnrecognizedFrame
}

const maxFrameEcho = 64

func newProtocolError(frame []byte, reason string) *ProtocolError {
	snippet := frame
	suffix := ""
	if len(snippet) > maxFrameEcho {
		snippet = snippet[:maxFrameEcho]
		suffix = "..."
	}
	return &ProtocolError{Frame: strings.ToValidUTF8(string(snippet), "\uFFFD") + suffix, Reason: reason}
}

// DecodeRequest parses one inbound text frame. Shapes are tried in the order
// get, state, ping, pong; the first key present with a value of the right type
// wins and unknown keys are ignored. Frames that are not valid UTF-8 are
// rejected before any of that, since their bytes would be relayed verbatim.
func DecodeRequest(frame []byte) (Request, error) {
	if !utf8.Valid(frame) {
		return Request{}, newProtocolError(frame, "invalid UTF-8")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(frame, &fields); err != nil {
		return Request{}, newProtocolError(frame, "not a JSON object")
	}
	if fields == nil {
		return Request{}, newProtocolError(frame, "not a JSON object")
	}

	if raw, ok := fields["get"]; ok {
		if v, ok := decodeBool(raw); ok {
			return Request{Kind: RequestGet, Get: v}, nil
		}
	}
	if raw, ok := fields["state"]; ok {
		if st, ok := decodeState(raw); ok {
			return Request{Kind: RequestSet, State: st}, nil
		}
	}
	if raw, ok := fields["ping"]; ok {
		if v, ok := decodeString(raw); ok {
			return Request{Kind: RequestPing, Payload: v}, nil
		}
	}
	if raw, ok := fields["pong"]; ok {
		if v, ok := decodeString(raw); ok {
			return Request{Kind: RequestPong, Payload: v}, nil
		}
	}

	return Request{}, newProtocolError(frame, "unrecognized request")
}

// EncodeResponse serializes a server frame.
func EncodeResponse(r Response) ([]byte, error) {
	switch r.Kind {
	case ResponseState:
		return json.Marshal(struct {
			State model.CurrentState `json:"state"`
		}{r.State})
	case ResponsePong:
		return json.Marshal(struct {
			Pong string `json:"pong"`
		}{r.Payload})
	default:
		return nil, fmt.Errorf("unknown response kind %d", r.Kind)
	}
}

func decodeBool(raw json.RawMessage) (bool, bool) {
	switch string(bytes.TrimSpace(raw)) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

func decodeString(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return "", false
	}
	return s, true
}

// decodeState accepts {"id": string, "content": any}. Both keys are required;
// an explicit null content is fine.
func decodeState(raw json.RawMessage) (model.CurrentState, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return model.CurrentState{}, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return model.CurrentState{}, false
	}
	id, ok := decodeString(fields["id"])
	if !ok {
		return model.CurrentState{}, false
	}
	content, ok := fields["content"]
	if !ok {
		return model.CurrentState{}, false
	}
	st := model.CurrentState{ID: id, Content: append(json.RawMessage(nil), bytes.TrimSpace(content)...)}
	return st.Clone(), true
}
