package ws

import (
	"encoding/json"
	"fmt"

	"github.com/lyric-companion/backend/internal/model"
)

// encodeRequest serializes a client frame.
func encodeRequest(r Request) ([]byte, error) {
	switch r.Kind {
	case RequestGet:
		return json.Marshal(struct {
			Get bool `json:"get"`
		}{r.Get})
	case RequestSet:
		return json.Marshal(struct {
			State model.CurrentState `json:"state"`
		}{r.State})
	case RequestPing:
		return json.Marshal(struct {
			Ping string `json:"ping"`
		}{r.Payload})
	case RequestPong:
		return json.Marshal(struct {
			Pong string `json:"pong"`
		}{r.Payload})
	default:
		return nil, fmt.Errorf("unknown request kind %d", r.Kind)
	}
}

// decodeResponse parses a server frame the way a client would.
func decodeResponse(frame []byte) (Response, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(frame, &fields); err != nil || fields == nil {
		return Response{}, newProtocolError(frame, "not a JSON object")
	}
	if raw, ok := fields["state"]; ok {
		if st, ok := decodeState(raw); ok {
			return StateResponse(st), nil
		}
	}
	if raw, ok := fields["pong"]; ok {
		if v, ok := decodeString(raw); ok {
			return PongResponse(v), nil
		}
	}
	return Response{}, newProtocolError(frame, "unrecognized response")
}
