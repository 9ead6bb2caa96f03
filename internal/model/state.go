package model

import (
	"bytes"
	"encoding/json"
)

// nullContent is the encoding of an absent content value.
var nullContent = json.RawMessage("null")

// CurrentState is the single value mirrored to every connected client.
// ID and Content are always replaced together.
type CurrentState struct {
	// ID is an opaque token chosen by the client that set the state.
	ID string `json:"id"`
	// Content is client-defined and may be any JSON value, including null.
	Content json.RawMessage `json:"content"`
}

// DefaultState returns the state every process starts with: an empty ID and null content.
func DefaultState() CurrentState {
	return CurrentState{ID: "", Content: nullContent}
}

// Clone returns a deep copy so callers can never alias the store's bytes.
func (s CurrentState) Clone() CurrentState {
	out := CurrentState{ID: s.ID}
	if len(s.Content) == 0 {
		out.Content = json.RawMessage("null")
		return out
	}
	out.Content = append(json.RawMessage(nil), s.Content...)
	return out
}

// IsNull reports whether Content is absent or the JSON literal null.
func (s CurrentState) IsNull() bool {
	trimmed := bytes.TrimSpace(s.Content)
	return len(trimmed) == 0 || bytes.Equal(trimmed, nullContent)
}

// MarshalJSON writes an absent Content as null instead of failing on an empty RawMessage.
func (s CurrentState) MarshalJSON() ([]byte, error) {
	type wire struct {
		ID      string          `json:"id"`
		Content json.RawMessage `json:"content"`
	}
	content := s.Content
	if len(bytes.TrimSpace(content)) == 0 {
		content = nullContent
	}
	return json.Marshal(wire{ID: s.ID, Content: content})
}
