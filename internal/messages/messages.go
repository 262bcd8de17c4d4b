// Package messages defines the envelopes exchanged with editor clients over
// the /api/editor websocket.
//
// The first frame a client receives is the NDJSON event history. Every later
// frame is either an Envelope (it has a "type") or a live event (it has an
// "event").
package messages

import (
	"encoding/json"
	"fmt"
)

// Version is the current envelope version.
const Version = 1

// Type names for message envelopes.
const (
	// client -> server
	TypeEditorChange = "editor.change"
	TypeEditorKey    = "editor.key"
	TypeEditorHover  = "editor.hover"
	TypeEditorSelect = "editor.select"
	TypeEditorBlur   = "editor.blur"
	TypeEditorFocus  = "editor.focus"
	TypeClientHello  = "client.hello"

	// server -> client
	TypeEditorSuggestions = "editor.suggestions"
	TypeEditorReplace     = "editor.replace"
	TypeEditorCursor      = "editor.cursor"
	TypeEditorValidation  = "editor.validation"
	TypeEditorKeyResult   = "editor.key.result"
	TypeError             = "error"
)

// Field names an editor may address.
const (
	FieldSubject = "subject"
	FieldBody    = "body"
)

// ValidField reports whether f names an editable field.
func ValidField(f string) bool {
	return f == FieldSubject || f == FieldBody
}

// Envelope is a versioned, self-describing message wrapper.
// Payload must be decoded into a concrete payload struct based on Type.
type Envelope struct {
	Type      string          `json:"type"`
	Version   int             `json:"version"`
	SessionID string          `json:"session_id,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ChangePayload (client -> server) reports the field text and cursor after
// an input event. Cursor is in characters.
type ChangePayload struct {
	Field  string `json:"field"`
	Text   string `json:"text"`
	Cursor int    `json:"cursor"`
}

// KeyPayload (client -> server) forwards a navigation key pressed while the
// list may be showing.
type KeyPayload struct {
	Field string `json:"field"`
	Key   string `json:"key"`
}

// IndexPayload (client -> server) carries hover and pointer-select targets.
type IndexPayload struct {
	Field string `json:"field"`
	Index int    `json:"index"`
}

// FieldPayload (client -> server) carries blur and focus.
type FieldPayload struct {
	Field string `json:"field"`
}

// ClientHelloPayload identifies an editor client.
type ClientHelloPayload struct {
	Platform     string   `json:"platform,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Version      string   `json:"version,omitempty"`
}

// Candidate is one suggestion row.
type Candidate struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	DataType    string `json:"dataType"`
}

// SuggestionsPayload (server -> client) is the list to render for a field.
// Open false means the list is hidden.
type SuggestionsPayload struct {
	Field         string      `json:"field"`
	Open          bool        `json:"open"`
	StartOffset   int         `json:"startOffset"`
	SearchText    string      `json:"searchText"`
	Candidates    []Candidate `json:"candidates"`
	SelectedIndex int         `json:"selectedIndex"`
}

// ReplacePayload (server -> client) replaces the field text after an accept.
// The cursor follows separately in an editor.cursor message.
type ReplacePayload struct {
	Field string `json:"field"`
	Text  string `json:"text"`
}

// CursorPayload (server -> client) places the caret.
type CursorPayload struct {
	Field  string `json:"field"`
	Cursor int    `json:"cursor"`
}

// ValidationPayload (server -> client) carries the advisory template check.
type ValidationPayload struct {
	IsValid      bool     `json:"isValid"`
	InvalidNames []string `json:"invalidNames"`
}

// KeyResultPayload (server -> client) tells the client whether to suppress
// the key's default action.
type KeyResultPayload struct {
	Field   string `json:"field"`
	Key     string `json:"key"`
	Handled bool   `json:"handled"`
}

// ErrorPayload (server -> client) reports a rejected message.
type ErrorPayload struct {
	Message string `json:"message"`
}

// WrapPayload marshals a payload into an envelope.
func WrapPayload(sessionID, typ string, payload any) (*Envelope, error) {
	return WrapPayloadWithRequestID(sessionID, typ, "", payload)
}

// WrapPayloadWithRequestID marshals a payload and echoes the request ID of
// the message it answers.
func WrapPayloadWithRequestID(sessionID, typ, requestID string, payload any) (*Envelope, error) {
	env := &Envelope{
		Type:      typ,
		Version:   Version,
		SessionID: sessionID,
		RequestID: requestID,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return env, nil
}

// Decode parses an inbound frame and checks its version.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("decode envelope: missing type")
	}
	if env.Version != 0 && env.Version != Version {
		return nil, fmt.Errorf("decode envelope: unsupported version %d", env.Version)
	}
	return &env, nil
}

// UnmarshalPayload decodes the envelope payload into the provided destination.
func UnmarshalPayload[T any](env *Envelope, dst *T) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", env.Type)
	}
	return json.Unmarshal(env.Payload, dst)
}
