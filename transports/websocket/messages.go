package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"echopilot/responder"
)

type MessageType string

const (
	// Server to client.
	MessageTypeSnapshot MessageType = "snapshot"
	MessageTypeError    MessageType = "error"
	MessageTypeAck      MessageType = "ack"

	// Client to server.
	MessageTypeClearContext MessageType = "clear_context"
	MessageTypeExport       MessageType = "export"
)

// Envelope wraps every feed message with a type tag and a unique id.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Uid     string          `json:"uid"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Snapshot is the periodic feed payload: the rendered transcript, the
// combined record list, and the latest response if any exists. Greeting
// is set only before the first response has been created.
type Snapshot struct {
	Transcript     string              `json:"transcript"`
	Messages       []SnapshotMessage   `json:"messages"`
	LatestResponse *responder.Response `json:"latest_response,omitempty"`
	Greeting       string              `json:"greeting,omitempty"`
	Time           time.Time           `json:"time"`
}

// SnapshotMessage is one combined-list entry in the feed payload.
type SnapshotMessage struct {
	Role       string    `json:"role"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	ResponseID string    `json:"response_id,omitempty"`
}

// ExportRequest is the payload of an export command from the client.
type ExportRequest struct {
	Path        string `json:"path"`
	NewestFirst bool   `json:"newest_first"`
	// Responses selects the flat response dump instead of the
	// structured conversation document.
	Responses bool `json:"responses"`
}

// MarshalEnvelope encodes a payload into a typed envelope.
func MarshalEnvelope(msgType MessageType, payload interface{}) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := sonic.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("websocket: marshal payload for %q: %w", msgType, err)
		}
		raw = b
	}
	return sonic.Marshal(Envelope{
		Type:    msgType,
		Uid:     uuid.New().String(),
		Payload: raw,
	})
}

// UnmarshalEnvelope parses a feed message from a client.
func UnmarshalEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("websocket: unmarshal envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("websocket: envelope missing type field")
	}
	return env, nil
}
