// Package feed streams execution results to WebSocket clients. The
// broker fans every recorded run out to connected clients, which can
// narrow the stream to a single hook.
package feed

import (
	"encoding/json"

	"github.com/watzon/relay/internal/engine"
)

// MessageType identifies a WebSocket message.
type MessageType string

const (
	MessageTypeSubscribe MessageType = "subscribe"
	MessageTypePing      MessageType = "ping"

	MessageTypeConnected MessageType = "connected"
	MessageTypeSnapshot  MessageType = "snapshot"
	MessageTypeExecution MessageType = "execution"
	MessageTypeError     MessageType = "error"
	MessageTypePong      MessageType = "pong"
)

// Message is the base WebSocket message structure.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ConnectedPayload is sent once after the connection is accepted.
type ConnectedPayload struct {
	ClientID string `json:"client_id"`
}

// SubscribePayload narrows the stream. An empty hook id restores the
// full stream.
type SubscribePayload struct {
	HookID string `json:"hook_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// SnapshotPayload answers a subscribe with recent history.
type SnapshotPayload struct {
	HookID     string                    `json:"hook_id,omitempty"`
	Executions []*engine.ExecutionResult `json:"executions"`
}

// ErrorPayload reports a client-level protocol error.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	errorCodeInvalidMessage = "INVALID_MESSAGE"
	errorCodeInvalidPayload = "INVALID_PAYLOAD"
)
