// Package relay talks to the chat relay: JSON over HTTP for replies, a
// WebSocket for inbound room messages.
package relay

import "context"

// Message is one inbound chat event pushed by the relay.
type Message struct {
	Room   string       `json:"room"`
	Msg    string       `json:"msg"`
	Sender *string      `json:"sender,omitempty"`
	JSON   *MessageJSON `json:"json,omitempty"`
}

// MessageJSON carries the relay's extra per-message metadata.
type MessageJSON struct {
	UserID string `json:"user_id,omitempty"`
}

// SenderName is the display name, or empty when the relay omitted it.
func (m *Message) SenderName() string {
	if m == nil || m.Sender == nil {
		return ""
	}
	return *m.Sender
}

// UserID prefers the relay's stable id over the display name.
func (m *Message) UserID() string {
	if m == nil {
		return ""
	}
	if m.JSON != nil && m.JSON.UserID != "" {
		return m.JSON.UserID
	}
	return m.SenderName()
}

// ReplyRequest is the relay's outbound frame for both text and image replies.
type ReplyRequest struct {
	Type string `json:"type"` // "text" or "image"
	Room string `json:"room"`
	Data string `json:"data"` // message text, or base64 PNG for images
}

// StatusResponse is the relay's health endpoint payload.
type StatusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// WebSocketState tracks the connection lifecycle.
type WebSocketState int

const (
	WSStateDisconnected WebSocketState = iota
	WSStateConnecting
	WSStateConnected
	WSStateReconnecting
	WSStateFailed
)

func (s WebSocketState) String() string {
	switch s {
	case WSStateDisconnected:
		return "disconnected"
	case WSStateConnecting:
		return "connecting"
	case WSStateConnected:
		return "connected"
	case WSStateReconnecting:
		return "reconnecting"
	case WSStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type MessageCallback func(message *Message)

type StateCallback func(state WebSocketState)

// HeaderProvider injects per-request headers (auth tokens and the like).
type HeaderProvider func() map[string]string

// WSClient is the WebSocket surface the bot loop depends on.
type WSClient interface {
	Connect(ctx context.Context) error
	OnMessage(cb MessageCallback) int
	RemoveMessageCallback(id int)
	OnStateChange(cb StateCallback) int
	RemoveStateCallback(id int)
	Close(ctx context.Context) error
}
