package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message types for the notification socket
const (
	MessageTypeSystem            = "system"
	MessageTypePing              = "ping"
	MessageTypePong              = "pong"
	MessageTypeError             = "error"
	MessageTypeNotification      = "notification"
	MessageTypeNotificationCount = "notification_count"
)

// Message is the JSON frame exchanged over the socket.
type Message struct {
	// Type identifies the message type for routing
	Type string `json:"type"`

	// Payload contains the message-specific data
	Payload interface{} `json:"payload,omitempty"`

	// ID is set by clients that want their ping answered with a matching pong
	ID      string `json:"id,omitempty"`
	ReplyTo string `json:"replyTo,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType string, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewReply creates a reply message to an original message
func NewReply(original *Message, msgType string, payload interface{}) *Message {
	msg := NewMessage(msgType, payload)
	msg.ReplyTo = original.ID
	return msg
}

// NewErrorMessage creates an error message
func NewErrorMessage(code, message string) *Message {
	return NewMessage(MessageTypeError, ErrorPayload{Code: code, Message: message})
}

// ParsePayload decodes the payload into dst. Payloads read off the wire are
// generic maps, so this goes through JSON once more.
func (m *Message) ParsePayload(dst interface{}) error {
	if m.Payload == nil {
		return fmt.Errorf("message has no payload")
	}
	data, err := json.Marshal(m.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PingPayload struct {
	ClientTime int64 `json:"clientTime"`
}

type PongPayload struct {
	ClientTime int64 `json:"clientTime"`
	ServerTime int64 `json:"serverTime"`
}

// SystemPayload announces connection lifecycle events.
type SystemPayload struct {
	Event   string                 `json:"event"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// CountPayload carries the recipient's unread notification count.
type CountPayload struct {
	Unread int64 `json:"unread"`
}
