package octohub

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Reserved control actions. They are consumed by the heartbeat and never
// delivered to message observers or action handlers.
const (
	ActionPing = "ping"
	ActionPong = "pong"
)

// ActionError is the action of replies sent when an action handler fails.
const ActionError = "error"

// Message is an application message exchanged over the channel.
type Message struct {
	Action    string `json:"action"`
	Data      any    `json:"-"`
	Timestamp int64  `json:"timestamp,omitempty"` // epoch milliseconds, set on send
	RequestID string `json:"request_id,omitempty"`
	From      string `json:"from,omitempty"` // sender ID, set by the server
	To        string `json:"to,omitempty"`   // recipient ID for private messages

	dataRaw json.RawMessage // raw JSON data for lazy deserialization
}

// ErrorData is the payload of an ActionError reply.
type ErrorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error codes carried in ErrorData.
const (
	ErrorCodeInvalidMessage = 1001
	ErrorCodeUnknownAction  = 1002
	ErrorCodeInternalError  = 1004
)

// UnmarshalData decodes the message data into the provided value.
func (m *Message) UnmarshalData(v any) error {
	if m.dataRaw == nil {
		if m.Data == nil {
			return errors.New("message has no data")
		}
		b, err := json.Marshal(m.Data)
		if err != nil {
			return fmt.Errorf("marshal data: %w", err)
		}
		return json.Unmarshal(b, v)
	}
	return json.Unmarshal(m.dataRaw, v)
}

// isControlAction reports whether action is a heartbeat control action.
func isControlAction(action string) bool {
	return action == ActionPing || action == ActionPong
}

// generateID returns a new unique request ID.
func generateID() string {
	return uuid.New().String()
}

// wireMessage is the JSON wire format of a Message.
type wireMessage struct {
	Action    string          `json:"action"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`
}

// marshalMessage serializes a Message into its JSON wire format.
func marshalMessage(msg *Message) ([]byte, error) {
	var data json.RawMessage
	if msg.Data != nil {
		b, err := json.Marshal(msg.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal data: %w", err)
		}
		data = b
	} else if msg.dataRaw != nil {
		data = msg.dataRaw
	}

	return json.Marshal(wireMessage{
		Action:    msg.Action,
		Data:      data,
		Timestamp: msg.Timestamp,
		RequestID: msg.RequestID,
		From:      msg.From,
		To:        msg.To,
	})
}

// parseMessage parses an inbound frame. Any JSON object is a message, with
// or without an action. Inbound timestamps are trusted as sent.
func parseMessage(payload []byte) (*Message, error) {
	if bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		return nil, errors.New("parse message: null payload")
	}
	var w wireMessage
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	// Decode data into a generic value so Data is usable without UnmarshalData
	var data any
	if len(w.Data) > 0 {
		_ = json.Unmarshal(w.Data, &data)
	}

	return &Message{
		Action:    w.Action,
		Data:      data,
		Timestamp: w.Timestamp,
		RequestID: w.RequestID,
		From:      w.From,
		To:        w.To,
		dataRaw:   w.Data,
	}, nil
}
