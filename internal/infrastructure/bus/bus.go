// Package bus provides the message-bus boundary: the wire envelope consumed
// and produced by the engine, and a websocket transport client. The bus
// itself is an external collaborator; only its interface is modeled here.
package bus

import (
	"encoding/json"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// Kind is the interaction kind of a message. One-way messages never produce
// a reply; two-way messages always produce exactly one.
type Kind string

const (
	OneWay Kind = "1w"
	TwoWay Kind = "2w"
	Reply  Kind = "r"
)

// Message is the JSON envelope exchanged with the bus.
type Message struct {
	ID      string            `json:"id"`
	Subject string            `json:"subject"`
	Kind    Kind              `json:"kind"`
	Targets []string          `json:"targets,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
	ReplyTo string            `json:"replyTo,omitempty"`
}

// Device returns the device metadata attached to the envelope, if any.
func (m *Message) Device() string {
	if m.Meta == nil {
		return ""
	}
	return m.Meta["device"]
}

// String renders a compact description for logging.
func (m *Message) String() string {
	return fmt.Sprintf("%s-%s [%s] targets=%v", m.Subject, m.Kind, m.ID, m.Targets)
}

// NewReply builds the reply envelope for a two-way message.
func NewReply(msg *Message, body any) (*Message, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reply body: %w", err)
	}
	return &Message{
		ID:      ulid.Make().String(),
		Subject: msg.Subject,
		Kind:    Reply,
		ReplyTo: msg.ID,
		Body:    raw,
	}, nil
}

// ErrorBody is the reply body for a failed two-way request.
type ErrorBody struct {
	Error string `json:"error"`
}

// Sender sends messages back onto the bus.
type Sender interface {
	Send(msg *Message) error
}

// Handler processes one inbound message.
type Handler func(msg *Message)
