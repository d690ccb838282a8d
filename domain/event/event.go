package event

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"net/netip"
	"time"
)

// Payload is one of Connected, MessagePosted or Disconnected.
type Payload interface {
	// Describe returns the human-readable text shown after the origin.
	Describe() string
	isPayload()
}

// Reason explains why a participant left.
type Reason int

const (
	EndOfStream Reason = iota
	FloodKicked
)

func (r Reason) String() string {
	switch r {
	case FloodKicked:
		return "flood_kicked"
	default:
		return "end_of_stream"
	}
}

type Connected struct{}

func (Connected) Describe() string { return "connected to the server" }
func (Connected) isPayload()       {}

type MessagePosted struct {
	Text string
}

func (m MessagePosted) Describe() string { return m.Text }
func (MessagePosted) isPayload()         {}

type Disconnected struct {
	Reason Reason
}

func (d Disconnected) Describe() string {
	if d.Reason == FloodKicked {
		return "has been kicked for spamming"
	}
	return "disconnected from the server"
}
func (Disconnected) isPayload() {}

// Event is an immutable fact broadcast to every session.
// An invalid Origin means the event was emitted by the server itself.
type Event struct {
	Origin  netip.Addr
	Payload Payload
	At      time.Time
}

func New(origin netip.Addr, payload Payload) Event {
	return Event{Origin: origin, Payload: payload, At: time.Now().UTC()}
}

// NewMessageEvent wraps a validated Message; empty text is refused.
func NewMessageEvent(origin netip.Addr, message domain.Message) (Event, error) {
	if message.Text == "" {
		return Event{}, errors.ErrEmptyMessage
	}
	return New(origin, MessagePosted{Text: message.Text}), nil
}

// Kind is a short label used for metrics and logs.
func (e Event) Kind() string {
	switch p := e.Payload.(type) {
	case Connected:
		return "connect"
	case MessagePosted:
		return "message"
	case Disconnected:
		return "disconnect_" + p.Reason.String()
	default:
		return "unknown"
	}
}

// Render formats the event for peers, newline included.
func (e Event) Render() string {
	token := domain.DisplayToken(e.Origin)
	if msg, ok := e.Payload.(MessagePosted); ok {
		return "<" + token + "> " + msg.Text + "\n"
	}
	return token + " - " + e.Payload.Describe() + "\n"
}

// OriginLabel formats the origin for operators, raw address included.
func (e Event) OriginLabel() string {
	if !e.Origin.IsValid() {
		return "[" + domain.ServerToken + "]"
	}
	return "[" + e.Origin.String() + "] <" + domain.DisplayToken(e.Origin) + ">"
}
