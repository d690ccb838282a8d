// Package domain contains core concepts of the chat relay.
// This file defines Message values and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"chat-relay/errors"
	"strings"
)

// Message represents one line of chat text, without its trailing newline.
type Message struct {
	Text string
}

// NewMessage trims the raw line and refuses content that is empty once trimmed.
func NewMessage(line string) (Message, error) {
	text := strings.TrimSpace(line)
	if text == "" {
		return Message{}, errors.ErrEmptyMessage
	}
	return Message{Text: text}, nil
}

func (m Message) String() string {
	return m.Text
}
