package chat

import (
	"fmt"
	"strings"
	"time"
)

// MessageType identifies who authored a message.
type MessageType int

const (
	// TypeUser is a message from the external chat participant.
	TypeUser MessageType = iota + 1
	// TypeAdmin is a message written by a human operator.
	TypeAdmin
	// TypeBot is a reply produced by the automated assistant.
	TypeBot
)

// String returns the wire name of the type.
func (t MessageType) String() string {
	switch t {
	case TypeUser:
		return "user"
	case TypeAdmin:
		return "admin"
	case TypeBot:
		return "bot"
	default:
		return fmt.Sprintf("MessageType(%d)", int(t))
	}
}

// Valid reports whether t is one of the known authors.
func (t MessageType) Valid() bool {
	switch t {
	case TypeUser, TypeAdmin, TypeBot:
		return true
	default:
		return false
	}
}

// ParseMessageType maps a wire string onto a MessageType.
func ParseMessageType(raw string) (MessageType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "user":
		return TypeUser, nil
	case "admin":
		return TypeAdmin, nil
	case "bot":
		return TypeBot, nil
	default:
		return 0, fmt.Errorf("unknown message type %q", raw)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t MessageType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid message type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *MessageType) UnmarshalText(text []byte) error {
	parsed, err := ParseMessageType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Message is a single entry in a conversation thread.
type Message struct {
	ID        string
	Type      MessageType
	Content   string
	Timestamp time.Time
	Emotion   string // optional classifier tag on bot replies
}

// MessageEdit is an operator change to one message: new content, or removal.
type MessageEdit struct {
	Content string
	Removed bool
}
