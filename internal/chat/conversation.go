package chat

import (
	"strings"
	"time"
)

// NoMessages is the summary shown for a conversation whose thread is empty.
const NoMessages = "No messages"

// DefaultExternalPrefix marks user IDs that belong to the external messaging
// platform rather than locally simulated conversations.
const DefaultExternalPrefix = "fb_"

// Flags are the operator-controlled organisational markers on a conversation.
type Flags struct {
	Pinned   bool
	Muted    bool
	Archived bool
}

// FlagPatch is a partial update of Flags; nil fields are left untouched.
type FlagPatch struct {
	Pinned   *bool
	Muted    *bool
	Archived *bool
}

// Apply returns f with the non-nil fields of p written over it.
func (p FlagPatch) Apply(f Flags) Flags {
	if p.Pinned != nil {
		f.Pinned = *p.Pinned
	}
	if p.Muted != nil {
		f.Muted = *p.Muted
	}
	if p.Archived != nil {
		f.Archived = *p.Archived
	}
	return f
}

// Merge folds next into p, with next taking precedence.
func (p FlagPatch) Merge(next FlagPatch) FlagPatch {
	if next.Pinned != nil {
		p.Pinned = next.Pinned
	}
	if next.Muted != nil {
		p.Muted = next.Muted
	}
	if next.Archived != nil {
		p.Archived = next.Archived
	}
	return p
}

// IsZero reports whether the patch changes nothing.
func (p FlagPatch) IsZero() bool {
	return p.Pinned == nil && p.Muted == nil && p.Archived == nil
}

// Bool is a helper for building FlagPatch literals.
func Bool(v bool) *bool { return &v }

// Conversation is a thread with one external participant.
type Conversation struct {
	ID         string
	UserID     string
	UserName   string
	UserAvatar string

	Messages        []Message
	LastMessage     string
	LastMessageTime time.Time

	IsRead      bool
	UnreadCount int // advisory only
	IsOnline    bool

	Flags
}

// IsExternal reports whether the participant comes from the external
// messaging platform identified by prefix.
func (c Conversation) IsExternal(prefix string) bool {
	if prefix == "" {
		prefix = DefaultExternalPrefix
	}
	return strings.HasPrefix(c.UserID, prefix)
}

// RecomputeSummary refreshes LastMessage and LastMessageTime from the tail of
// Messages.
func (c *Conversation) RecomputeSummary() {
	if len(c.Messages) == 0 {
		c.LastMessage = NoMessages
		c.LastMessageTime = time.Time{}
		return
	}
	tail := c.Messages[len(c.Messages)-1]
	c.LastMessage = tail.Content
	c.LastMessageTime = tail.Timestamp
}

// MessageIndex returns the position of the message with id, or -1.
func (c Conversation) MessageIndex(id string) int {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of c.
func (c Conversation) Clone() Conversation {
	dup := c
	if c.Messages != nil {
		dup.Messages = make([]Message, len(c.Messages))
		copy(dup.Messages, c.Messages)
	}
	return dup
}

// CloneAll deep-copies a conversation slice.
func CloneAll(list []Conversation) []Conversation {
	if len(list) == 0 {
		return nil
	}
	out := make([]Conversation, len(list))
	for i := range list {
		out[i] = list[i].Clone()
	}
	return out
}

// Find returns the index of the conversation with id, or -1.
func Find(list []Conversation, id string) int {
	if id == "" {
		return -1
	}
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
