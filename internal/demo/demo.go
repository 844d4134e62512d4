// Package demo serves conversations defined in a YAML file through the same
// interfaces as the backend client, so chatdesk can run without a backend.
package demo

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/five82/chatdesk/internal/backend"
	"github.com/five82/chatdesk/internal/chat"
)

//go:embed sample.yaml
var sample []byte

// Sample returns the built-in demo file.
func Sample() []byte {
	return append([]byte(nil), sample...)
}

// ErrUnknownRecipient is returned by SendExternal when no conversation
// belongs to the recipient.
var ErrUnknownRecipient = errors.New("unknown recipient")

const defaultReply = "Thanks for your message!"

// File is the on-disk layout of a demo file.
type File struct {
	ExternalPrefix string             `yaml:"external_prefix,omitempty"`
	Replies        []string           `yaml:"replies,omitempty"`
	Conversations  []ConversationSpec `yaml:"conversations"`
}

// ConversationSpec describes one demo conversation.
type ConversationSpec struct {
	ID       string        `yaml:"id"`
	UserID   string        `yaml:"user_id"`
	UserName string        `yaml:"user_name,omitempty"`
	Avatar   string        `yaml:"avatar,omitempty"`
	Online   bool          `yaml:"online,omitempty"`
	Read     bool          `yaml:"read,omitempty"`
	Unread   int           `yaml:"unread,omitempty"`
	Pinned   bool          `yaml:"pinned,omitempty"`
	Muted    bool          `yaml:"muted,omitempty"`
	Archived bool          `yaml:"archived,omitempty"`
	Messages []MessageSpec `yaml:"messages,omitempty"`
}

// MessageSpec is a message whose time is given as an age, e.g. "15m".
type MessageSpec struct {
	ID      string `yaml:"id,omitempty"`
	Type    string `yaml:"type"`
	Content string `yaml:"content"`
	Ago     string `yaml:"ago,omitempty"`
	Emotion string `yaml:"emotion,omitempty"`
}

// Source holds demo conversations in memory. Sends are appended to the
// matching conversation so the next fetch echoes them, like the real backend.
type Source struct {
	mu         sync.Mutex
	now        func() time.Time
	prefix     string
	replies    []string
	next       int
	convs      []chat.Conversation
	automation bool
	seq        int
}

// Load reads a demo file. An empty path loads the built-in sample.
func Load(path string) (*Source, error) {
	data := sample
	if strings.TrimSpace(path) != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read demo file: %w", err)
		}
	}
	return Parse(data, time.Now)
}

// Parse decodes a demo file, resolving message ages against now().
func Parse(data []byte, now func() time.Time) (*Source, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse demo file: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	base := now()
	convs := make([]chat.Conversation, 0, len(f.Conversations))
	seen := make(map[string]bool, len(f.Conversations))
	for i, spec := range f.Conversations {
		conv, err := spec.toConversation(base)
		if err != nil {
			return nil, fmt.Errorf("parse demo file: conversation %d: %w", i, err)
		}
		if seen[conv.ID] {
			return nil, fmt.Errorf("parse demo file: duplicate conversation id %q", conv.ID)
		}
		seen[conv.ID] = true
		convs = append(convs, conv)
	}
	prefix := strings.TrimSpace(f.ExternalPrefix)
	if prefix == "" {
		prefix = chat.DefaultExternalPrefix
	}
	replies := f.Replies
	if len(replies) == 0 {
		replies = []string{defaultReply}
	}
	return &Source{now: now, prefix: prefix, replies: replies, convs: convs}, nil
}

func (s ConversationSpec) toConversation(base time.Time) (chat.Conversation, error) {
	id := strings.TrimSpace(s.ID)
	if id == "" {
		return chat.Conversation{}, errors.New("id is required")
	}
	conv := chat.Conversation{
		ID:          id,
		UserID:      strings.TrimSpace(s.UserID),
		UserName:    strings.TrimSpace(s.UserName),
		UserAvatar:  s.Avatar,
		IsRead:      s.Read,
		UnreadCount: s.Unread,
		IsOnline:    s.Online,
		Flags:       chat.Flags{Pinned: s.Pinned, Muted: s.Muted, Archived: s.Archived},
	}
	if conv.UserName == "" {
		conv.UserName = conv.UserID
	}
	for j, m := range s.Messages {
		typ, err := chat.ParseMessageType(m.Type)
		if err != nil {
			return chat.Conversation{}, fmt.Errorf("message %d: %w", j, err)
		}
		var age time.Duration
		if m.Ago != "" {
			age, err = time.ParseDuration(m.Ago)
			if err != nil {
				return chat.Conversation{}, fmt.Errorf("message %d: ago: %w", j, err)
			}
		}
		msgID := m.ID
		if msgID == "" {
			msgID = fmt.Sprintf("%s-%d", id, j+1)
		}
		conv.Messages = append(conv.Messages, chat.Message{
			ID:        msgID,
			Type:      typ,
			Content:   m.Content,
			Timestamp: base.Add(-age),
			Emotion:   m.Emotion,
		})
	}
	conv.RecomputeSummary()
	return conv, nil
}

// FetchConversations implements backend.ConversationFetcher.
func (s *Source) FetchConversations(ctx context.Context) ([]chat.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return chat.CloneAll(s.convs), nil
}

// SendExternal appends an admin message to the conversation whose user ID is
// the prefixed recipient.
func (s *Source) SendExternal(ctx context.Context, recipientID, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.convs {
		if s.convs[i].UserID == s.prefix+recipientID {
			s.appendLocked(&s.convs[i], chat.TypeAdmin, message)
			return nil
		}
	}
	return fmt.Errorf("send to %q: %w", recipientID, ErrUnknownRecipient)
}

// Query answers with the next canned reply.
func (s *Source) Query(ctx context.Context, q backend.QueryRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	reply := s.replies[s.next%len(s.replies)]
	s.next++
	return reply, nil
}

// ToggleAutomation records the switch; it never fails.
func (s *Source) ToggleAutomation(ctx context.Context, enable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.automation = enable
	return ctx.Err()
}

// StartSession validates target and hands out a demo session ID.
func (s *Source) StartSession(ctx context.Context, target backend.Target) (string, error) {
	if err := target.Validate(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("demo-session-%d", s.seq), nil
}

// Automation reports the last toggle.
func (s *Source) Automation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.automation
}

// Prefix is the external prefix the demo file declares.
func (s *Source) Prefix() string {
	return s.prefix
}

func (s *Source) appendLocked(conv *chat.Conversation, typ chat.MessageType, content string) {
	now := s.now()
	conv.Messages = append(conv.Messages, chat.Message{
		ID:        fmt.Sprintf("%s-%d", conv.ID, len(conv.Messages)+1),
		Type:      typ,
		Content:   content,
		Timestamp: now,
	})
	conv.RecomputeSummary()
}

// Capture converts conversations into a demo file with ages relative to
// now, so a live backend's state can be replayed later.
func Capture(convs []chat.Conversation, prefix string, now time.Time) File {
	f := File{ExternalPrefix: prefix, Conversations: make([]ConversationSpec, 0, len(convs))}
	for _, c := range convs {
		spec := ConversationSpec{
			ID:       c.ID,
			UserID:   c.UserID,
			UserName: c.UserName,
			Avatar:   c.UserAvatar,
			Online:   c.IsOnline,
			Read:     c.IsRead,
			Unread:   c.UnreadCount,
			Pinned:   c.Pinned,
			Muted:    c.Muted,
			Archived: c.Archived,
		}
		for _, m := range c.Messages {
			age := now.Sub(m.Timestamp).Round(time.Second)
			if age < 0 {
				age = 0
			}
			spec.Messages = append(spec.Messages, MessageSpec{
				ID:      m.ID,
				Type:    m.Type.String(),
				Content: m.Content,
				Ago:     age.String(),
				Emotion: m.Emotion,
			})
		}
		f.Conversations = append(f.Conversations, spec)
	}
	return f
}

// Write encodes f as YAML.
func Write(w io.Writer, f File) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode demo file: %w", err)
	}
	return enc.Close()
}

var _ backend.ConversationFetcher = (*Source)(nil)
