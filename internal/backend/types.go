package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/five82/chatdesk/internal/chat"
)

// ErrMalformedPayload marks a response that decoded as JSON but does not
// describe valid conversations.
var ErrMalformedPayload = errors.New("malformed payload")

// Timestamp is a date as the backend sends it: an ISO string (zoned or
// naive), or epoch seconds/milliseconds.
type Timestamp string

// UnmarshalJSON accepts strings, numbers, and null.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Timestamp(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	*t = Timestamp(n.String())
	return nil
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Parse converts the timestamp to a time.Time. Naive values are interpreted
// in loc (UTC when loc is nil).
func (t Timestamp) Parse(loc *time.Location) (time.Time, error) {
	raw := strings.TrimSpace(string(t))
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if loc == nil {
		loc = time.UTC
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts, nil
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		// Values past 1e12 are milliseconds (JavaScript Date.now()).
		if n > 1e12 {
			return time.UnixMilli(int64(n)).UTC(), nil
		}
		sec := int64(n)
		return time.Unix(sec, int64((n-float64(sec))*1e9)).UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// FlexID accepts both string and numeric identifiers.
type FlexID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = FlexID(n.String())
	return nil
}

// ConversationListResponse mirrors /api/facebook/conversations.
type ConversationListResponse struct {
	Conversations []ConversationDTO `json:"conversations"`
}

// ConversationDTO is a conversation in transport form.
type ConversationDTO struct {
	ID              FlexID       `json:"id"`
	UserID          string       `json:"userId"`
	UserName        string       `json:"userName"`
	UserAvatar      string       `json:"userAvatar,omitempty"`
	LastMessage     string       `json:"lastMessage"`
	LastMessageTime Timestamp    `json:"lastMessageTime"`
	UnreadCount     int          `json:"unreadCount"`
	IsRead          bool         `json:"isRead"`
	IsOnline        bool         `json:"isOnline"`
	IsPinned        bool         `json:"isPinned,omitempty"`
	IsMuted         bool         `json:"isMuted,omitempty"`
	IsArchived      bool         `json:"isArchived,omitempty"`
	Messages        []MessageDTO `json:"messages"`
}

// MessageDTO is a message in transport form.
type MessageDTO struct {
	ID        FlexID    `json:"id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp"`
	Emotion   string    `json:"emotion,omitempty"`
}

// ToConversation validates the DTO and converts it into the domain type.
// Absent flags decode as false.
func (d ConversationDTO) ToConversation(loc *time.Location) (chat.Conversation, error) {
	id := strings.TrimSpace(string(d.ID))
	if id == "" {
		return chat.Conversation{}, fmt.Errorf("conversation without id: %w", ErrMalformedPayload)
	}
	conv := chat.Conversation{
		ID:          id,
		UserID:      d.UserID,
		UserName:    d.UserName,
		UserAvatar:  d.UserAvatar,
		LastMessage: d.LastMessage,
		IsRead:      d.IsRead,
		UnreadCount: max(d.UnreadCount, 0),
		IsOnline:    d.IsOnline,
		Flags: chat.Flags{
			Pinned:   d.IsPinned,
			Muted:    d.IsMuted,
			Archived: d.IsArchived,
		},
	}
	if conv.UserName == "" {
		conv.UserName = conv.UserID
	}

	if len(d.Messages) > 0 {
		conv.Messages = make([]chat.Message, 0, len(d.Messages))
	}
	for i, m := range d.Messages {
		msgType, err := chat.ParseMessageType(m.Type)
		if err != nil {
			return chat.Conversation{}, fmt.Errorf("conversation %s message %d: %v: %w", id, i, err, ErrMalformedPayload)
		}
		ts, err := m.Timestamp.Parse(loc)
		if err != nil {
			return chat.Conversation{}, fmt.Errorf("conversation %s message %d: %v: %w", id, i, err, ErrMalformedPayload)
		}
		msgID := string(m.ID)
		if msgID == "" {
			msgID = fmt.Sprintf("%s-%d", id, i)
		}
		conv.Messages = append(conv.Messages, chat.Message{
			ID:        msgID,
			Type:      msgType,
			Content:   m.Content,
			Timestamp: ts,
			Emotion:   m.Emotion,
		})
	}

	if len(conv.Messages) > 0 {
		conv.RecomputeSummary()
		return conv, nil
	}
	ts, err := d.LastMessageTime.Parse(loc)
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("conversation %s lastMessageTime: %v: %w", id, err, ErrMalformedPayload)
	}
	conv.LastMessageTime = ts
	if conv.LastMessage == "" {
		conv.LastMessage = chat.NoMessages
	}
	return conv, nil
}

// SendRequest is the body of /api/facebook/send.
type SendRequest struct {
	RecipientID string `json:"recipient_id"`
	Message     string `json:"message"`
}

// QueryRequest asks the assistant for a reply.
type QueryRequest struct {
	SessionID string
	Question  string
	Emotion   string
}

// QueryResponse mirrors /api/query.
type QueryResponse struct {
	Response string `json:"response"`
}

// DBType selects the knowledge-base storage backend.
type DBType string

const (
	DBMongo    DBType = "MongoDB"
	DBPinecone DBType = "Pinecone"
)

// ParseDBType accepts case-insensitive names.
func ParseDBType(raw string) (DBType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mongodb", "mongo":
		return DBMongo, nil
	case "pinecone":
		return DBPinecone, nil
	default:
		return "", fmt.Errorf("unsupported db type %q (supported: MongoDB, Pinecone)", raw)
	}
}

// Target names the database/collection or index/namespace a session is bound to.
type Target struct {
	DBType     DBType
	DBName     string
	Collection string
	IndexName  string
	Namespace  string
}

// ValidationError reports missing session fields.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// Validate checks that the fields required by DBType are present.
func (t Target) Validate() error {
	var missing []string
	switch t.DBType {
	case DBMongo:
		if strings.TrimSpace(t.DBName) == "" {
			missing = append(missing, "db_name")
		}
		if strings.TrimSpace(t.Collection) == "" {
			missing = append(missing, "collection_name")
		}
	case DBPinecone:
		if strings.TrimSpace(t.IndexName) == "" {
			missing = append(missing, "index_name")
		}
		if strings.TrimSpace(t.Namespace) == "" {
			missing = append(missing, "namespace")
		}
	default:
		missing = append(missing, "db_type")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

func (t Target) fields() map[string]string {
	out := map[string]string{"db_type": string(t.DBType)}
	switch t.DBType {
	case DBMongo:
		out["db_name"] = strings.TrimSpace(t.DBName)
		out["collection_name"] = strings.TrimSpace(t.Collection)
	case DBPinecone:
		out["index_name"] = strings.TrimSpace(t.IndexName)
		out["namespace"] = strings.TrimSpace(t.Namespace)
	}
	return out
}

// SessionResponse mirrors /api/start_session and /api/upload.
type SessionResponse struct {
	SessionID string `json:"session_id"`
	Error     string `json:"error"`
}

// PineconeIndex is an entry from /api/pinecone/indexes. The backend sends
// either bare names or objects.
type PineconeIndex struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension,omitempty"`
	Metric    string `json:"metric,omitempty"`
}

// UnmarshalJSON accepts a string or an object.
func (p *PineconeIndex) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &p.Name)
	}
	type plain PineconeIndex
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = PineconeIndex(v)
	return nil
}

// Profile is a named set of backend environment variables.
type Profile struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Variables   map[string]any `json:"variables"`
	CreatedAt   Timestamp      `json:"created_at"`
	UpdatedAt   Timestamp      `json:"updated_at"`
	IsActive    bool           `json:"is_active"`
}

// Env returns the profile variables as strings.
func (p Profile) Env() map[string]string {
	out := make(map[string]string, len(p.Variables))
	for k, v := range p.Variables {
		switch val := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = val
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

// ProfileInput is the body for creating or updating a profile.
type ProfileInput struct {
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Variables   map[string]string `json:"variables"`
}
