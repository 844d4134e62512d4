package state

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/five82/chatdesk/internal/chat"
)

// ErrNotFound is returned when a conversation or message ID is unknown.
var ErrNotFound = errors.New("not found")

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	// Conversations is the full store list in display order, archived
	// conversations included.
	Conversations []chat.Conversation
	SelectedID    string
	// Selected is a copy of the selected conversation, nil when nothing is
	// selected or the selection has dropped out of the list.
	Selected *chat.Conversation
	Unseen   map[string]bool
	// SendErrors holds delivery failures keyed by message ID.
	SendErrors map[string]error

	Loaded              bool // at least one fetch has been applied
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int
}

// IsOffline returns true when the backend has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Visible returns the default list view: archived conversations are left out
// and query, when set, matches the user name or last message.
func (s Snapshot) Visible(query string) []chat.Conversation {
	return s.filter(query, false)
}

// Archived returns only archived conversations matching query.
func (s Snapshot) Archived(query string) []chat.Conversation {
	return s.filter(query, true)
}

func (s Snapshot) filter(query string, archived bool) []chat.Conversation {
	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]chat.Conversation, 0, len(s.Conversations))
	for _, c := range s.Conversations {
		if c.Archived != archived {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(c.UserName), needle) &&
			!strings.Contains(strings.ToLower(c.LastMessage), needle) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// UnseenCount counts non-archived conversations flagged as unseen.
func (s Snapshot) UnseenCount() int {
	n := 0
	for _, c := range s.Conversations {
		if !c.Archived && s.Unseen[c.ID] {
			n++
		}
	}
	return n
}

// Store coordinates concurrent access to the conversation list. All mutation
// paths recompute cached summaries through chat.Conversation.RecomputeSummary.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	policy   chat.Policy
	baseline []chat.Conversation
	list     []chat.Conversation
	selected string
	unseen   map[string]bool

	overrides  map[string]chat.FlagPatch
	pending    map[string][]chat.Message
	edits      map[string]map[string]chat.MessageEdit
	deleted    map[string]time.Time
	sendErrors map[string]error

	issued  uint64
	applied uint64

	loaded      bool
	lastUpdated time.Time
	lastError   error
	failures    int
}

// New returns a Store using policy for reconciliation. The zero Store is also
// ready to use and applies chat.DefaultPolicy.
func New(policy chat.Policy) *Store {
	return &Store{policy: policy}
}

// SetClock replaces the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// BeginFetch hands out a sequence number for a fetch about to start. Pass it
// back to Apply or Fail so late results from older fetches are ignored.
func (s *Store) BeginFetch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Apply reconciles a fetched list into the store. It returns false when the
// result belongs to a fetch older than one already applied.
func (s *Store) Apply(seq uint64, fetched []chat.Conversation) (chat.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != 0 && seq < s.applied {
		return chat.Result{}, false
	}
	if seq > s.applied {
		s.applied = seq
	}

	now := s.clock()
	res := chat.Reconcile(chat.Input{
		Baseline:  s.baseline,
		Fetched:   fetched,
		Selected:  s.selected,
		Overrides: s.overrides,
		Pending:   s.pending,
		Edits:     s.edits,
		Deleted:   s.deleted,
		Now:       now,
		Policy:    s.policy,
	})

	s.baseline = res.Baseline
	s.list = res.Conversations
	s.selected = res.Selected
	s.unseen = res.Unseen
	s.markSelectedReadLocked()

	for convID, echoed := range res.Echoed {
		for localID, remoteID := range echoed {
			s.dropPendingLocked(convID, localID)
			delete(s.sendErrors, localID)
			if edit, ok := s.edits[convID][localID]; ok {
				delete(s.edits[convID], localID)
				s.edits[convID][remoteID] = edit
			}
		}
	}
	for _, id := range res.Revived {
		delete(s.deleted, id)
	}

	s.loaded = true
	s.lastError = nil
	s.lastUpdated = now
	s.failures = 0
	return res, true
}

// Fail records a failed fetch. Previous data is kept so the UI keeps showing
// the last good list alongside the error.
func (s *Store) Fail(seq uint64, err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != 0 && seq < s.applied {
		return
	}
	s.lastError = err
	s.lastUpdated = s.clock()
	s.failures++
}

// ReplaceAll swaps the stored list for list. The selection is kept by ID and
// resolves against the new entries.
func (s *Store) ReplaceAll(list []chat.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.list = chat.CloneAll(list)
	unseen := make(map[string]bool, len(s.unseen))
	for _, c := range s.list {
		if s.unseen[c.ID] && c.ID != s.selected {
			unseen[c.ID] = true
		}
	}
	s.unseen = unseen
	s.markSelectedReadLocked()
}

// Select focuses the conversation with id and marks it read. An empty id
// clears the selection.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		s.selected = ""
		return nil
	}
	if chat.Find(s.list, id) < 0 {
		return fmt.Errorf("conversation %q: %w", id, ErrNotFound)
	}
	s.selected = id
	s.markSelectedReadLocked()
	return nil
}

// Selected returns the selected conversation ID, or "".
func (s *Store) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Conversation returns a copy of the conversation with id.
func (s *Store) Conversation(id string) (chat.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := chat.Find(s.list, id)
	if idx < 0 {
		return chat.Conversation{}, false
	}
	return s.list[idx].Clone(), true
}

// UpsertFlags applies patch to one conversation and remembers it so later
// polls keep the operator's choice. Unknown IDs are ignored and report false.
func (s *Store) UpsertFlags(id string, patch chat.FlagPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := chat.Find(s.list, id)
	if idx < 0 || patch.IsZero() {
		return false
	}
	if s.overrides == nil {
		s.overrides = make(map[string]chat.FlagPatch)
	}
	s.overrides[id] = s.overrides[id].Merge(patch)
	s.list[idx].Flags = patch.Apply(s.list[idx].Flags)

	archived := s.list[idx].Archived
	chat.SortConversations(s.list)
	if archived && s.selected == id {
		s.selected = s.fallbackLocked()
		s.markSelectedReadLocked()
	}
	return true
}

// AppendMessage adds msg to the tail of a conversation. Local messages are
// also kept as pending until the backend echoes them, so polls do not drop
// them.
func (s *Store) AppendMessage(convID string, msg chat.Message, local bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := chat.Find(s.list, convID)
	if idx < 0 {
		return fmt.Errorf("conversation %q: %w", convID, ErrNotFound)
	}
	conv := &s.list[idx]
	conv.Messages = append(conv.Messages, msg)
	conv.RecomputeSummary()
	if convID == s.selected {
		conv.IsRead = true
		conv.UnreadCount = 0
	}
	if local {
		if s.pending == nil {
			s.pending = make(map[string][]chat.Message)
		}
		s.pending[convID] = append(s.pending[convID], msg)
	}
	chat.SortConversations(s.list)
	return nil
}

// EditMessage replaces the content of one message in place.
func (s *Store) EditMessage(convID, msgID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, m, err := s.messageLocked(convID, msgID)
	if err != nil {
		return err
	}
	conv.Messages[m].Content = content
	conv.RecomputeSummary()
	s.recordEditLocked(convID, msgID, chat.MessageEdit{Content: content})
	return nil
}

// RemoveMessage deletes one message from a conversation.
func (s *Store) RemoveMessage(convID, msgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, m, err := s.messageLocked(convID, msgID)
	if err != nil {
		return err
	}
	conv.Messages = append(conv.Messages[:m:m], conv.Messages[m+1:]...)
	conv.RecomputeSummary()
	// Pending copies stay so a late echo can be matched and suppressed.
	s.recordEditLocked(convID, msgID, chat.MessageEdit{Removed: true})
	delete(s.sendErrors, msgID)
	chat.SortConversations(s.list)
	return nil
}

func (s *Store) recordEditLocked(convID, msgID string, edit chat.MessageEdit) {
	if s.edits == nil {
		s.edits = make(map[string]map[string]chat.MessageEdit)
	}
	if s.edits[convID] == nil {
		s.edits[convID] = make(map[string]chat.MessageEdit)
	}
	s.edits[convID][msgID] = edit
}

// DeleteConversation removes a conversation. If it was selected, the first
// remaining non-archived conversation takes over, or nothing.
func (s *Store) DeleteConversation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := chat.Find(s.list, id)
	if idx < 0 {
		return fmt.Errorf("conversation %q: %w", id, ErrNotFound)
	}

	watermark := s.list[idx].LastMessageTime
	if b := chat.Find(s.baseline, id); b >= 0 {
		watermark = s.baseline[b].LastMessageTime
	}
	if s.deleted == nil {
		s.deleted = make(map[string]time.Time)
	}
	s.deleted[id] = watermark

	for _, m := range s.pending[id] {
		delete(s.sendErrors, m.ID)
	}
	delete(s.pending, id)
	delete(s.edits, id)
	delete(s.overrides, id)
	delete(s.unseen, id)
	s.list = append(s.list[:idx:idx], s.list[idx+1:]...)

	if s.selected == id {
		s.selected = s.fallbackLocked()
		s.markSelectedReadLocked()
	}
	return nil
}

// MarkSendFailed flags a message whose delivery could not be confirmed.
func (s *Store) MarkSendFailed(msgID string, err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErrors == nil {
		s.sendErrors = make(map[string]error)
	}
	s.sendErrors[msgID] = err
}

// ClearSendError removes the delivery warning for a message.
func (s *Store) ClearSendError(msgID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sendErrors, msgID)
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Conversations:       chat.CloneAll(s.list),
		SelectedID:          s.selected,
		Unseen:              make(map[string]bool, len(s.unseen)),
		SendErrors:          make(map[string]error, len(s.sendErrors)),
		Loaded:              s.loaded,
		LastUpdated:         s.lastUpdated,
		ConsecutiveFailures: s.failures,
	}
	for id, v := range s.unseen {
		snap.Unseen[id] = v
	}
	for id, err := range s.sendErrors {
		snap.SendErrors[id] = err
	}
	if idx := chat.Find(snap.Conversations, s.selected); idx >= 0 {
		sel := snap.Conversations[idx].Clone()
		snap.Selected = &sel
	}
	if s.lastError != nil {
		snap.LastError = fmt.Errorf("%w", s.lastError)
	}
	return snap
}

func (s *Store) messageLocked(convID, msgID string) (*chat.Conversation, int, error) {
	idx := chat.Find(s.list, convID)
	if idx < 0 {
		return nil, -1, fmt.Errorf("conversation %q: %w", convID, ErrNotFound)
	}
	conv := &s.list[idx]
	m := conv.MessageIndex(msgID)
	if m < 0 {
		return nil, -1, fmt.Errorf("message %q: %w", msgID, ErrNotFound)
	}
	return conv, m, nil
}

func (s *Store) dropPendingLocked(convID, msgID string) {
	pending := s.pending[convID]
	for i := range pending {
		if pending[i].ID == msgID {
			pending = append(pending[:i:i], pending[i+1:]...)
			break
		}
	}
	if len(pending) == 0 {
		delete(s.pending, convID)
		return
	}
	s.pending[convID] = pending
}

func (s *Store) fallbackLocked() string {
	for _, c := range s.list {
		if !c.Archived {
			return c.ID
		}
	}
	return ""
}

func (s *Store) markSelectedReadLocked() {
	idx := chat.Find(s.list, s.selected)
	if idx < 0 {
		return
	}
	s.list[idx].IsRead = true
	s.list[idx].UnreadCount = 0
	delete(s.unseen, s.selected)
}
