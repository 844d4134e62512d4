package desk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/five82/chatdesk/internal/backend"
	"github.com/five82/chatdesk/internal/chat"
	"github.com/five82/chatdesk/internal/state"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type fakeBackend struct {
	mu        sync.Mutex
	release   chan struct{}
	sendErr   error
	queryErr  error
	toggleErr error
	reply     string

	sent    []string
	queries []backend.QueryRequest
	toggles []bool
	targets []backend.Target
}

func (f *fakeBackend) wait(ctx context.Context) error {
	if f.release == nil {
		return nil
	}
	select {
	case <-f.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeBackend) SendExternal(ctx context.Context, recipientID, message string) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, recipientID+":"+message)
	return f.sendErr
}

func (f *fakeBackend) Query(ctx context.Context, q backend.QueryRequest) (string, error) {
	if err := f.wait(ctx); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.reply, f.queryErr
}

func (f *fakeBackend) ToggleAutomation(ctx context.Context, enable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.toggleErr != nil {
		return f.toggleErr
	}
	f.toggles = append(f.toggles, enable)
	return nil
}

func (f *fakeBackend) StartSession(ctx context.Context, target backend.Target) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = append(f.targets, target)
	return "sess-1", nil
}

func seedStore(t *testing.T, convs ...chat.Conversation) *state.Store {
	t.Helper()
	s := state.New(chat.DefaultPolicy())
	s.SetClock(func() time.Time { return testNow })
	s.Apply(0, convs)
	return s
}

func conversation(id, userID string, msgs ...chat.Message) chat.Conversation {
	c := chat.Conversation{ID: id, UserID: userID, UserName: id, IsRead: true, Messages: msgs}
	if len(msgs) == 0 {
		c.LastMessage = chat.NoMessages
		c.LastMessageTime = testNow.Add(-time.Hour)
		return c
	}
	c.RecomputeSummary()
	return c
}

func message(id string, typ chat.MessageType, content string) chat.Message {
	return chat.Message{ID: id, Type: typ, Content: content, Timestamp: testNow.Add(-time.Hour)}
}

func newDesk(t *testing.T, store *state.Store, be Backend, opts Options) *Desk {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	if opts.Emotion == nil {
		opts.Emotion = func() string { return "joy" }
	}
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	d := New(context.Background(), store, be, opts)
	t.Cleanup(d.Close)
	return d
}

func TestSend_AppendsBeforeNetworkResolves(t *testing.T) {
	store := seedStore(t, conversation("c", "fb_42", message("m1", chat.TypeUser, "hi")))
	be := &fakeBackend{release: make(chan struct{})}
	d := newDesk(t, store, be, Options{})
	if err := d.Select("c"); err != nil {
		t.Fatalf("Select returned error: %v", err)
	}

	msg, err := d.Send("  Hello ")
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	conv, _ := store.Conversation("c")
	last := conv.Messages[len(conv.Messages)-1]
	if last.ID != msg.ID || last.Type != chat.TypeAdmin || last.Content != "Hello" {
		t.Fatalf("tail = %#v, want admin Hello appended synchronously", last)
	}
	if conv.LastMessage != "Hello" {
		t.Fatalf("LastMessage = %q, want Hello", conv.LastMessage)
	}

	close(be.release)
	d.Wait()
	be.mu.Lock()
	defer be.mu.Unlock()
	if len(be.sent) != 1 || be.sent[0] != "42:Hello" {
		t.Fatalf("sent = %v, want [42:Hello] with prefix stripped", be.sent)
	}
}

func TestSend_FailureKeepsMessageAndFlagsIt(t *testing.T) {
	store := seedStore(t, conversation("c", "fb_42"))
	be := &fakeBackend{sendErr: errors.New("page token expired")}
	d := newDesk(t, store, be, Options{})
	_ = d.Select("c")

	msg, err := d.Send("Hello")
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	d.Wait()

	conv, _ := store.Conversation("c")
	if conv.MessageIndex(msg.ID) < 0 {
		t.Fatalf("message rolled back after failed delivery")
	}
	snap := store.Snapshot()
	if snap.SendErrors[msg.ID] == nil {
		t.Fatalf("SendErrors[%s] = nil, want delivery failure recorded", msg.ID)
	}
}

func TestSend_RequestsRefreshAfterExternalSend(t *testing.T) {
	store := seedStore(t, conversation("c", "fb_42"))
	refreshed := make(chan struct{}, 1)
	d := newDesk(t, store, &fakeBackend{}, Options{
		RefreshDelay: time.Millisecond,
		Refresh:      func() { refreshed <- struct{}{} },
	})
	_ = d.Select("c")
	if _, err := d.Send("Hello"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	select {
	case <-refreshed:
	case <-time.After(2 * time.Second):
		t.Fatalf("refresh was not requested")
	}
}

func TestSend_LocalWithAutomationAppendsBotReply(t *testing.T) {
	store := seedStore(t, conversation("c", "web_1"))
	be := &fakeBackend{reply: "We open at 9."}
	d := newDesk(t, store, be, Options{})
	_ = d.Select("c")
	if err := d.SetAutomation(context.Background(), true); err != nil {
		t.Fatalf("SetAutomation returned error: %v", err)
	}
	if _, err := d.StartSession(context.Background(), backend.Target{DBType: backend.DBMongo, DBName: "kb", Collection: "faq"}); err != nil {
		t.Fatalf("StartSession returned error: %v", err)
	}

	msg, err := d.Send("When do you open?")
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if msg.Type != chat.TypeUser {
		t.Fatalf("author = %v, want user for simulated conversation", msg.Type)
	}
	d.Wait()

	conv, _ := store.Conversation("c")
	last := conv.Messages[len(conv.Messages)-1]
	if last.Type != chat.TypeBot || last.Content != "We open at 9." || last.Emotion != "joy" {
		t.Fatalf("tail = %#v, want bot reply with emotion", last)
	}
	if last.ID <= msg.ID {
		t.Fatalf("reply id %q not after message id %q", last.ID, msg.ID)
	}
	be.mu.Lock()
	defer be.mu.Unlock()
	if len(be.queries) != 1 || be.queries[0].SessionID != "sess-1" || be.queries[0].Emotion != "joy" {
		t.Fatalf("queries = %#v", be.queries)
	}
}

func TestSend_LocalWithoutSessionFlagsFailure(t *testing.T) {
	store := seedStore(t, conversation("c", "web_1"))
	d := newDesk(t, store, &fakeBackend{}, Options{})
	_ = d.Select("c")
	_ = d.SetAutomation(context.Background(), true)

	msg, err := d.Send("hello?")
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	d.Wait()
	if !errors.Is(store.Snapshot().SendErrors[msg.ID], ErrNoSession) {
		t.Fatalf("send error = %v, want ErrNoSession", store.Snapshot().SendErrors[msg.ID])
	}
}

func TestSend_RequiresSelectionAndContent(t *testing.T) {
	store := seedStore(t, conversation("c", "fb_1"))
	d := newDesk(t, store, &fakeBackend{}, Options{})

	if _, err := d.Send("hi"); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("Send without selection error = %v, want ErrNoSelection", err)
	}
	_ = d.Select("c")
	if _, err := d.Send("   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("Send blank error = %v, want ErrEmptyMessage", err)
	}
	conv, _ := store.Conversation("c")
	if len(conv.Messages) != 0 {
		t.Fatalf("messages = %d, want nothing appended", len(conv.Messages))
	}
}

func TestNextID_StrictlyIncreasesWithinOneTick(t *testing.T) {
	d := newDesk(t, seedStore(t), &fakeBackend{}, Options{})
	seen := map[string]bool{}
	prev := ""
	for range 100 {
		id := d.nextID()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		if prev != "" && len(id) == len(prev) && id <= prev {
			t.Fatalf("id %q not after %q", id, prev)
		}
		seen[id] = true
		prev = id
	}
}

func TestEditAndDelete_ManualModeGate(t *testing.T) {
	store := seedStore(t, conversation("c", "fb_1",
		message("u1", chat.TypeUser, "question"),
		message("a1", chat.TypeAdmin, "teh answer"),
	))
	d := newDesk(t, store, &fakeBackend{}, Options{})

	if err := d.EditMessage("c", "u1", "x"); !errors.Is(err, ErrUserMessage) {
		t.Fatalf("EditMessage(user) error = %v, want ErrUserMessage", err)
	}
	if err := d.DeleteMessage("c", "u1"); !errors.Is(err, ErrUserMessage) {
		t.Fatalf("DeleteMessage(user) error = %v, want ErrUserMessage", err)
	}
	if err := d.EditMessage("c", "a1", "the answer"); err != nil {
		t.Fatalf("EditMessage returned error: %v", err)
	}
	conv, _ := store.Conversation("c")
	if conv.LastMessage != "the answer" {
		t.Fatalf("LastMessage = %q, want the answer", conv.LastMessage)
	}
	if last, ok := d.LastEditable("c"); !ok || last.ID != "a1" {
		t.Fatalf("LastEditable = %v, %v; want a1", last.ID, ok)
	}

	_ = d.SetAutomation(context.Background(), true)
	if err := d.DeleteMessage("c", "a1"); !errors.Is(err, ErrManualModeOnly) {
		t.Fatalf("DeleteMessage in automation error = %v, want ErrManualModeOnly", err)
	}
	if _, ok := d.LastEditable("c"); ok {
		t.Fatalf("LastEditable in automation = true, want false")
	}

	_ = d.SetAutomation(context.Background(), false)
	if err := d.DeleteMessage("c", "a1"); err != nil {
		t.Fatalf("DeleteMessage returned error: %v", err)
	}
	conv, _ = store.Conversation("c")
	if conv.LastMessage != "question" {
		t.Fatalf("LastMessage = %q, want question", conv.LastMessage)
	}
}

func TestSetAutomation_OnlyChangesOnSuccess(t *testing.T) {
	be := &fakeBackend{toggleErr: errors.New("boom")}
	d := newDesk(t, seedStore(t), be, Options{})
	if err := d.SetAutomation(context.Background(), true); err == nil {
		t.Fatalf("SetAutomation returned nil error")
	}
	if d.Automation() {
		t.Fatalf("Automation = true after failed toggle")
	}
}

func TestStartSession_ValidatesBeforeCalling(t *testing.T) {
	be := &fakeBackend{}
	d := newDesk(t, seedStore(t), be, Options{})
	_, err := d.StartSession(context.Background(), backend.Target{DBType: backend.DBPinecone, IndexName: "faq"})
	var verr *backend.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("StartSession error = %v, want *backend.ValidationError", err)
	}
	if len(be.targets) != 0 || d.SessionID() != "" {
		t.Fatalf("backend called for invalid target")
	}
}

func TestConversationFlags(t *testing.T) {
	store := seedStore(t,
		conversation("a", "fb_1", message("a1", chat.TypeUser, "newer")),
		conversation("b", "fb_2"),
	)
	d := newDesk(t, store, &fakeBackend{}, Options{})
	_ = d.Select("b")

	if err := d.TogglePin("b"); err != nil {
		t.Fatalf("TogglePin returned error: %v", err)
	}
	if got := store.Snapshot().Conversations[0].ID; got != "b" {
		t.Fatalf("first = %q, want pinned b", got)
	}
	if err := d.ToggleMute("a"); err != nil {
		t.Fatalf("ToggleMute returned error: %v", err)
	}
	if c, _ := store.Conversation("a"); !c.Muted {
		t.Fatalf("a not muted")
	}

	if err := d.Archive("b"); err != nil {
		t.Fatalf("Archive returned error: %v", err)
	}
	snap := store.Snapshot()
	if len(snap.Visible("")) != 1 || snap.SelectedID != "a" {
		t.Fatalf("visible = %d selected = %q, want 1 and fallback to a", len(snap.Visible("")), snap.SelectedID)
	}
	if err := d.Unarchive("b"); err != nil {
		t.Fatalf("Unarchive returned error: %v", err)
	}
	if len(store.Snapshot().Visible("")) != 2 {
		t.Fatalf("b not restored to default view")
	}

	if err := d.DeleteConversation("a"); err != nil {
		t.Fatalf("DeleteConversation returned error: %v", err)
	}
	if err := d.TogglePin("a"); !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("TogglePin(deleted) error = %v, want ErrNotFound", err)
	}
}
