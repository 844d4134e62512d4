package ui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/chatdesk/internal/backend"
	"github.com/five82/chatdesk/internal/chat"
	"github.com/five82/chatdesk/internal/desk"
	"github.com/five82/chatdesk/internal/prefs"
	"github.com/five82/chatdesk/internal/state"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type stubBackend struct {
	mu         sync.Mutex
	sent       []string
	toggles    []bool
	targets    []backend.Target
	toggleErr  error
	sessionErr error
}

func (s *stubBackend) SendExternal(ctx context.Context, recipientID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, recipientID+":"+message)
	return nil
}

func (s *stubBackend) Query(ctx context.Context, q backend.QueryRequest) (string, error) {
	return "ok", nil
}

func (s *stubBackend) ToggleAutomation(ctx context.Context, enable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.toggleErr != nil {
		return s.toggleErr
	}
	s.toggles = append(s.toggles, enable)
	return nil
}

func (s *stubBackend) StartSession(ctx context.Context, target backend.Target) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionErr != nil {
		return "", s.sessionErr
	}
	s.targets = append(s.targets, target)
	return "sess-9", nil
}

func testConversation(id, userID string, ago time.Duration, msgs ...chat.Message) chat.Conversation {
	if len(msgs) == 0 {
		msgs = []chat.Message{{ID: id + "-1", Type: chat.TypeUser, Content: "hello from " + id, Timestamp: testNow.Add(-ago)}}
	}
	c := chat.Conversation{ID: id, UserID: userID, UserName: "User " + id, IsRead: true, Messages: msgs}
	c.RecomputeSummary()
	return c
}

type harness struct {
	store    *state.Store
	desk     *desk.Desk
	be       *stubBackend
	prefs    string
	refreshN int
}

func newTestModel(t *testing.T, convs ...chat.Conversation) (Model, *harness) {
	t.Helper()
	if len(convs) == 0 {
		convs = []chat.Conversation{
			testConversation("a", "fb_100", 2*time.Minute),
			testConversation("b", "fb_200", 10*time.Minute),
		}
	}
	store := state.New(chat.DefaultPolicy())
	store.SetClock(func() time.Time { return testNow })
	store.Apply(store.BeginFetch(), convs)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	be := &stubBackend{}
	d := desk.New(context.Background(), store, be, desk.Options{
		Logger:  logger,
		Now:     func() time.Time { return testNow },
		Emotion: func() string { return "neutral" },
	})
	t.Cleanup(d.Close)

	h := &harness{store: store, desk: d, be: be, prefs: filepath.Join(t.TempDir(), "prefs.toml")}
	m := New(Options{
		Context:      context.Background(),
		Store:        store,
		Desk:         d,
		Refresh:      func() { h.refreshN++ },
		Location:     time.UTC,
		PollInterval: 3 * time.Second,
		PrefsPath:    h.prefs,
		Logger:       logger,
		Now:          func() time.Time { return testNow },
	})
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = update(t, m, snapshotMsg(store.Snapshot()))
	return m, h
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return out
}

// press sends one key and runs the command it returns, feeding finished
// actions back in. Commands that block, such as cursor blinks, are dropped.
func press(t *testing.T, m Model, k string) Model {
	t.Helper()
	next, cmd := m.Update(keyMsg(k))
	m = next.(Model)
	if cmd == nil {
		return m
	}
	return feed(t, m, run(cmd))
}

func feed(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	switch msg := msg.(type) {
	case actionMsg, sessionMsg, snapshotMsg, logLinesMsg:
		m = update(t, m, msg)
	case tea.BatchMsg:
		for _, c := range msg {
			if c != nil {
				m = feed(t, m, run(c))
			}
		}
	}
	return m
}

func run(cmd tea.Cmd) tea.Msg {
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+t":
		return tea.KeyMsg{Type: tea.KeyCtrlT}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestModel_NavigationSelectsConversation(t *testing.T) {
	m, h := newTestModel(t)
	if m.snapshot.SelectedID != "a" {
		t.Fatalf("initial selection = %q, want a", m.snapshot.SelectedID)
	}

	m = press(t, m, "j")
	if got := h.store.Selected(); got != "b" {
		t.Fatalf("store selection after j = %q, want b", got)
	}
	m = press(t, m, "j")
	if m.snapshot.SelectedID != "b" {
		t.Fatalf("selection past the end = %q, want it to stay on b", m.snapshot.SelectedID)
	}
	m = press(t, m, "g")
	if m.snapshot.SelectedID != "a" {
		t.Fatalf("selection after g = %q, want a", m.snapshot.SelectedID)
	}
}

func TestModel_ComposeAndSend(t *testing.T) {
	m, h := newTestModel(t)

	m = press(t, m, "enter")
	if m.focus != focusComposer {
		t.Fatalf("focus = %v, want composer", m.focus)
	}
	m = typeText(t, m, "on my way")
	m = press(t, m, "enter")

	conv, _ := h.store.Conversation("a")
	last := conv.Messages[len(conv.Messages)-1]
	if last.Content != "on my way" || last.Type != chat.TypeAdmin {
		t.Fatalf("last message = %+v, want admin reply appended", last)
	}
	if m.composer.Value() != "" {
		t.Fatalf("composer = %q, want cleared after send", m.composer.Value())
	}
	if !strings.Contains(m.renderThread(*m.snapshot.Selected, 80), "on my way") {
		t.Fatalf("thread does not show the sent reply")
	}

	h.desk.Wait()
	h.be.mu.Lock()
	defer h.be.mu.Unlock()
	if len(h.be.sent) != 1 || h.be.sent[0] != "100:on my way" {
		t.Fatalf("sent = %v, want one external send to 100", h.be.sent)
	}
}

func TestModel_EmptySendShowsError(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(t, m, "enter")
	m = press(t, m, "enter")
	if !m.notice.err || m.notice.text != desk.ErrEmptyMessage.Error() {
		t.Fatalf("notice = %+v, want empty message error", m.notice)
	}
}

func TestModel_EditLastReply(t *testing.T) {
	conv := testConversation("a", "fb_100", time.Minute,
		chat.Message{ID: "u1", Type: chat.TypeUser, Content: "hi", Timestamp: testNow.Add(-2 * time.Minute)},
		chat.Message{ID: "r1", Type: chat.TypeAdmin, Content: "helo", Timestamp: testNow.Add(-time.Minute)},
	)
	m, h := newTestModel(t, conv)

	m = press(t, m, "E")
	if m.editing == nil || m.editing.msgID != "r1" || m.composer.Value() != "helo" {
		t.Fatalf("editing = %+v composer %q, want r1 prefilled", m.editing, m.composer.Value())
	}
	m.composer.SetValue("hello")
	m = press(t, m, "enter")

	got, _ := h.store.Conversation("a")
	if got.Messages[1].Content != "hello" {
		t.Fatalf("edited content = %q, want hello", got.Messages[1].Content)
	}
	if m.editing != nil || m.focus != focusList {
		t.Fatalf("editing = %+v focus %v, want editor closed", m.editing, m.focus)
	}
}

func TestModel_PinMuteArchive(t *testing.T) {
	m, h := newTestModel(t)

	m = press(t, m, "j") // b
	m = press(t, m, "p")
	b, _ := h.store.Conversation("b")
	if !b.Pinned {
		t.Fatalf("b not pinned")
	}
	if m.snapshot.Conversations[0].ID != "b" {
		t.Fatalf("pinned conversation not first: %v", m.snapshot.Conversations[0].ID)
	}

	m = press(t, m, "m")
	b, _ = h.store.Conversation("b")
	if !b.Muted {
		t.Fatalf("b not muted")
	}

	m = press(t, m, "a")
	if list := m.listed(); len(list) != 1 || list[0].ID != "a" {
		t.Fatalf("inbox after archive = %v, want only a", list)
	}
	m = press(t, m, "v")
	if list := m.listed(); len(list) != 1 || list[0].ID != "b" {
		t.Fatalf("archived view = %v, want b", list)
	}
	saved, err := prefs.Load(h.prefs)
	if err != nil {
		t.Fatalf("prefs.Load: %v", err)
	}
	if !saved.ShowArchived {
		t.Fatalf("show archived preference not saved")
	}
}

func TestModel_DeleteAsksFirst(t *testing.T) {
	m, h := newTestModel(t)

	m = press(t, m, "D")
	if m.modal == nil {
		t.Fatalf("delete did not open a confirmation")
	}
	m = press(t, m, "n")
	if _, ok := h.store.Conversation("a"); !ok || m.modal != nil {
		t.Fatalf("cancel removed the conversation or left the modal open")
	}

	m = press(t, m, "D")
	m = press(t, m, "y")
	if _, ok := h.store.Conversation("a"); ok {
		t.Fatalf("conversation a still present after confirm")
	}
	if m.notice.err {
		t.Fatalf("notice = %+v, want success", m.notice)
	}
}

func TestModel_ToggleAutomation(t *testing.T) {
	m, h := newTestModel(t)

	m = press(t, m, "A")
	if !h.desk.Automation() {
		t.Fatalf("automation not enabled")
	}
	if m.busy != 0 {
		t.Fatalf("busy = %d after the action finished, want 0", m.busy)
	}
	if !strings.Contains(m.renderHeader(), "AUTO") {
		t.Fatalf("header does not show AUTO")
	}

	// Edits are refused while the assistant answers.
	m = press(t, m, "E")
	if !m.notice.err || m.notice.text != desk.ErrManualModeOnly.Error() {
		t.Fatalf("notice = %+v, want manual mode error", m.notice)
	}
}

func TestModel_ToggleAutomationFailureKeepsMode(t *testing.T) {
	m, h := newTestModel(t)
	h.be.toggleErr = errors.New("backend down")

	m = press(t, m, "A")
	if h.desk.Automation() {
		t.Fatalf("automation enabled despite failure")
	}
	if !m.notice.err {
		t.Fatalf("notice = %+v, want error", m.notice)
	}
}

func TestModel_StartSessionSavesPreference(t *testing.T) {
	m, h := newTestModel(t)

	m = press(t, m, "S")
	if m.modal == nil {
		t.Fatalf("S did not open the session form")
	}

	// Submitting blank fields keeps the form open with the error.
	m = press(t, m, "enter")
	if m.modal == nil {
		t.Fatalf("invalid form closed")
	}

	m = typeText(t, m, "shop")
	m = press(t, m, "tab")
	m = typeText(t, m, "faq")
	m = press(t, m, "enter")
	if m.modal != nil {
		t.Fatalf("form still open after valid submit")
	}
	if got := h.desk.SessionID(); got != "sess-9" {
		t.Fatalf("session = %q, want sess-9", got)
	}
	if len(h.be.targets) != 1 || h.be.targets[0].DBName != "shop" || h.be.targets[0].Collection != "faq" {
		t.Fatalf("targets = %+v", h.be.targets)
	}
	saved, err := prefs.Load(h.prefs)
	if err != nil {
		t.Fatalf("prefs.Load: %v", err)
	}
	if saved.LastSession != "sess-9" {
		t.Fatalf("saved session = %q, want sess-9", saved.LastSession)
	}
}

func TestModel_SearchFiltersList(t *testing.T) {
	m, _ := newTestModel(t)

	m = press(t, m, "/")
	if m.focus != focusSearch {
		t.Fatalf("focus = %v, want search", m.focus)
	}
	m = typeText(t, m, "from b")
	m = press(t, m, "enter")
	if list := m.listed(); len(list) != 1 || list[0].ID != "b" {
		t.Fatalf("filtered list = %v, want b", list)
	}
	m = press(t, m, "esc")
	if m.query != "" || len(m.listed()) != 2 {
		t.Fatalf("esc did not clear the filter")
	}
}

func TestModel_RefreshAndHelp(t *testing.T) {
	m, h := newTestModel(t)

	m = press(t, m, "r")
	if h.refreshN != 1 {
		t.Fatalf("refresh calls = %d, want 1", h.refreshN)
	}
	m = press(t, m, "?")
	if !m.showHelp || !strings.Contains(m.View(), "Keyboard Shortcuts") {
		t.Fatalf("help overlay not shown")
	}
	m = press(t, m, "x")
	if m.showHelp {
		t.Fatalf("help still open after a key")
	}
}

func TestModel_HeaderShowsPollError(t *testing.T) {
	m, h := newTestModel(t)
	h.store.Fail(h.store.BeginFetch(), errors.New("dial tcp: connection refused"))
	m = update(t, m, snapshotMsg(h.store.Snapshot()))

	header := m.renderHeader()
	if !strings.Contains(header, "OFFLINE") || !strings.Contains(header, "retrying every 3s") {
		t.Fatalf("header = %q, want offline banner with retry hint", header)
	}
}

func TestModel_ViewRendersConversations(t *testing.T) {
	m, _ := newTestModel(t)
	view := m.View()
	for _, want := range []string{"Inbox (2)", "User a", "hello from a", "MANUAL"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q", want)
		}
	}
}

func TestModel_NoticeExpires(t *testing.T) {
	m, _ := newTestModel(t)
	m.setNotice("done")
	now := testNow.Add(NoticeTTL + time.Second)
	m.now = func() time.Time { return now }
	m = update(t, m, tickMsg(now))
	if m.notice.text != "" {
		t.Fatalf("notice = %q, want expired", m.notice.text)
	}
}

func TestAuthorLabel(t *testing.T) {
	c := chat.Conversation{UserName: "Nok"}
	cases := map[chat.MessageType]string{
		chat.TypeUser:  "Nok",
		chat.TypeAdmin: "You",
		chat.TypeBot:   "Assistant",
	}
	for typ, want := range cases {
		if got := authorLabel(typ, c); got != want {
			t.Fatalf("authorLabel(%s) = %q, want %q", typ, got, want)
		}
	}
}
