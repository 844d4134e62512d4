package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/chatdesk/internal/backend"
	"github.com/five82/chatdesk/internal/chat"
	"github.com/five82/chatdesk/internal/desk"
	"github.com/five82/chatdesk/internal/prefs"
	"github.com/five82/chatdesk/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewConversations View = iota
	ViewLogs
)

// focusArea is the widget receiving keystrokes in the conversations view.
type focusArea int

const (
	focusList focusArea = iota
	focusComposer
	focusSearch
)

// Options configures the UI.
type Options struct {
	Context context.Context
	Store   *state.Store
	Desk    *desk.Desk
	// Refresh asks the poller for an immediate fetch.
	Refresh func()

	Location       *time.Location
	ExternalPrefix string
	BackendLabel   string        // where conversations come from, for the header
	PollInterval   time.Duration // used in the retry hint
	UITick         time.Duration

	ThemeName    string
	PrefsPath    string
	ShowArchived bool
	LogFile      string
	Logger       *slog.Logger
	Now          func() time.Time
}

// editTarget identifies the message the composer is editing.
type editTarget struct {
	convID string
	msgID  string
}

// notice is short-lived action feedback shown in the header.
type notice struct {
	text string
	err  bool
	at   time.Time
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx          context.Context
	store        *state.Store
	desk         *desk.Desk
	refresh      func()
	loc          *time.Location
	prefix       string
	backendLabel string
	pollInterval time.Duration
	uiTick       time.Duration
	prefsPath    string
	logFile      string
	logger       *slog.Logger
	now          func() time.Time

	// UI state
	keys    keyMap
	theme   Theme
	view    View
	width   int
	height  int
	ready   bool
	focus   focusArea
	spinner spinner.Model
	busy    int // network actions in flight

	// Data state
	snapshot state.Snapshot

	// List state
	showArchived bool
	query        string
	search       textinput.Model

	// Thread state
	thread    viewport.Model
	threadKey string
	composer  textarea.Model
	editing   *editTarget

	// Log state
	logViewport viewport.Model
	logState    logState

	// Overlays
	showHelp bool
	modal    Modal
	notice   notice
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	uiTick := opts.UITick
	if uiTick <= 0 {
		uiTick = DefaultUIInterval
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	prefix := opts.ExternalPrefix
	if prefix == "" {
		prefix = chat.DefaultExternalPrefix
	}

	search := textinput.New()
	search.Placeholder = "name or message"
	search.Prompt = "/"
	search.CharLimit = 80

	composer := textarea.New()
	composer.Placeholder = "Write a reply..."
	composer.CharLimit = 4000
	composer.ShowLineNumbers = false
	composer.SetHeight(composerHeight - 2)
	keys := DefaultKeyMap()
	composer.KeyMap.InsertNewline = keys.Newline

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:          ctx,
		store:        opts.Store,
		desk:         opts.Desk,
		refresh:      opts.Refresh,
		loc:          loc,
		prefix:       prefix,
		backendLabel: opts.BackendLabel,
		pollInterval: opts.PollInterval,
		uiTick:       uiTick,
		prefsPath:    prefsPath,
		logFile:      opts.LogFile,
		logger:       logger.With("component", "ui"),
		now:          now,
		keys:         keys,
		theme:        GetTheme(opts.ThemeName),
		view:         ViewConversations,
		spinner:      sp,
		showArchived: opts.ShowArchived,
		search:       search,
		thread:       viewport.New(0, 0),
		composer:     composer,
		logViewport:  viewport.New(0, 0),
		logState:     newLogState(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(m.uiTick),
		m.spinner.Tick,
	}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		m.updateThreadViewport()
		m.updateLogViewport()
		return m, nil

	case tickMsg:
		return m.handleTick()

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.updateThreadViewport()
		return m, nil

	case actionMsg:
		if msg.network {
			m.busy--
		}
		if msg.err != nil {
			m.setError(msg.err)
		} else if msg.text != "" {
			m.setNotice(msg.text)
		}
		return m, fetchSnapshotCmd(m.store)

	case sessionMsg:
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.setNotice("Session " + msg.id + " started")
		if err := prefs.Update(m.prefsPath, func(p *prefs.Prefs) { p.LastSession = msg.id }); err != nil {
			m.logger.Warn("save session preference failed", "error", err)
		}
		return m, nil

	case logLinesMsg:
		m.handleLogLines(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	// Cursor blink and similar messages go to whatever has focus.
	var cmd tea.Cmd
	switch m.focus {
	case focusComposer:
		m.composer, cmd = m.composer.Update(msg)
	case focusSearch:
		m.search, cmd = m.search.Update(msg)
	}
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}

	if m.showHelp {
		return m.renderHelp()
	}

	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.modal != nil {
		modal, cmd, done := m.modal.Update(msg, m.keys)
		if done {
			m.modal = nil
		} else {
			m.modal = modal
		}
		return m, cmd
	}

	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	switch m.focus {
	case focusComposer:
		return m.handleComposerKey(msg)
	case focusSearch:
		return m.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		name := m.theme.Name
		if err := prefs.Update(m.prefsPath, func(p *prefs.Prefs) { p.Theme = name }); err != nil {
			m.logger.Warn("save theme preference failed", "error", err)
		}
		m.updateThreadViewport()
		return m, nil

	case key.Matches(msg, m.keys.ViewLogs):
		if m.view == ViewLogs {
			m.view = ViewConversations
			return m, nil
		}
		m.view = ViewLogs
		return m, loadLogsCmd(m.logFile)

	case key.Matches(msg, m.keys.Refresh):
		if m.refresh != nil {
			m.refresh()
		}
		m.setNotice("Refreshing...")
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		if m.view == ViewLogs {
			m.view = ViewConversations
			return m, nil
		}
		if m.query != "" {
			m.query = ""
			m.search.Reset()
		}
		return m, nil
	}

	if m.view == ViewLogs {
		return m.handleLogsKey(msg)
	}
	return m.handleListKey(msg)
}

// handleListKey processes keys while the conversation list has focus.
func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		return m.moveSelection(-1)
	case key.Matches(msg, m.keys.Down):
		return m.moveSelection(1)
	case key.Matches(msg, m.keys.Top):
		return m.selectIndex(0)
	case key.Matches(msg, m.keys.Bottom):
		return m.selectIndex(len(m.listed()) - 1)
	case key.Matches(msg, m.keys.PageUp):
		m.thread.HalfPageUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.thread.HalfPageDown()
		return m, nil

	case key.Matches(msg, m.keys.Search):
		m.focus = focusSearch
		m.search.SetValue(m.query)
		cmd := m.search.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.ShowArchived):
		m.showArchived = !m.showArchived
		show := m.showArchived
		if err := prefs.Update(m.prefsPath, func(p *prefs.Prefs) { p.ShowArchived = show }); err != nil {
			m.logger.Warn("save archive preference failed", "error", err)
		}
		return m, nil

	case key.Matches(msg, m.keys.Automation):
		return m.toggleAutomation()

	case key.Matches(msg, m.keys.Session):
		m.modal = newSessionModal(m.startSessionCmd)
		return m, textinput.Blink
	}

	conv := m.snapshot.Selected
	if conv == nil {
		return m, nil
	}
	id := conv.ID

	switch {
	case key.Matches(msg, m.keys.Compose):
		m.editing = nil
		m.focus = focusComposer
		cmd := m.composer.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Pin):
		return m.applyLocal(m.desk.TogglePin(id), ternary(conv.Pinned, "Unpinned", "Pinned"))

	case key.Matches(msg, m.keys.Mute):
		return m.applyLocal(m.desk.ToggleMute(id), ternary(conv.Muted, "Unmuted", "Muted"))

	case key.Matches(msg, m.keys.Archive):
		if conv.Archived {
			return m.applyLocal(m.desk.Unarchive(id), "Moved back to inbox")
		}
		return m.applyLocal(m.desk.Archive(id), "Archived")

	case key.Matches(msg, m.keys.Delete):
		name := conv.UserName
		m.modal = newConfirmModal(
			"Delete conversation",
			fmt.Sprintf("Delete the conversation with %s? It returns only if they write again.", name),
			func() tea.Cmd {
				return actionCmd("Deleted "+name, func() error { return m.desk.DeleteConversation(id) })
			},
		)
		return m, nil

	case key.Matches(msg, m.keys.EditLast):
		last, ok := m.desk.LastEditable(id)
		if !ok {
			m.setError(editUnavailable(m.desk.Automation()))
			return m, nil
		}
		m.editing = &editTarget{convID: id, msgID: last.ID}
		m.composer.SetValue(last.Content)
		m.focus = focusComposer
		cmd := m.composer.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.DeleteLast):
		last, ok := m.desk.LastEditable(id)
		if !ok {
			m.setError(editUnavailable(m.desk.Automation()))
			return m, nil
		}
		return m.applyLocal(m.desk.DeleteMessage(id, last.ID), "Message removed")
	}

	return m, nil
}

func editUnavailable(automation bool) error {
	if automation {
		return desk.ErrManualModeOnly
	}
	return errors.New("no reply to change")
}

// handleComposerKey processes keys while typing a reply or an edit.
func (m Model) handleComposerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyEsc:
		m.composer.Blur()
		m.focus = focusList
		if m.editing != nil {
			m.editing = nil
			m.composer.Reset()
		}
		return m, nil

	case key.Matches(msg, m.keys.Send) && !key.Matches(msg, m.keys.Newline):
		return m.submitComposer()
	}

	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)
	return m, cmd
}

// submitComposer sends the composer content, or saves it when editing.
func (m Model) submitComposer() (tea.Model, tea.Cmd) {
	content := m.composer.Value()
	if m.editing != nil {
		target := *m.editing
		if err := m.desk.EditMessage(target.convID, target.msgID, content); err != nil {
			m.setError(err)
			return m, nil
		}
		m.editing = nil
		m.composer.Reset()
		m.composer.Blur()
		m.focus = focusList
		m.setNotice("Message updated")
		return m, fetchSnapshotCmd(m.store)
	}

	if _, err := m.desk.Send(content); err != nil {
		m.setError(err)
		return m, nil
	}
	m.composer.Reset()
	m.threadKey = "" // follow the new message
	return m, fetchSnapshotCmd(m.store)
}

// handleSearchKey processes keys while the search box has focus. The list
// filters as the query is typed.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.search.Blur()
		m.search.Reset()
		m.query = ""
		m.focus = focusList
		return m, nil
	case tea.KeyEnter:
		m.search.Blur()
		m.focus = focusList
		m.query = strings.TrimSpace(m.search.Value())
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.query = strings.TrimSpace(m.search.Value())
	return m, cmd
}

// listed returns the conversations shown in the list pane.
func (m Model) listed() []chat.Conversation {
	if m.showArchived {
		return m.snapshot.Archived(m.query)
	}
	return m.snapshot.Visible(m.query)
}

// cursor is the list index of the selected conversation, or -1.
func (m Model) cursor(list []chat.Conversation) int {
	return chat.Find(list, m.snapshot.SelectedID)
}

func (m Model) moveSelection(delta int) (tea.Model, tea.Cmd) {
	list := m.listed()
	if len(list) == 0 {
		return m, nil
	}
	idx := m.cursor(list)
	if idx < 0 {
		idx = 0
	} else {
		idx += delta
	}
	return m.selectIndex(idx)
}

func (m Model) selectIndex(idx int) (tea.Model, tea.Cmd) {
	list := m.listed()
	if len(list) == 0 {
		return m, nil
	}
	idx = max(0, min(idx, len(list)-1))
	if err := m.desk.Select(list[idx].ID); err != nil {
		m.setError(err)
		return m, nil
	}
	// Reflect the new selection right away rather than on the next tick.
	m.snapshot = m.store.Snapshot()
	m.updateThreadViewport()
	return m, nil
}

// applyLocal reports the outcome of a synchronous store action.
func (m Model) applyLocal(err error, ok string) (tea.Model, tea.Cmd) {
	if err != nil {
		m.setError(err)
		return m, nil
	}
	m.setNotice(ok)
	m.snapshot = m.store.Snapshot()
	m.updateThreadViewport()
	return m, nil
}

func (m Model) toggleAutomation() (tea.Model, tea.Cmd) {
	enable := !m.desk.Automation()
	ctx, d := m.ctx, m.desk
	label := ternary(enable, "Assistant on", "Assistant off: manual replies")
	m.busy++
	return m, tea.Batch(m.spinner.Tick, networkCmd(label, func() error {
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		return d.SetAutomation(ctx, enable)
	}))
}

func (m Model) startSessionCmd(target backend.Target) tea.Cmd {
	ctx, d := m.ctx, m.desk
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		id, err := d.StartSession(ctx, target)
		return sessionMsg{id: id, err: err}
	}
}

func (m *Model) setNotice(text string) {
	m.notice = notice{text: text, at: m.now()}
}

func (m *Model) setError(err error) {
	m.notice = notice{text: err.Error(), err: true, at: m.now()}
}

// handleTick processes the UI refresh tick.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}

	if m.view == ViewLogs && m.logState.follow {
		cmds = append(cmds, loadLogsCmd(m.logFile))
	}

	if m.notice.text != "" && m.now().Sub(m.notice.at) > NoticeTTL {
		m.notice = notice{}
	}

	cmds = append(cmds, tickCmd(m.uiTick))
	return m, tea.Batch(cmds...)
}

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")

	b.WriteString(m.renderContent())

	return b.String()
}

// renderContent renders the main content area based on current view.
func (m Model) renderContent() string {
	switch m.view {
	case ViewLogs:
		return m.renderLogs()
	default:
		return m.renderConversations()
	}
}

func ternary(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

// actionMsg reports a finished background action.
type actionMsg struct {
	text    string
	err     error
	network bool // counted in Model.busy
}

type sessionMsg struct {
	id  string
	err error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func actionCmd(text string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: text}
	}
}

// networkCmd is actionCmd for calls that keep the spinner running.
func networkCmd(text string, fn func() error) tea.Cmd {
	run := actionCmd(text, fn)
	return func() tea.Msg {
		msg := run().(actionMsg)
		msg.network = true
		return msg
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(opts.Context))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && opts.Context != nil && opts.Context.Err() != nil {
		return nil
	}
	return err
}
