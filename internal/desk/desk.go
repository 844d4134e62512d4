package desk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/five82/chatdesk/internal/backend"
	"github.com/five82/chatdesk/internal/chat"
	"github.com/five82/chatdesk/internal/state"
)

var (
	// ErrNoSelection is returned by actions that need a selected conversation.
	ErrNoSelection = errors.New("no conversation selected")
	// ErrEmptyMessage is returned when sending blank content.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrManualModeOnly is returned when editing or deleting while the
	// assistant is answering.
	ErrManualModeOnly = errors.New("messages can only be changed in manual mode")
	// ErrUserMessage is returned when editing or deleting a customer message.
	ErrUserMessage = errors.New("customer messages cannot be changed")
	// ErrNoSession is returned when the assistant is asked without a session.
	ErrNoSession = errors.New("no assistant session; start one first")
)

// Emotions are the tone tags sent with assistant queries.
var Emotions = []string{"joy", "sadness", "anger", "fear", "surprise", "neutral"}

// Backend is the subset of the backend client the desk dispatches to.
type Backend interface {
	SendExternal(ctx context.Context, recipientID, message string) error
	Query(ctx context.Context, q backend.QueryRequest) (string, error)
	ToggleAutomation(ctx context.Context, enable bool) error
	StartSession(ctx context.Context, target backend.Target) (string, error)
}

var _ Backend = (*backend.Client)(nil)

const (
	defaultRefreshDelay    = time.Second
	defaultDispatchTimeout = 30 * time.Second
)

// Options configure a Desk. Zero values select defaults.
type Options struct {
	ExternalPrefix string
	// Refresh is called shortly after an external send so the backend's copy
	// shows up without waiting for the next tick.
	Refresh      func()
	RefreshDelay time.Duration
	// DispatchTimeout bounds each background network call.
	DispatchTimeout time.Duration
	Logger          *slog.Logger

	Now     func() time.Time
	Emotion func() string
}

// Desk applies operator actions to the store and confirms them against the
// backend in the background.
type Desk struct {
	store   *state.Store
	backend Backend
	opts    Options
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	automation bool
	sessionID  string
	lastID     int64
}

// New returns a Desk bound to ctx. Background dispatches stop when ctx is
// cancelled or Close is called.
func New(ctx context.Context, store *state.Store, be Backend, opts Options) *Desk {
	if opts.ExternalPrefix == "" {
		opts.ExternalPrefix = chat.DefaultExternalPrefix
	}
	if opts.RefreshDelay <= 0 {
		opts.RefreshDelay = defaultRefreshDelay
	}
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = defaultDispatchTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Emotion == nil {
		opts.Emotion = randomEmotion
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dctx, cancel := context.WithCancel(ctx)
	return &Desk{
		store:   store,
		backend: be,
		opts:    opts,
		logger:  logger.With("component", "desk"),
		ctx:     dctx,
		cancel:  cancel,
	}
}

func randomEmotion() string {
	return Emotions[rand.N(len(Emotions))]
}

// Automation reports whether the assistant answers local conversations.
func (d *Desk) Automation() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.automation
}

// SessionID returns the active assistant session, or "".
func (d *Desk) SessionID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessionID
}

// SetSession adopts a session started elsewhere, for example by an upload.
func (d *Desk) SetSession(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessionID = strings.TrimSpace(id)
}

// Select focuses a conversation.
func (d *Desk) Select(id string) error {
	return d.store.Select(id)
}

// Send appends content to the selected conversation immediately and delivers
// it in the background. The returned message is what was appended.
func (d *Desk) Send(content string) (chat.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return chat.Message{}, ErrEmptyMessage
	}
	convID := d.store.Selected()
	if convID == "" {
		return chat.Message{}, ErrNoSelection
	}
	conv, ok := d.store.Conversation(convID)
	if !ok {
		return chat.Message{}, ErrNoSelection
	}

	d.mu.Lock()
	automation := d.automation
	session := d.sessionID
	d.mu.Unlock()

	external := conv.IsExternal(d.opts.ExternalPrefix)
	author := chat.TypeAdmin
	if automation && !external {
		author = chat.TypeUser
	}
	msg := chat.Message{
		ID:        d.nextID(),
		Type:      author,
		Content:   content,
		Timestamp: d.opts.Now(),
	}
	if err := d.store.AppendMessage(convID, msg, true); err != nil {
		return chat.Message{}, err
	}

	switch {
	case external:
		recipient := strings.TrimPrefix(conv.UserID, d.opts.ExternalPrefix)
		d.dispatch(func(ctx context.Context) {
			d.sendExternal(ctx, recipient, msg)
		})
	case automation:
		d.dispatch(func(ctx context.Context) {
			d.askAssistant(ctx, convID, session, msg)
		})
	}
	return msg, nil
}

func (d *Desk) sendExternal(ctx context.Context, recipient string, msg chat.Message) {
	if err := d.backend.SendExternal(ctx, recipient, msg.Content); err != nil {
		if d.ctx.Err() != nil {
			return
		}
		d.logger.Warn("external send failed", "message_id", msg.ID, "recipient", recipient, "error", err)
		d.store.MarkSendFailed(msg.ID, err)
		return
	}
	d.logger.Debug("external send delivered", "message_id", msg.ID)
	if d.opts.Refresh == nil {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d.opts.RefreshDelay):
		d.opts.Refresh()
	}
}

func (d *Desk) askAssistant(ctx context.Context, convID, session string, msg chat.Message) {
	if session == "" {
		d.store.MarkSendFailed(msg.ID, ErrNoSession)
		return
	}
	emotion := d.opts.Emotion()
	reply, err := d.backend.Query(ctx, backend.QueryRequest{
		SessionID: session,
		Question:  msg.Content,
		Emotion:   emotion,
	})
	if err != nil {
		if d.ctx.Err() != nil {
			return
		}
		d.logger.Warn("assistant query failed", "conversation_id", convID, "message_id", msg.ID, "error", err)
		d.store.MarkSendFailed(msg.ID, err)
		return
	}
	bot := chat.Message{
		ID:        d.nextID(),
		Type:      chat.TypeBot,
		Content:   reply,
		Timestamp: d.opts.Now(),
		Emotion:   emotion,
	}
	if err := d.store.AppendMessage(convID, bot, true); err != nil {
		d.logger.Info("assistant reply dropped", "conversation_id", convID, "error", err)
	}
}

func (d *Desk) dispatch(fn func(ctx context.Context)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(d.ctx, d.opts.DispatchTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// nextID returns a time-based ID that strictly increases even when the clock
// does not.
func (d *Desk) nextID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.opts.Now().UnixMilli()
	if n <= d.lastID {
		n = d.lastID + 1
	}
	d.lastID = n
	return "local-" + strconv.FormatInt(n, 10)
}

// EditMessage replaces the content of an operator or assistant message.
func (d *Desk) EditMessage(convID, msgID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}
	if err := d.checkEditable(convID, msgID); err != nil {
		return err
	}
	return d.store.EditMessage(convID, msgID, content)
}

// DeleteMessage removes an operator or assistant message.
func (d *Desk) DeleteMessage(convID, msgID string) error {
	if err := d.checkEditable(convID, msgID); err != nil {
		return err
	}
	return d.store.RemoveMessage(convID, msgID)
}

// Editable reports whether msg may be edited or deleted right now.
func (d *Desk) Editable(msg chat.Message) bool {
	return !d.Automation() && msg.Type != chat.TypeUser
}

func (d *Desk) checkEditable(convID, msgID string) error {
	if d.Automation() {
		return ErrManualModeOnly
	}
	conv, ok := d.store.Conversation(convID)
	if !ok {
		return fmt.Errorf("conversation %q: %w", convID, state.ErrNotFound)
	}
	idx := conv.MessageIndex(msgID)
	if idx < 0 {
		return fmt.Errorf("message %q: %w", msgID, state.ErrNotFound)
	}
	if conv.Messages[idx].Type == chat.TypeUser {
		return ErrUserMessage
	}
	return nil
}

// LastEditable returns the newest message in the conversation that may be
// edited or deleted.
func (d *Desk) LastEditable(convID string) (chat.Message, bool) {
	if d.Automation() {
		return chat.Message{}, false
	}
	conv, ok := d.store.Conversation(convID)
	if !ok {
		return chat.Message{}, false
	}
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].Type != chat.TypeUser {
			return conv.Messages[i], true
		}
	}
	return chat.Message{}, false
}

// TogglePin flips the pinned flag.
func (d *Desk) TogglePin(id string) error {
	conv, ok := d.store.Conversation(id)
	if !ok {
		return fmt.Errorf("conversation %q: %w", id, state.ErrNotFound)
	}
	d.store.UpsertFlags(id, chat.FlagPatch{Pinned: chat.Bool(!conv.Pinned)})
	return nil
}

// ToggleMute flips the muted flag. Muted conversations never take focus.
func (d *Desk) ToggleMute(id string) error {
	conv, ok := d.store.Conversation(id)
	if !ok {
		return fmt.Errorf("conversation %q: %w", id, state.ErrNotFound)
	}
	d.store.UpsertFlags(id, chat.FlagPatch{Muted: chat.Bool(!conv.Muted)})
	return nil
}

// Archive hides a conversation from the default list. It stays in the store
// and keeps receiving backend updates.
func (d *Desk) Archive(id string) error {
	return d.setArchived(id, true)
}

// Unarchive returns a conversation to the default list.
func (d *Desk) Unarchive(id string) error {
	return d.setArchived(id, false)
}

func (d *Desk) setArchived(id string, archived bool) error {
	if !d.store.UpsertFlags(id, chat.FlagPatch{Archived: chat.Bool(archived)}) {
		return fmt.Errorf("conversation %q: %w", id, state.ErrNotFound)
	}
	return nil
}

// DeleteConversation removes a conversation locally. It comes back only if
// the backend reports new activity on it.
func (d *Desk) DeleteConversation(id string) error {
	return d.store.DeleteConversation(id)
}

// SetAutomation turns the assistant on or off. Local state only changes once
// the backend has accepted the switch.
func (d *Desk) SetAutomation(ctx context.Context, enabled bool) error {
	if err := d.backend.ToggleAutomation(ctx, enabled); err != nil {
		return fmt.Errorf("toggle automation: %w", err)
	}
	d.mu.Lock()
	d.automation = enabled
	d.mu.Unlock()
	d.logger.Info("automation switched", "enabled", enabled)
	return nil
}

// StartSession opens an assistant session against a knowledge base and makes
// it the active one.
func (d *Desk) StartSession(ctx context.Context, target backend.Target) (string, error) {
	if err := target.Validate(); err != nil {
		return "", err
	}
	id, err := d.backend.StartSession(ctx, target)
	if err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}
	d.SetSession(id)
	d.logger.Info("session started", "session_id", id, "db_type", string(target.DBType))
	return id, nil
}

// Wait blocks until background dispatches finish.
func (d *Desk) Wait() {
	d.wg.Wait()
}

// Close cancels outstanding dispatches and waits for them.
func (d *Desk) Close() {
	d.cancel()
	d.wg.Wait()
}
