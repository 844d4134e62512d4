package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/chatdesk/internal/backend"
)

// Modal is the interface for modal dialogs.
// The Update method returns the updated modal, a command, and a bool indicating if the modal should close.
type Modal interface {
	Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool)
	View(theme Theme, width, height int) string
}

// renderModal centers a bordered box over the screen.
func renderModal(theme Theme, width, height, boxWidth int, content string) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(theme.Accent)).
		Padding(1, 2).
		Width(boxWidth).
		Render(content)
	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		box,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(theme.Background)),
	)
}

// confirmModal asks a yes/no question and runs onYes when confirmed.
type confirmModal struct {
	title  string
	prompt string
	onYes  func() tea.Cmd
}

func newConfirmModal(title, prompt string, onYes func() tea.Cmd) confirmModal {
	return confirmModal{title: title, prompt: prompt, onYes: onYes}
}

func (c confirmModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil, false
	}
	switch {
	case key.Matches(km, keys.Confirm):
		var cmd tea.Cmd
		if c.onYes != nil {
			cmd = c.onYes()
		}
		return c, cmd, true
	case key.Matches(km, keys.ConfirmNo):
		return c, nil, true
	}
	return c, nil, false
}

func (c confirmModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder
	b.WriteString(styles.DangerText.Render(c.title))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render(c.prompt))
	b.WriteString("\n\n")
	b.WriteString(styles.AccentText.Render("y/enter") + styles.MutedText.Render(" confirm   ") +
		styles.AccentText.Render("n/esc") + styles.MutedText.Render(" cancel"))
	return renderModal(theme, width, height, 50, b.String())
}

// sessionModal collects the knowledge-base target for a new assistant
// session.
type sessionModal struct {
	dbType backend.DBType
	// inputs hold db/collection for MongoDB and index/namespace for Pinecone.
	inputs [2]textinput.Model
	focus  int
	err    string
	start  func(backend.Target) tea.Cmd
}

func newSessionModal(start func(backend.Target) tea.Cmd) sessionModal {
	s := sessionModal{dbType: backend.DBMongo, start: start}
	for i := range s.inputs {
		ti := textinput.New()
		ti.CharLimit = 128
		ti.Prompt = ""
		s.inputs[i] = ti
	}
	s.inputs[0].Focus()
	s.applyPlaceholders()
	return s
}

func (s *sessionModal) applyPlaceholders() {
	labels := s.labels()
	for i := range s.inputs {
		s.inputs[i].Placeholder = strings.ToLower(labels[i])
	}
}

func (s sessionModal) labels() [2]string {
	if s.dbType == backend.DBPinecone {
		return [2]string{"Index", "Namespace"}
	}
	return [2]string{"Database", "Collection"}
}

// target builds the request from the current inputs.
func (s sessionModal) target() backend.Target {
	a := strings.TrimSpace(s.inputs[0].Value())
	b := strings.TrimSpace(s.inputs[1].Value())
	if s.dbType == backend.DBPinecone {
		return backend.Target{DBType: backend.DBPinecone, IndexName: a, Namespace: b}
	}
	return backend.Target{DBType: backend.DBMongo, DBName: a, Collection: b}
}

func (s sessionModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return s, nil, false
	}
	switch {
	case km.Type == tea.KeyEsc:
		return s, nil, true
	case key.Matches(km, keys.SwitchDB):
		if s.dbType == backend.DBMongo {
			s.dbType = backend.DBPinecone
		} else {
			s.dbType = backend.DBMongo
		}
		s.err = ""
		s.applyPlaceholders()
		return s, nil, false
	case key.Matches(km, keys.Next), key.Matches(km, keys.Prev):
		s.inputs[s.focus].Blur()
		s.focus = (s.focus + 1) % len(s.inputs)
		s.inputs[s.focus].Focus()
		return s, textinput.Blink, false
	case km.Type == tea.KeyEnter:
		t := s.target()
		if err := t.Validate(); err != nil {
			s.err = err.Error()
			return s, nil, false
		}
		var cmd tea.Cmd
		if s.start != nil {
			cmd = s.start(t)
		}
		return s, cmd, true
	}
	var cmd tea.Cmd
	s.inputs[s.focus], cmd = s.inputs[s.focus].Update(km)
	return s, cmd, false
}

func (s sessionModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	labels := s.labels()
	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Start assistant session"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 30)))
	b.WriteString("\n\n")
	b.WriteString(styles.MutedText.Render("Store:  ") + styles.AccentText.Render(string(s.dbType)))
	b.WriteString("\n\n")
	for i, in := range s.inputs {
		label := padRight(labels[i]+":", 12)
		if i == s.focus {
			b.WriteString(styles.AccentText.Render(label))
		} else {
			b.WriteString(styles.MutedText.Render(label))
		}
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	if s.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.DangerText.Render(s.err))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("tab next • ctrl+t switch store • enter start • esc cancel"))
	return renderModal(theme, width, height, 56, b.String())
}
