package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/chatdesk/internal/logtail"
)

// logLevels is the cycle order of the minimum level filter.
var logLevels = []string{"DEBUG", "INFO", "WARN", "ERROR"}

// logState holds all log-related state.
type logState struct {
	records []logtail.Record
	level   int // index into logLevels
	follow  bool
	err     error
}

func newLogState() logState {
	return logState{follow: true}
}

type logLinesMsg struct {
	lines []string
	err   error
}

// loadLogsCmd reads the tail of the log file.
func loadLogsCmd(path string) tea.Cmd {
	return func() tea.Msg {
		if path == "" {
			return logLinesMsg{}
		}
		lines, err := logtail.Read(path, LogTailLines)
		return logLinesMsg{lines: lines, err: err}
	}
}

func (m *Model) handleLogLines(msg logLinesMsg) {
	m.logState.err = msg.err
	if msg.err == nil {
		m.logState.records = logtail.ParseLines(msg.lines)
	}
	m.updateLogViewport()
}

// handleLogsKey processes keys in the log view.
func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		m.logState.follow = !m.logState.follow
		if m.logState.follow {
			m.logViewport.GotoBottom()
		}
	case key.Matches(msg, m.keys.CycleLevel):
		m.logState.level = (m.logState.level + 1) % len(logLevels)
		m.updateLogViewport()
	case key.Matches(msg, m.keys.Up):
		m.logState.follow = false
		m.logViewport.ScrollUp(1)
	case key.Matches(msg, m.keys.Down):
		m.logViewport.ScrollDown(1)
	case key.Matches(msg, m.keys.PageUp):
		m.logState.follow = false
		m.logViewport.PageUp()
	case key.Matches(msg, m.keys.PageDown):
		m.logViewport.PageDown()
	case key.Matches(msg, m.keys.Top):
		m.logState.follow = false
		m.logViewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.logViewport.GotoBottom()
	}
	return m, nil
}

// visibleLogs applies the level filter.
func (m Model) visibleLogs() []logtail.Record {
	return logtail.Filter(m.logState.records, logLevels[m.logState.level], "")
}

// updateLogViewport updates the log viewport with current content.
func (m *Model) updateLogViewport() {
	m.logViewport.Style = lipgloss.NewStyle().Background(lipgloss.Color(m.theme.FocusBg))
	m.logViewport.SetContent(m.renderLogContent())
	if m.logState.follow {
		m.logViewport.GotoBottom()
	}
}

// renderLogContent formats parsed records one per line.
func (m Model) renderLogContent() string {
	styles := m.theme.Styles()
	if m.logState.err != nil {
		return styles.DangerText.Render("read log: " + m.logState.err.Error())
	}
	records := m.visibleLogs()
	if len(records) == 0 {
		if m.logFile == "" {
			return styles.MutedText.Render("Logging to a file is disabled")
		}
		return styles.MutedText.Render("No log lines yet")
	}

	width := max(20, m.logViewport.Width)
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, m.formatLogRecord(styles, r, width))
	}
	return strings.Join(lines, "\n")
}

func (m Model) formatLogRecord(styles Styles, r logtail.Record, width int) string {
	if !r.Parsed() {
		return styles.FaintText.Render(truncate(r.Raw, width))
	}

	var levelStyle lipgloss.Style
	switch r.Level {
	case "ERROR":
		levelStyle = styles.DangerText
	case "WARN", "WARNING":
		levelStyle = styles.WarningText
	case "DEBUG":
		levelStyle = styles.FaintText
	default:
		levelStyle = styles.InfoText
	}

	var b strings.Builder
	if !r.Time.IsZero() {
		b.WriteString(styles.FaintText.Render(r.Time.In(m.loc).Format("15:04:05")))
		b.WriteString(" ")
	}
	b.WriteString(levelStyle.Render(padRight(r.Level, 5)))
	b.WriteString(" ")
	if r.Component != "" {
		b.WriteString(styles.AccentText.Render("[" + r.Component + "]"))
		b.WriteString(" ")
	}
	b.WriteString(styles.Text.Render(r.Message))

	if len(r.Attrs) > 0 {
		attrs := make([]string, 0, len(r.Attrs))
		for _, a := range r.Attrs {
			attrs = append(attrs, a.Key+"="+a.Value)
		}
		used := lipgloss.Width(b.String())
		if room := width - used - 1; room > 8 {
			b.WriteString(" ")
			b.WriteString(styles.MutedText.Render(truncate(strings.Join(attrs, " "), room)))
		}
	}
	return b.String()
}

// renderLogs renders the log view.
func (m Model) renderLogs() string {
	bg := NewBgStyle(m.theme.Surface)
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	contentHeight := max(3, m.height-3) // header, command bar and status line

	title := "Log"
	if m.logState.level > 0 {
		title = fmt.Sprintf("Log (%s+)", logLevels[m.logState.level])
	}
	box := m.renderTitledBox(title, m.logViewport.View(), m.width, contentHeight, true)

	follow := "off"
	if m.logState.follow {
		follow = "on"
	}
	status := fmt.Sprintf("%d of %d lines  follow %s", len(m.visibleLogs()), len(m.logState.records), follow)
	parts := []string{bg.Render(status, styles.FaintText)}
	if m.logFile != "" {
		parts = append(parts, bg.Render(truncate(m.logFile, max(10, m.width/2)), styles.MutedText))
	}
	return box + "\n" + bg.FillLine(bg.Join(parts, "  "), m.width)
}
