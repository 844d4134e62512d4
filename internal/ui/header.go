package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// renderHeader renders the status bar with all information.
func (m Model) renderHeader() string {
	// Header uses Surface background
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	if !m.snapshot.Loaded {
		return m.renderConnectingHeader(styles, bg)
	}

	sep := bg.Spaces(2)
	left := []string{bg.Render("chatdesk", styles.Logo)}

	if m.desk != nil {
		if m.desk.Automation() {
			left = append(left, styles.BadgeStyle(m.theme.Success).Render("AUTO"))
		} else {
			left = append(left, styles.BadgeStyle(m.theme.Warning).Render("MANUAL"))
		}
		if id := m.desk.SessionID(); id != "" {
			left = append(left, bg.Render("session", styles.FaintText)+bg.Space()+bg.Render(truncate(id, 20), styles.MutedText))
		}
	}

	visible := len(m.snapshot.Visible(""))
	archived := len(m.snapshot.Archived(""))
	counts := bg.Render(fmt.Sprintf("%d open", visible), styles.Text)
	if archived > 0 {
		counts += bg.Space() + bg.Render(fmt.Sprintf("· %d archived", archived), styles.MutedText)
	}
	left = append(left, counts)

	if n := m.snapshot.UnseenCount(); n > 0 {
		left = append(left, bg.Render(fmt.Sprintf("● %d new", n), styles.AccentText.Bold(true)))
	}

	if m.busy > 0 {
		left = append(left, bg.Sep(m.spinner.View()))
	}

	var right string
	switch {
	case m.snapshot.LastError != nil:
		right = m.renderErrorBanner(styles, bg)
	case m.notice.text != "":
		style := styles.InfoText
		if m.notice.err {
			style = styles.DangerText
		}
		right = bg.Render(truncate(m.notice.text, max(10, m.width/2)), style)
	default:
		if !m.snapshot.LastUpdated.IsZero() {
			right = bg.Render("updated", styles.FaintText) + bg.Space() +
				bg.Render(m.snapshot.LastUpdated.In(m.loc).Format("15:04:05"), styles.MutedText)
		}
	}

	content := bg.Split(bg.Join(left, sep), right, m.width-2)
	return styles.Header.Width(m.width).Render(content)
}

// renderConnectingHeader shows the state before the first successful poll.
func (m Model) renderConnectingHeader(styles Styles, bg BgStyle) string {
	sep := bg.Spaces(2)
	parts := []string{bg.Render("chatdesk", styles.Logo)}

	if m.snapshot.LastError != nil {
		parts = append(parts, m.renderErrorBanner(styles, bg))
		if m.logFile != "" {
			parts = append(parts,
				bg.Render("logs", styles.FaintText)+bg.Space()+
					bg.Render(truncate(m.logFile, 50), styles.MutedText))
		}
		return styles.Header.Width(m.width).Render(bg.Join(parts, sep))
	}

	label := "Connecting"
	if m.backendLabel != "" {
		label += " to " + m.backendLabel
	}
	parts = append(parts, bg.Render(label+"...", styles.MutedText))
	return styles.Header.Width(m.width).Render(bg.Join(parts, sep))
}

// renderErrorBanner describes the last poll failure and when it retries.
func (m Model) renderErrorBanner(styles Styles, bg BgStyle) string {
	errorMsg := classifyConnectionError(m.snapshot.LastError)
	parts := []string{bg.Render("BACKEND "+errorMsg, styles.DangerText)}

	hint := "retrying"
	if m.pollInterval > 0 {
		hint = fmt.Sprintf("retrying every %s", m.pollInterval)
	}
	hint += ", r to retry"
	parts = append(parts, bg.Render(hint, styles.WarningText))

	if !m.snapshot.LastUpdated.IsZero() {
		parts = append(parts, bg.Render("last ok "+m.snapshot.LastUpdated.In(m.loc).Format("15:04:05"), styles.MutedText))
	}
	return bg.Join(parts, bg.Spaces(2))
}

// renderCommandBar renders the key hints for the current view and focus.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	var bindings []key.Binding
	switch {
	case m.view == ViewLogs:
		bindings = []key.Binding{m.keys.Up, m.keys.Down, m.keys.ToggleFollow, m.keys.CycleLevel, m.keys.ViewLogs, m.keys.Help}
	case m.focus == focusComposer:
		bindings = []key.Binding{m.keys.Send, m.keys.Newline, m.keys.Escape}
	case m.focus == focusSearch:
		return styles.Footer.Width(m.width).Render(m.search.View())
	default:
		bindings = []key.Binding{m.keys.Up, m.keys.Down, m.keys.Compose, m.keys.Pin, m.keys.Archive, m.keys.Automation, m.keys.Search, m.keys.Refresh, m.keys.Help, m.keys.Quit}
	}

	parts := make([]string, 0, len(bindings)+1)
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts,
			bg.Render(h.Key, styles.AccentText)+bg.Space()+bg.Render(h.Desc, styles.MutedText))
	}

	if m.view == ViewConversations && m.focus == focusList {
		var filters []string
		if m.showArchived {
			filters = append(filters, "archived")
		}
		if m.query != "" {
			filters = append(filters, fmt.Sprintf("%q", m.query))
		}
		if len(filters) > 0 {
			parts = append(parts, bg.Render("["+strings.Join(filters, " ")+"]", styles.WarningText))
		}
	}

	return styles.Footer.Width(m.width).Render(bg.Join(parts, bg.Spaces(2)))
}
