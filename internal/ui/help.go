package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

var helpTitles = []string{"Navigation", "Composer", "Conversation", "Assistant & list", "Logs", "General"}

// renderHelp renders the help overlay from the key map, in two columns.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()
	groups := m.keys.FullHelp()
	half := (len(groups) + 1) / 2

	left := m.renderHelpColumn(styles, groups[:half], helpTitles)
	right := m.renderHelpColumn(styles, groups[half:], helpTitles[min(half, len(helpTitles)):])

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 30)))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, "    ", right))

	return renderModal(m.theme, m.width, m.height, 80, b.String())
}

func (m Model) renderHelpColumn(styles Styles, groups [][]key.Binding, titles []string) string {
	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.theme.Warning)).
		Width(12)

	var b strings.Builder
	for i, group := range groups {
		if i < len(titles) {
			b.WriteString(styles.AccentText.Bold(true).Render(titles[i]))
			b.WriteString("\n")
		}
		for _, binding := range group {
			h := binding.Help()
			b.WriteString(keyStyle.Render(h.Key))
			b.WriteString(styles.Text.Render(h.Desc))
			b.WriteString("\n")
		}
		if i < len(groups)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
