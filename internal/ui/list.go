package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/chatdesk/internal/chat"
)

// renderList renders the conversation list as two-line rows.
func (m Model) renderList(width, height int) string {
	list := m.listed()
	title := "Inbox"
	if m.showArchived {
		title = "Archived"
	}
	title = fmt.Sprintf("%s (%d)", title, len(list))
	focused := m.focus != focusComposer

	innerWidth := width - 2
	bgColor := m.theme.SurfaceAlt
	if focused {
		bgColor = m.theme.FocusBg
	}

	if len(list) == 0 {
		empty := "No conversations"
		switch {
		case m.query != "":
			empty = "Nothing matches " + fmt.Sprintf("%q", m.query)
		case !m.snapshot.Loaded:
			empty = "Waiting for the first poll"
		}
		body := lipgloss.NewStyle().
			Foreground(lipgloss.Color(m.theme.Muted)).
			Background(lipgloss.Color(bgColor)).
			Render(empty)
		return m.renderTitledBox(title, body, width, height, focused)
	}

	cursor := m.cursor(list)
	visibleRows := max(1, (height-2)/rowHeight)
	start := 0
	if cursor >= visibleRows {
		start = cursor - visibleRows + 1
	}
	end := min(len(list), start+visibleRows)

	var lines []string
	for i := start; i < end; i++ {
		selected := i == cursor
		rowBg := bgColor
		if selected {
			rowBg = m.theme.SelectionBg
		}
		lines = append(lines, m.formatListRow(list[i], innerWidth, rowBg, selected)...)
	}

	return m.renderTitledBox(title, strings.Join(lines, "\n"), width, height, focused)
}

// formatListRow renders one conversation as a name line and a preview line.
// When selected is true every segment uses SelectionText for contrast.
func (m Model) formatListRow(c chat.Conversation, width int, bgColor string, selected bool) []string {
	styles := m.theme.Styles().WithBackground(bgColor)
	bg := NewBgStyle(bgColor)

	nameStyle := styles.Text
	metaStyle := styles.MutedText
	accent := styles.AccentText.Bold(true)
	if selected {
		nameStyle = styles.Selected.Bold(true)
		metaStyle = styles.Selected
		accent = styles.Selected.Bold(true)
	}

	marker := bg.Space()
	if m.snapshot.Unseen[c.ID] {
		marker = bg.Render("●", accent)
	}

	var flags []string
	if c.Pinned {
		flags = append(flags, bg.Render("★", styles.WarningText))
	}
	if c.Muted {
		flags = append(flags, bg.Render("⊘", metaStyle))
	}
	if c.IsOnline {
		flags = append(flags, bg.Render("◦", styles.SuccessText))
	}

	right := bg.Render(formatAgo(c.LastMessageTime, m.now(), m.loc), metaStyle)
	if c.UnreadCount > 0 && !c.IsRead {
		right = bg.Render(fmt.Sprintf("%d", c.UnreadCount), accent) + bg.Space() + right
	}

	flagText := ""
	if len(flags) > 0 {
		flagText = bg.Space() + bg.Join(flags, " ")
	}
	nameRoom := width - 2 - lipgloss.Width(flagText) - lipgloss.Width(right) - 1
	name := bg.Render(truncate(c.UserName, max(4, nameRoom)), nameStyle)
	top := bg.Split(marker+bg.Space()+name+flagText, right, width)

	preview := truncate(oneLine(c.LastMessage), max(4, width-2))
	bottom := bg.FillLine(bg.Spaces(2)+bg.Render(preview, metaStyle), width)

	return []string{top, bottom}
}
