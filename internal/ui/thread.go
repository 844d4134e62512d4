package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/five82/chatdesk/internal/chat"
)

// layout sizes the viewports and the composer for the current window.
func (m *Model) layout() {
	contentHeight := max(3, m.height-2) // header and command bar
	lw := listWidth(m.width)
	tw := max(10, m.width-lw)

	m.thread.Width = tw - 2
	m.thread.Height = max(1, contentHeight-composerHeight-2)
	m.composer.SetWidth(tw - 2)
	m.search.Width = max(10, m.width-4)

	m.logViewport.Width = m.width - 2
	m.logViewport.Height = max(1, m.height-5) // one more line for the log status
}

// renderConversations renders the list pane beside the thread and composer.
func (m Model) renderConversations() string {
	contentHeight := max(3, m.height-2)
	lw := listWidth(m.width)
	tw := max(10, m.width-lw)

	listPane := m.renderList(lw, contentHeight)

	threadTitle := "Conversation"
	if c := m.snapshot.Selected; c != nil {
		threadTitle = c.UserName
		if !c.IsExternal(m.prefix) {
			threadTitle += " · local"
		}
	}
	threadBody := m.thread.View()
	if m.snapshot.Selected == nil {
		threadBody = lipgloss.NewStyle().
			Foreground(lipgloss.Color(m.theme.Muted)).
			Background(lipgloss.Color(m.theme.SurfaceAlt)).
			Render("Select a conversation")
	}
	threadPane := m.renderTitledBox(truncate(threadTitle, tw-6), threadBody, tw, contentHeight-composerHeight, false)

	composerTitle := "Reply"
	if m.editing != nil {
		composerTitle = "Editing message"
	}
	composerPane := m.renderTitledBox(composerTitle, m.composer.View(), tw, composerHeight, m.focus == focusComposer)

	right := lipgloss.JoinVertical(lipgloss.Left, threadPane, composerPane)
	return lipgloss.JoinHorizontal(lipgloss.Top, listPane, right)
}

// updateThreadViewport re-renders the selected thread. The view follows the
// newest message whenever the thread or its tail changes.
func (m *Model) updateThreadViewport() {
	c := m.snapshot.Selected
	if c == nil {
		m.threadKey = ""
		m.thread.SetContent("")
		return
	}
	m.thread.SetContent(m.renderThread(*c, m.thread.Width))

	key := c.ID
	if n := len(c.Messages); n > 0 {
		key = fmt.Sprintf("%s:%d:%s", c.ID, n, c.Messages[n-1].ID)
	}
	if key != m.threadKey {
		m.threadKey = key
		m.thread.GotoBottom()
	}
}

// renderThread renders every message of c wrapped to width.
func (m Model) renderThread(c chat.Conversation, width int) string {
	styles := m.theme.Styles()
	if len(c.Messages) == 0 {
		return styles.MutedText.Render(chat.NoMessages)
	}
	wrap := max(10, width-4)
	now := m.now()

	var b strings.Builder
	for i, msg := range c.Messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		head := styles.AuthorStyle(msg.Type).Render(authorLabel(msg.Type, c))
		if ts := formatChatTime(msg.Timestamp, now, m.loc); ts != "" {
			head += "  " + styles.FaintText.Render(ts)
		}
		if msg.Emotion != "" {
			head += "  " + styles.InfoText.Render("("+msg.Emotion+")")
		}
		if m.editing != nil && m.editing.msgID == msg.ID {
			head += "  " + styles.WarningText.Render("editing")
		}
		b.WriteString(head)
		b.WriteString("\n")

		body := wordwrap.String(msg.Content, wrap)
		for j, line := range strings.Split(body, "\n") {
			if j > 0 {
				b.WriteString("\n")
			}
			b.WriteString("  " + styles.Text.Render(line))
		}

		if err, ok := m.snapshot.SendErrors[msg.ID]; ok {
			b.WriteString("\n  ")
			b.WriteString(styles.DangerText.Render("! not delivered: " + truncate(err.Error(), wrap-18)))
		}
	}
	return b.String()
}

// authorLabel names who wrote a message.
func authorLabel(t chat.MessageType, c chat.Conversation) string {
	switch t {
	case chat.TypeUser:
		if c.UserName != "" {
			return c.UserName
		}
		return "User"
	case chat.TypeAdmin:
		return "You"
	case chat.TypeBot:
		return "Assistant"
	default:
		return t.String()
	}
}

// renderTitledBox renders a bordered pane with the title embedded in the top
// border. Content lines are padded or cut to fill the box.
func (m Model) renderTitledBox(title, content string, width, height int, focused bool) string {
	var borderColorStr, bgColorStr string
	if focused {
		borderColorStr = m.theme.BorderFocus
		bgColorStr = m.theme.FocusBg
	} else {
		borderColorStr = m.theme.Border
		bgColorStr = m.theme.SurfaceAlt
	}
	bg := NewBgStyle(bgColorStr)
	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(borderColorStr))
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.theme.Text))

	innerWidth := max(0, width-2)
	title = truncate(title, max(0, innerWidth-4))
	titleLen := lipgloss.Width(title)
	leftPad := max(0, (innerWidth-titleLen-2)/2)
	rightPad := max(0, innerWidth-titleLen-2-leftPad)

	topBorder := bg.Render("┌", borderStyle) +
		bg.Render(strings.Repeat("─", leftPad), borderStyle) +
		bg.Render(" "+title+" ", titleStyle) +
		bg.Render(strings.Repeat("─", rightPad), borderStyle) +
		bg.Render("┐", borderStyle)

	bottomBorder := bg.Render("└", borderStyle) +
		bg.Render(strings.Repeat("─", innerWidth), borderStyle) +
		bg.Render("┘", borderStyle)

	contentStyle := lipgloss.NewStyle().Width(innerWidth).MaxWidth(innerWidth).Background(lipgloss.Color(bgColorStr))

	contentLines := strings.Split(content, "\n")
	boxHeight := max(0, height-2)

	lines := make([]string, 0, boxHeight)
	for i := 0; i < boxHeight; i++ {
		var line string
		if i < len(contentLines) {
			line = contentLines[i]
		}
		lines = append(lines,
			bg.Render("│", borderStyle)+
				contentStyle.Render(line)+
				bg.Render("│", borderStyle))
	}

	return topBorder + "\n" + strings.Join(lines, "\n") + "\n" + bottomBorder
}
