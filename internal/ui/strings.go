package ui

import (
	"fmt"
	"strings"
	"time"
)

// truncate shortens a string to the given limit, adding ellipsis if needed.
func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// padRight pads a string with spaces to the given width.
func padRight(s string, width int) string {
	if width <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(r))
}

// oneLine collapses whitespace runs, newlines included, into single spaces
// for list previews.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// formatChatTime renders a message timestamp in loc: clock time for today,
// month and day plus clock time within the year, full date otherwise.
func formatChatTime(t, now time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	lt, ln := t.In(loc), now.In(loc)
	switch {
	case sameDay(lt, ln):
		return lt.Format("15:04")
	case sameDay(lt, ln.AddDate(0, 0, -1)):
		return "Yesterday " + lt.Format("15:04")
	case lt.Year() == ln.Year():
		return lt.Format("Jan 2 15:04")
	default:
		return lt.Format("2006-01-02 15:04")
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// formatAgo renders a compact age for the conversation list.
func formatAgo(t, now time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		if loc == nil {
			loc = time.Local
		}
		return t.In(loc).Format("Jan 2")
	}
}

// classifyConnectionError returns a short description of a fetch error.
func classifyConnectionError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "OFFLINE"
	case strings.Contains(msg, "no such host"):
		return "HOST NOT FOUND"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return "TIMEOUT"
	case strings.Contains(msg, "malformed"):
		return "BAD PAYLOAD"
	default:
		return "ERROR"
	}
}
