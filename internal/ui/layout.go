package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which compact mode is used.
	LayoutCompactWidth = 90

	// LayoutExtraWideWidth is the threshold for extra-wide layouts.
	LayoutExtraWideWidth = 160
)

// Pane sizing.
const (
	listMinWidth   = 26
	listMaxWidth   = 48
	composerHeight = 5 // textarea rows plus borders
	rowHeight      = 2 // name line and preview line
)

// Log display limits.
const (
	// LogTailLines is how many lines of the log file the log view keeps.
	LogTailLines = 500
)

// Timing constants.
const (
	// DefaultUIInterval is the default UI refresh interval.
	DefaultUIInterval = time.Second

	// NoticeTTL is how long action feedback stays in the header.
	NoticeTTL = 6 * time.Second

	// ActionTimeout bounds network calls started from the UI.
	ActionTimeout = 15 * time.Second
)

// listWidth picks the conversation list width for a terminal width.
func listWidth(total int) int {
	pct := 35
	switch {
	case total >= LayoutExtraWideWidth:
		pct = 25
	case total < LayoutCompactWidth:
		pct = 40
	}
	w := total * pct / 100
	if w < listMinWidth {
		w = listMinWidth
	}
	if w > listMaxWidth {
		w = listMaxWidth
	}
	if w > total {
		w = total
	}
	return w
}
