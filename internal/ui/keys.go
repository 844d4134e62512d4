package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Escape     key.Binding
	Refresh    key.Binding
	ViewLogs   key.Binding

	// Navigation
	Up       key.Binding
	Down     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	PageUp   key.Binding
	PageDown key.Binding

	// Conversation actions
	Compose      key.Binding
	Pin          key.Binding
	Mute         key.Binding
	Archive      key.Binding
	Delete       key.Binding
	EditLast     key.Binding
	DeleteLast   key.Binding
	Automation   key.Binding
	Session      key.Binding
	Search       key.Binding
	ShowArchived key.Binding

	// Composer
	Send    key.Binding
	Newline key.Binding

	// Logs
	ToggleFollow key.Binding
	CycleLevel   key.Binding

	// Modals
	Confirm   key.Binding
	Next      key.Binding
	Prev      key.Binding
	SwitchDB  key.Binding
	ConfirmNo key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		// Global
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "Q"),
			key.WithHelp("Q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Back"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh now"),
		),
		ViewLogs: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "Toggle logs"),
		),

		// Navigation
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Previous conversation"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Next conversation"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "First conversation"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Last conversation"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "Scroll thread up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdown", "Scroll thread down"),
		),

		// Conversation actions
		Compose: key.NewBinding(
			key.WithKeys("enter", "c"),
			key.WithHelp("enter", "Reply"),
		),
		Pin: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "Pin/unpin"),
		),
		Mute: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "Mute/unmute"),
		),
		Archive: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Archive/unarchive"),
		),
		Delete: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "Delete conversation"),
		),
		EditLast: key.NewBinding(
			key.WithKeys("E"),
			key.WithHelp("E", "Edit last reply"),
		),
		DeleteLast: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "Delete last reply"),
		),
		Automation: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "Toggle assistant"),
		),
		Session: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "Start session"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "Search"),
		),
		ShowArchived: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "Show archived"),
		),

		// Composer
		Send: key.NewBinding(
			key.WithKeys("ctrl+s", "enter"),
			key.WithHelp("enter", "Send"),
		),
		Newline: key.NewBinding(
			key.WithKeys("alt+enter", "ctrl+j"),
			key.WithHelp("alt+enter", "New line"),
		),

		// Logs
		ToggleFollow: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("Space", "Toggle follow mode"),
		),
		CycleLevel: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "Cycle level filter"),
		),

		// Modals
		Confirm: key.NewBinding(
			key.WithKeys("enter", "y"),
			key.WithHelp("enter/y", "Confirm"),
		),
		ConfirmNo: key.NewBinding(
			key.WithKeys("esc", "n"),
			key.WithHelp("esc/n", "Cancel"),
		),
		Next: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "Next field"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "Previous field"),
		),
		SwitchDB: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "Switch MongoDB/Pinecone"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom, k.PageUp, k.PageDown},
		{k.Compose, k.Send, k.Newline, k.Escape},
		{k.Pin, k.Mute, k.Archive, k.Delete, k.EditLast, k.DeleteLast},
		{k.Automation, k.Session, k.Search, k.ShowArchived, k.Refresh},
		{k.ViewLogs, k.ToggleFollow, k.CycleLevel},
		{k.CycleTheme, k.Help, k.Quit},
	}
}
