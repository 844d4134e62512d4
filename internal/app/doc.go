// Package app provides the orchestration layer for chatdesk.
//
// # Overview
//
// This package wires together configuration, logging, polling, the
// conversation store, the action desk and the UI. It is the composition root
// where all dependencies are initialized and connected.
//
// # Startup
//
//  1. Load ~/.config/chatdesk/config.toml and apply command-line overrides
//  2. Open the log file (slog text format, read back by the log view)
//  3. Pick the conversation source: the backend HTTP client, or a demo file
//  4. Create the shared state.Store with the staleness and recency windows
//  5. Create the Poller and a desk.Desk whose sends trigger poller refreshes
//  6. Resume the last assistant session from preferences
//  7. Start polling and run the TUI until the user exits or ctx is cancelled
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │ Initialize everything
//	└──────┬───────┘
//	       │
//	       ├─────> Build()             Config, log, backend, store
//	       ├─────> NewPoller()         Background conversation fetches
//	       ├─────> desk.New()          Optimistic operator actions
//	       └─────> ui.Run()            Start TUI (blocks)
//
//	Poller loop:
//	┌─────────────────────────────────────────┐
//	│ Poller goroutine                        │
//	│  ├─> store.BeginFetch()  sequence no.   │
//	│  ├─> FetchConversations()               │
//	│  └─> store.Apply() / store.Fail()       │
//	│      └─> UI reads store.Snapshot()      │
//	└─────────────────────────────────────────┘
//
// # Polling Behavior
//
// Ticks are skipped while a previous tick is still waiting on the backend.
// Manual refreshes (the r key, or the desk after an external send) always run.
// Results from a fetch older than one already applied are dropped, and so are
// results that arrive after shutdown began.
//
// # Error Handling
//
// Fatal errors (returned from Run):
//   - Invalid config file or timezone
//   - Unknown log level or an unwritable log file
//   - Unreadable demo file
//
// Recoverable errors (logged, polling continues):
//   - Fetch failures and timeouts; the UI shows the last good list with a
//     banner
//   - Failed sends, which are flagged on the message
package app
