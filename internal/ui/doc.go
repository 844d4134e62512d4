// Package ui provides the chatdesk terminal console built on Bubble Tea.
//
// # Layout
//
// The conversations view puts the conversation list on the left and the
// selected thread with a reply composer on the right. A status header shows
// the reply mode (AUTO or MANUAL), the active assistant session, counts and
// the last poll result. The log view shows the tail of chatdesk's own log
// file, parsed and filtered by level.
//
// # Data Flow
//
//  1. The poller writes reconciled conversations into state.Store
//  2. A UI tick takes a Store snapshot and re-renders
//  3. Keys call desk.Desk, which updates the Store optimistically and
//     dispatches network work in the background
//  4. Network actions started from the UI (automation, sessions) run as
//     tea.Cmd with ActionTimeout and report back through messages
//
// The UI never writes conversation state directly.
//
// # Key Bindings
//
//   - j/k or arrows: Move through conversations
//   - enter or c: Reply to the selected conversation
//   - E / X: Edit or remove the last reply (manual mode only)
//   - p, m, a: Pin, mute, archive
//   - D: Delete the conversation (asks first)
//   - A: Toggle the assistant
//   - S: Start an assistant session against MongoDB or Pinecone
//   - /: Search, v: Show archived
//   - r: Refresh now, l: Logs, T: Theme, h or ?: Help
//   - Q or Ctrl+C: Exit
package ui
