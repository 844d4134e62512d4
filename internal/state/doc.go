// Package state holds the console's conversation store.
//
// # Overview
//
// The Store is the meeting point of the background poller, the action
// handlers in package desk, and the UI:
//
//	Poller                       Action handlers            UI
//	┌──────────────────┐        ┌──────────────────┐       ┌──────────────┐
//	│ BeginFetch()     │        │ Select()         │       │              │
//	│ FetchConv...()   │        │ AppendMessage()  │       │ Snapshot()   │
//	│ Apply()/Fail()   │──┐  ┌──│ UpsertFlags()    │       │   ↓          │
//	└──────────────────┘  │  │  └──────────────────┘       │ render       │
//	                      ↓  ↓                             └──────────────┘
//	                 ┌──────────────┐                             ↑
//	                 │    Store     │─────────────────────────────┘
//	                 │ (RWMutex)    │
//	                 └──────────────┘
//
// Every path that touches messages recomputes the cached last-message summary
// before releasing the lock, so LastMessage never drifts from the thread tail.
//
// # Poll results
//
// Apply runs chat.Reconcile against the store's own state: the previous
// baseline, the current selection, operator flag overrides, locally sent
// messages still waiting for a backend echo, and deletion tombstones.
//
// Fetches are numbered by BeginFetch. A result older than one already applied
// is discarded, so a slow request can never roll the list back.
//
// # Local state that outlives a poll
//
//   - Flag overrides (pin, mute, archive) from UpsertFlags.
//   - Pending local messages from AppendMessage(..., true), until the backend
//     reports a matching message.
//   - Message edits and removals from EditMessage and RemoveMessage. They
//     follow a pending message to its backend copy once echoed.
//   - Tombstones from DeleteConversation. A deleted conversation returns
//     only when the backend shows activity newer than the deletion.
//
// # Snapshots
//
// Snapshot returns deep copies. Callers may modify them freely.
package state
