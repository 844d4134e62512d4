// Package chat defines the conversation data model and the reconciliation
// step that merges a polled backend snapshot into local console state.
//
// # Reconciliation
//
// Reconcile runs in a fixed order on every poll:
//
//  1. Apply operator flag overrides, re-append locally sent messages
//     the backend has not echoed yet, then apply message edits and
//     removals.
//  2. Drop conversations with no activity inside the staleness window
//     (24h) and conversations the operator deleted, unless they have new
//     activity since deletion.
//  3. Sort pinned first, then by most recent activity.
//  4. Find conversations that newly appeared since the previous baseline.
//  5. Find conversations whose backend activity advanced.
//  6. Move the selection to the first new (else advanced) conversation,
//     unless the operator is already on it.
//  7. Derive unseen markers: unread, or active within the recency window
//     (5m). The selected conversation is never unseen.
//  8. Return the backend view as the next baseline.
//
// Reconcile never mutates its input and gives the same Result for the same
// Input, so overlapping or repeated polls cannot corrupt state.
package chat
