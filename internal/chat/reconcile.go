package chat

import (
	"slices"
	"strings"
	"time"
)

const (
	// DefaultStaleness hides conversations with no activity in the last day.
	DefaultStaleness = 24 * time.Hour
	// DefaultRecency flags activity this recent as unseen even when the
	// backend already reports the conversation as read.
	DefaultRecency = 5 * time.Minute

	// echoSkew tolerates clock drift between the console and the backend when
	// matching a locally sent message against its remote copy.
	echoSkew = time.Minute
)

// Policy holds the time windows used by Reconcile.
type Policy struct {
	Staleness time.Duration
	Recency   time.Duration
}

// DefaultPolicy returns the stock 24h staleness / 5m recency windows.
func DefaultPolicy() Policy {
	return Policy{Staleness: DefaultStaleness, Recency: DefaultRecency}
}

func (p Policy) withDefaults() Policy {
	if p.Staleness <= 0 {
		p.Staleness = DefaultStaleness
	}
	if p.Recency <= 0 {
		p.Recency = DefaultRecency
	}
	return p
}

// Input is everything Reconcile looks at. None of it is mutated.
type Input struct {
	// Baseline is the backend snapshot accepted on the previous cycle.
	Baseline []Conversation
	// Fetched is the freshly decoded backend snapshot.
	Fetched []Conversation
	// Selected is the ID of the conversation the operator is viewing.
	Selected string

	// Overrides are operator flag changes that win over backend flags.
	Overrides map[string]FlagPatch
	// Pending are locally originated messages keyed by conversation ID that
	// the backend has not echoed back yet.
	Pending map[string][]Message
	// Edits are operator changes to individual messages, keyed by
	// conversation ID and then message ID.
	Edits map[string]map[string]MessageEdit
	// Deleted maps explicitly deleted conversation IDs to the backend
	// LastMessageTime observed when they were deleted.
	Deleted map[string]time.Time

	Now    time.Time
	Policy Policy
}

// Result is the outcome of one reconciliation cycle.
type Result struct {
	// Conversations is the merged store list in display order.
	Conversations []Conversation
	// Baseline is the backend view to compare the next fetch against.
	Baseline []Conversation

	Selected     string
	AutoSelected bool

	NewlyAppeared []string
	Advanced      []string

	// Unseen marks conversations with activity the operator has not viewed.
	Unseen map[string]bool
	// Echoed maps, per conversation, pending message IDs that the backend now
	// carries to the ID of the backend's copy, so the caller can stop
	// tracking them and move any edits across.
	Echoed map[string]map[string]string
	// Revived lists deleted conversations that came back with new activity.
	Revived []string
}

// Reconcile merges a fetched conversation list into local state and decides
// whether to move the selection. It is a pure function of its input.
func Reconcile(in Input) Result {
	policy := in.Policy.withDefaults()
	cutoff := in.Now.Add(-policy.Staleness)

	res := Result{
		Selected: in.Selected,
		Unseen:   make(map[string]bool),
	}

	backendTimes := make(map[string]time.Time, len(in.Fetched))
	seen := make(map[string]struct{}, len(in.Fetched))

	for _, fetched := range in.Fetched {
		if fetched.ID == "" {
			continue
		}
		// First occurrence wins so one ID maps to one record.
		if _, dup := seen[fetched.ID]; dup {
			continue
		}
		seen[fetched.ID] = struct{}{}

		if watermark, deleted := in.Deleted[fetched.ID]; deleted {
			if !fetched.LastMessageTime.After(watermark) {
				continue
			}
			res.Revived = append(res.Revived, fetched.ID)
		}

		remote := fetched.Clone()
		merged := remote.Clone()
		if patch, ok := in.Overrides[merged.ID]; ok {
			merged.Flags = patch.Apply(merged.Flags)
		}
		echoed := overlayPending(&merged, in.Pending[merged.ID])
		if len(echoed) > 0 {
			if res.Echoed == nil {
				res.Echoed = make(map[string]map[string]string)
			}
			res.Echoed[merged.ID] = echoed
		}

		// Local edits never count as activity. An unsent reply newer than the
		// backend's tail does.
		activity := remote.LastMessageTime
		if merged.LastMessageTime.After(activity) {
			activity = merged.LastMessageTime
		}
		if !activity.After(cutoff) {
			continue
		}
		applyEdits(&merged, in.Edits[merged.ID], echoed)

		res.Baseline = append(res.Baseline, remote)
		res.Conversations = append(res.Conversations, merged)
		backendTimes[merged.ID] = remote.LastMessageTime
	}

	SortConversations(res.Conversations)

	previous := make(map[string]time.Time, len(in.Baseline))
	for _, conv := range in.Baseline {
		previous[conv.ID] = conv.LastMessageTime
	}

	var candidate string
	var advancedCandidate string
	for _, conv := range res.Conversations {
		prevTime, existed := previous[conv.ID]
		switch {
		case !existed:
			res.NewlyAppeared = append(res.NewlyAppeared, conv.ID)
			if candidate == "" && focusable(conv) {
				candidate = conv.ID
			}
		case backendTimes[conv.ID].After(prevTime):
			res.Advanced = append(res.Advanced, conv.ID)
			if advancedCandidate == "" && focusable(conv) {
				advancedCandidate = conv.ID
			}
		}
	}
	if candidate == "" {
		candidate = advancedCandidate
	}
	if candidate != "" && candidate != in.Selected {
		res.Selected = candidate
		res.AutoSelected = true
	}

	for _, conv := range res.Conversations {
		if conv.ID == res.Selected {
			continue
		}
		recent := in.Now.Sub(backendTimes[conv.ID]) < policy.Recency
		if !conv.IsRead || recent {
			res.Unseen[conv.ID] = true
		}
	}

	return res
}

// SortConversations orders pinned conversations first, then by most recent
// activity. Ties fall back to ID so the order is deterministic.
func SortConversations(list []Conversation) {
	slices.SortStableFunc(list, func(a, b Conversation) int {
		if a.Pinned != b.Pinned {
			if a.Pinned {
				return -1
			}
			return 1
		}
		if c := b.LastMessageTime.Compare(a.LastMessageTime); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// focusable reports whether a conversation may take focus on its own.
func focusable(c Conversation) bool {
	return !c.Archived && !c.Muted
}

// overlayPending merges pending messages the backend has not echoed into
// conv by timestamp. A pending message goes after every message not newer
// than it, so backend order is kept and a newer backend tail stays the tail.
// It returns local ID to remote ID for the ones it has.
func overlayPending(conv *Conversation, pending []Message) map[string]string {
	if len(pending) == 0 {
		return nil
	}
	used := make([]bool, len(conv.Messages))
	var echoed map[string]string
	var missing []Message
	for _, p := range pending {
		if idx := matchEcho(conv.Messages, used, p); idx >= 0 {
			used[idx] = true
			if echoed == nil {
				echoed = make(map[string]string)
			}
			echoed[p.ID] = conv.Messages[idx].ID
			continue
		}
		missing = append(missing, p)
	}
	if len(missing) > 0 {
		msgs := slices.Clip(conv.Messages)
		for _, m := range missing {
			at := slices.IndexFunc(msgs, func(x Message) bool { return x.Timestamp.After(m.Timestamp) })
			if at < 0 {
				at = len(msgs)
			}
			msgs = slices.Insert(msgs, at, m)
		}
		conv.Messages = msgs
		conv.RecomputeSummary()
	}
	return echoed
}

// applyEdits rewrites or drops messages the operator changed. echoed lets an
// edit recorded against a local ID follow the message to its backend copy.
func applyEdits(conv *Conversation, edits map[string]MessageEdit, echoed map[string]string) {
	if len(edits) == 0 {
		return
	}
	alias := make(map[string]string, len(echoed))
	for local, remote := range echoed {
		alias[remote] = local
	}
	changed := false
	kept := conv.Messages[:0:0]
	for _, m := range conv.Messages {
		edit, ok := edits[m.ID]
		if !ok {
			if local, isEcho := alias[m.ID]; isEcho {
				edit, ok = edits[local]
			}
		}
		if !ok {
			kept = append(kept, m)
			continue
		}
		changed = true
		if edit.Removed {
			continue
		}
		m.Content = edit.Content
		kept = append(kept, m)
	}
	if changed {
		conv.Messages = kept
		conv.RecomputeSummary()
	}
}

func matchEcho(remote []Message, used []bool, local Message) int {
	earliest := local.Timestamp.Add(-echoSkew)
	for i, m := range remote {
		if used[i] || m.Content != local.Content {
			continue
		}
		if m.Timestamp.Before(earliest) {
			continue
		}
		if m.Type == local.Type || (m.Type != TypeUser && local.Type != TypeUser) {
			return i
		}
	}
	return -1
}
