package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/five82/chatdesk/internal/chat"
	"github.com/five82/chatdesk/internal/state"
)

type fetcherFunc func(ctx context.Context) ([]chat.Conversation, error)

func (f fetcherFunc) FetchConversations(ctx context.Context) ([]chat.Conversation, error) {
	return f(ctx)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func recent(id string) chat.Conversation {
	ts := time.Now().Add(-time.Minute)
	c := chat.Conversation{ID: id, UserID: "fb_" + id, UserName: id, IsRead: true,
		Messages: []chat.Message{{ID: id + "-1", Type: chat.TypeUser, Content: "hi", Timestamp: ts}}}
	c.RecomputeSummary()
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPoller_FetchesImmediatelyAndApplies(t *testing.T) {
	store := state.New(chat.DefaultPolicy())
	fetcher := fetcherFunc(func(ctx context.Context) ([]chat.Conversation, error) {
		return []chat.Conversation{recent("a")}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	p := StartPoller(ctx, store, fetcher, time.Hour, discardLogger())
	t.Cleanup(func() { cancel(); p.Wait() })

	waitFor(t, "first poll", func() bool { return store.Snapshot().Loaded })
	snap := store.Snapshot()
	if len(snap.Conversations) != 1 || snap.SelectedID != "a" {
		t.Fatalf("snapshot = %d convs selected %q, want a auto-selected", len(snap.Conversations), snap.SelectedID)
	}
}

func TestPoller_SkipsTicksWhileFetchInFlight(t *testing.T) {
	store := state.New(chat.DefaultPolicy())
	release := make(chan struct{})
	var calls atomic.Int32
	fetcher := fetcherFunc(func(ctx context.Context) ([]chat.Conversation, error) {
		calls.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	p := StartPoller(ctx, store, fetcher, 5*time.Millisecond, discardLogger())

	time.Sleep(60 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("fetch calls while blocked = %d, want 1", got)
	}

	close(release)
	waitFor(t, "ticks to resume", func() bool { return calls.Load() > 1 })
	cancel()
	p.Wait()
}

func TestPoller_ManualRefreshRunsDuringInFlightTick(t *testing.T) {
	store := state.New(chat.DefaultPolicy())
	release := make(chan struct{})
	var calls atomic.Int32
	fetcher := fetcherFunc(func(ctx context.Context) ([]chat.Conversation, error) {
		if calls.Add(1) == 1 {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil, ctx.Err()
		}
		return []chat.Conversation{recent("b")}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	p := StartPoller(ctx, store, fetcher, time.Hour, discardLogger())
	t.Cleanup(func() { close(release); cancel(); p.Wait() })

	waitFor(t, "first tick", func() bool { return calls.Load() == 1 })
	p.Refresh()
	waitFor(t, "manual refresh", func() bool { return store.Snapshot().Loaded })
	if got := store.Snapshot().SelectedID; got != "b" {
		t.Fatalf("selected = %q, want b from manual refresh", got)
	}
}

func TestPoller_FailureRecordedAndLoopContinues(t *testing.T) {
	store := state.New(chat.DefaultPolicy())
	var calls atomic.Int32
	fetcher := fetcherFunc(func(ctx context.Context) ([]chat.Conversation, error) {
		calls.Add(1)
		return nil, errors.New("connection refused")
	})

	ctx, cancel := context.WithCancel(context.Background())
	p := StartPoller(ctx, store, fetcher, 5*time.Millisecond, discardLogger())
	t.Cleanup(func() { cancel(); p.Wait() })

	waitFor(t, "repeated failures", func() bool { return store.Snapshot().ConsecutiveFailures >= 3 })
	snap := store.Snapshot()
	if snap.LastError == nil || !snap.IsOffline() {
		t.Fatalf("snapshot = %+v, want error and offline", snap)
	}
}

func TestRefresh_DiscardsResultAfterCancel(t *testing.T) {
	store := state.New(chat.DefaultPolicy())
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := fetcherFunc(func(context.Context) ([]chat.Conversation, error) {
		cancel()
		return []chat.Conversation{recent("late")}, nil
	})

	refresh(ctx, store, fetcher, discardLogger())
	snap := store.Snapshot()
	if snap.Loaded || len(snap.Conversations) != 0 {
		t.Fatalf("snapshot after cancelled fetch = %+v, want untouched", snap)
	}
	if snap.ConsecutiveFailures != 0 {
		t.Fatalf("failures = %d, want cancellation not counted", snap.ConsecutiveFailures)
	}
}

func TestRefresh_OlderResultCannotOverwriteNewer(t *testing.T) {
	store := state.New(chat.DefaultPolicy())
	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	var n atomic.Int32
	fetcher := fetcherFunc(func(context.Context) ([]chat.Conversation, error) {
		if n.Add(1) == 1 {
			close(slowStarted)
			<-releaseSlow
			return []chat.Conversation{recent("old")}, nil
		}
		return []chat.Conversation{recent("new")}, nil
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		refresh(context.Background(), store, fetcher, discardLogger())
	}()
	<-slowStarted
	refresh(context.Background(), store, fetcher, discardLogger())
	close(releaseSlow)
	wg.Wait()

	snap := store.Snapshot()
	if len(snap.Conversations) != 1 || snap.Conversations[0].ID != "new" {
		t.Fatalf("conversations = %v, want only the newer result", snap.Conversations)
	}
}
