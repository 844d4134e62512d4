package app

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/five82/chatdesk/internal/backend"
	"github.com/five82/chatdesk/internal/state"
)

const defaultPollInterval = 3 * time.Second

// Poller refreshes the store from a fetcher at a fixed cadence.
type Poller struct {
	store    *state.Store
	fetcher  backend.ConversationFetcher
	interval time.Duration
	logger   *slog.Logger

	inFlight atomic.Bool
	wg       sync.WaitGroup
	refresh  chan struct{}
}

// NewPoller builds a Poller. Call Start to begin polling.
func NewPoller(store *state.Store, fetcher backend.ConversationFetcher, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		store:    store,
		fetcher:  fetcher,
		interval: interval,
		logger:   logger.With("component", "poller"),
		refresh:  make(chan struct{}, 1),
	}
}

// StartPoller launches a background goroutine that refreshes the store at a
// fixed cadence. It returns immediately.
func StartPoller(ctx context.Context, store *state.Store, fetcher backend.ConversationFetcher, interval time.Duration, logger *slog.Logger) *Poller {
	p := NewPoller(store, fetcher, interval, logger)
	p.Start(ctx)
	return p
}

// Start runs the loop until ctx is cancelled. The first fetch happens
// immediately.
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.tick(ctx)
			case <-p.refresh:
				p.wg.Add(1)
				go func() {
					defer p.wg.Done()
					p.poll(ctx)
				}()
			}
		}
	}()
}

// Refresh asks for an out-of-band fetch. It does not block; requests that
// arrive while one is queued are coalesced. Manual refreshes run even when a
// tick is in flight.
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Wait blocks until the loop and any in-flight fetch have returned.
func (p *Poller) Wait() {
	p.wg.Wait()
}

// tick polls unless a previous tick is still waiting on the backend.
func (p *Poller) tick(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.logger.Debug("poll skipped, previous fetch in flight")
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inFlight.Store(false)
		p.poll(ctx)
	}()
}

// poll runs a single fetch and records its outcome.
func (p *Poller) poll(ctx context.Context) {
	refresh(ctx, p.store, p.fetcher, p.logger)
}

func refresh(ctx context.Context, store *state.Store, fetcher backend.ConversationFetcher, logger *slog.Logger) {
	seq := store.BeginFetch()
	started := time.Now()
	convs, err := fetcher.FetchConversations(ctx)
	if ctx.Err() != nil {
		// Shutting down; the result is stale by definition.
		return
	}
	if err != nil {
		store.Fail(seq, err)
		logger.Warn("conversation poll failed", "error", err, "duration", time.Since(started))
		return
	}
	res, applied := store.Apply(seq, convs)
	if !applied {
		logger.Debug("stale poll result dropped", "seq", seq)
		return
	}
	if len(res.NewlyAppeared) > 0 || len(res.Advanced) > 0 || res.AutoSelected {
		logger.Info("conversations updated",
			"count", len(res.Conversations),
			"new", len(res.NewlyAppeared),
			"advanced", len(res.Advanced),
			"selected", res.Selected,
			"auto_selected", res.AutoSelected,
		)
	}
}
