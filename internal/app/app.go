package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/five82/chatdesk/internal/backend"
	"github.com/five82/chatdesk/internal/chat"
	"github.com/five82/chatdesk/internal/config"
	"github.com/five82/chatdesk/internal/demo"
	"github.com/five82/chatdesk/internal/desk"
	"github.com/five82/chatdesk/internal/logging"
	"github.com/five82/chatdesk/internal/prefs"
	"github.com/five82/chatdesk/internal/state"
	"github.com/five82/chatdesk/internal/ui"
)

// Options configure the chatdesk application. Set fields override the
// config file.
type Options struct {
	ConfigPath string
	PrefsPath  string        // empty uses default ~/.config/chatdesk/prefs.toml
	PollEvery  time.Duration // zero uses the configured interval
	APIURL     string
	LogLevel   string
	// Demo serves conversations from DemoFile, or the built-in sample when
	// DemoFile is empty.
	Demo     bool
	DemoFile string
}

// Deps are the pieces Run assembles. Build exposes them for commands that
// need a store and desk without the TUI.
type Deps struct {
	Config  config.Config
	Logger  *slog.Logger
	Store   *state.Store
	Fetcher backend.ConversationFetcher
	Backend desk.Backend
	Label   string // backend address or "demo"
	Prefix  string

	closeLog func() error
}

// Close releases the log file.
func (d *Deps) Close() error {
	if d.closeLog == nil {
		return nil
	}
	return d.closeLog()
}

// LoadConfig reads the config file and applies the overrides in opts.
func LoadConfig(opts Options) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if opts.PollEvery > 0 {
		cfg.PollInterval = opts.PollEvery
	}
	if v := strings.TrimSpace(opts.APIURL); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(opts.LogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(opts.DemoFile); v != "" {
		cfg.DemoFile = config.ExpandPath(v)
	}
	return cfg, nil
}

// Build loads config, opens the log and picks the backend.
func Build(opts Options) (*Deps, error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger, closer, err := logging.Open(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	deps := &Deps{Config: cfg, Logger: logger, Prefix: cfg.ExternalPrefix, closeLog: closer.Close}

	if opts.Demo || cfg.DemoFile != "" {
		src, err := demo.Load(cfg.DemoFile)
		if err != nil {
			_ = deps.Close()
			return nil, err
		}
		deps.Fetcher, deps.Backend = src, src
		deps.Label = "demo"
		deps.Prefix = src.Prefix()
	} else {
		client, err := backend.NewClient(cfg.APIURL, backend.Options{
			Timeout:  cfg.RequestTimeout,
			Location: cfg.Location,
		})
		if err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("init backend client: %w", err)
		}
		deps.Fetcher, deps.Backend = client, client
		deps.Label = client.BaseURL()
	}

	deps.Store = state.New(chat.Policy{Staleness: cfg.Staleness, Recency: cfg.Recency})
	return deps, nil
}

// Run boots the chatdesk TUI until the context is cancelled or the user
// quits.
func Run(ctx context.Context, opts Options) error {
	deps, err := Build(opts)
	if err != nil {
		return err
	}
	defer deps.Close()

	logger := deps.Logger
	cfg := deps.Config

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		logger.Warn("load preferences failed", "error", err)
	}

	logger.Info("chatdesk starting",
		"backend", deps.Label,
		"poll_interval", cfg.PollInterval.String(),
		"timezone", cfg.Timezone,
	)

	poller := NewPoller(deps.Store, deps.Fetcher, cfg.PollInterval, logger)

	d := desk.New(ctx, deps.Store, deps.Backend, desk.Options{
		ExternalPrefix:  deps.Prefix,
		Refresh:         poller.Refresh,
		DispatchTimeout: cfg.RequestTimeout,
		Logger:          logger,
	})
	defer d.Close()
	d.SetSession(userPrefs.LastSession)

	pollCtx, stopPolling := context.WithCancel(ctx)
	poller.Start(pollCtx)
	defer func() {
		stopPolling()
		poller.Wait()
	}()

	err = ui.Run(ui.Options{
		Context:        ctx,
		Store:          deps.Store,
		Desk:           d,
		Refresh:        poller.Refresh,
		Location:       cfg.Location,
		ExternalPrefix: deps.Prefix,
		BackendLabel:   deps.Label,
		PollInterval:   cfg.PollInterval,
		ThemeName:      userPrefs.Theme,
		PrefsPath:      opts.PrefsPath,
		ShowArchived:   userPrefs.ShowArchived,
		LogFile:        cfg.LogFile,
		Logger:         logger,
	})
	logger.Info("chatdesk stopped", "error", err)
	return err
}
