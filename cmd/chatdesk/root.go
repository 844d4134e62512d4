package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/chatdesk/internal/app"
	"github.com/five82/chatdesk/internal/backend"
	"github.com/five82/chatdesk/internal/prefs"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	prefsPath  string
	apiURL     string
	logLevel   string
}

func (g *globalOptions) appOptions() app.Options {
	return app.Options{
		ConfigPath: g.configPath,
		PrefsPath:  g.prefsPath,
		APIURL:     g.apiURL,
		LogLevel:   g.logLevel,
	}
}

// client builds a backend client from config plus flags.
func (g *globalOptions) client() (*backend.Client, error) {
	cfg, err := app.LoadConfig(g.appOptions())
	if err != nil {
		return nil, err
	}
	client, err := backend.NewClient(cfg.APIURL, backend.Options{
		Timeout:  cfg.RequestTimeout,
		Location: cfg.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("init backend client: %w", err)
	}
	return client, nil
}

// rememberSession stores id as the session the TUI resumes.
func (g *globalOptions) rememberSession(id string) error {
	return prefs.Update(g.prefsPath, func(p *prefs.Prefs) { p.LastSession = id })
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	var (
		poll     time.Duration
		demo     bool
		demoFile string
	)

	root := &cobra.Command{
		Use:   "chatdesk",
		Short: "Terminal admin console for the chatbot backend",
		Long: `chatdesk keeps a live view of the chatbot backend's conversations and lets
an operator reply, pin, mute, archive and delete them, switch the assistant
on and off and manage knowledge-base sessions and environment profiles.

Run without a subcommand to open the console.

Quick Start:
  chatdesk                               # open the console
  chatdesk --demo                        # try it against sample conversations
  chatdesk session start --db mongodb --name shop --collection faq
  chatdesk env list                      # list environment profiles`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := g.appOptions()
			opts.PollEvery = poll
			opts.Demo = demo
			opts.DemoFile = demoFile
			return app.Run(cmd.Context(), opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default ~/.config/chatdesk/config.toml)")
	pf.StringVar(&g.prefsPath, "prefs", "", "preferences file (default ~/.config/chatdesk/prefs.toml)")
	pf.StringVar(&g.apiURL, "api", "", "backend address, host:port or URL (overrides api_url)")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")

	f := root.Flags()
	f.DurationVar(&poll, "poll", 0, "conversation poll interval, e.g. 2s (overrides poll_seconds)")
	f.BoolVar(&demo, "demo", false, "serve the built-in sample conversations instead of the backend")
	f.StringVar(&demoFile, "demo-file", "", "serve conversations from a YAML demo file")

	root.AddCommand(
		newSessionCmd(g),
		newUploadCmd(g),
		newAutomationCmd(g),
		newEnvCmd(g),
		newMongoCmd(g),
		newPineconeCmd(g),
		newDemoCmd(g),
	)
	return root
}

// withTimeout bounds a one-shot command's backend call.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, 2*time.Minute)
}
