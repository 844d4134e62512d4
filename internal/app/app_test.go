package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/five82/chatdesk/internal/desk"
)

func TestLoadConfig_AppliesOverrides(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := LoadConfig(Options{
		ConfigPath: filepath.Join(home, "missing.toml"),
		PollEvery:  7 * time.Second,
		APIURL:     " 10.1.1.1:9000 ",
		LogLevel:   "WARN",
		DemoFile:   "~/demo.yaml",
	})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.PollInterval != 7*time.Second {
		t.Fatalf("PollInterval = %v, want 7s", cfg.PollInterval)
	}
	if cfg.APIURL != "10.1.1.1:9000" || cfg.LogLevel != "warn" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.DemoFile != filepath.Join(home, "demo.yaml") {
		t.Fatalf("DemoFile = %q", cfg.DemoFile)
	}
}

func TestBuild_RejectsUnknownLogLevel(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if _, err := Build(Options{ConfigPath: filepath.Join(home, "missing.toml"), LogLevel: "loud", Demo: true}); err == nil {
		t.Fatalf("Build returned nil error for an unknown log level")
	}
}

func TestBuild_DemoModeEchoesSends(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	deps, err := Build(Options{ConfigPath: filepath.Join(home, "missing.toml"), Demo: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = deps.Close() })
	if deps.Label != "demo" || deps.Prefix != "fb_" {
		t.Fatalf("deps label %q prefix %q, want demo/fb_", deps.Label, deps.Prefix)
	}
	if _, err := os.Stat(deps.Config.LogFile); err != nil {
		t.Fatalf("log file not created: %v", err)
	}

	ctx := context.Background()
	refresh(ctx, deps.Store, deps.Fetcher, deps.Logger)
	snap := deps.Store.Snapshot()
	if !snap.Loaded || len(snap.Conversations) == 0 {
		t.Fatalf("demo poll loaded nothing: %+v", snap)
	}

	d := desk.New(ctx, deps.Store, deps.Backend, desk.Options{ExternalPrefix: deps.Prefix, Logger: deps.Logger})
	t.Cleanup(d.Close)
	if err := d.Select("demo-1"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if _, err := d.Send("see you at 10"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	d.Wait()
	refresh(ctx, deps.Store, deps.Fetcher, deps.Logger)

	conv, ok := deps.Store.Conversation("demo-1")
	if !ok {
		t.Fatalf("demo-1 missing after refresh")
	}
	count := 0
	for _, m := range conv.Messages {
		if m.Content == "see you at 10" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("sent message appears %d times, want exactly once after the echo", count)
	}
	if errs := deps.Store.Snapshot().SendErrors; len(errs) != 0 {
		t.Fatalf("send errors = %v, want none", errs)
	}
}
