package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != defaultAPIURL {
		t.Fatalf("APIURL = %q, want %q", cfg.APIURL, defaultAPIURL)
	}
	if cfg.PollInterval != 3*time.Second {
		t.Fatalf("PollInterval = %v, want 3s", cfg.PollInterval)
	}
	if cfg.Staleness != 24*time.Hour || cfg.Recency != 5*time.Minute {
		t.Fatalf("windows = %v/%v, want 24h/5m", cfg.Staleness, cfg.Recency)
	}
	if cfg.ExternalPrefix != "fb_" {
		t.Fatalf("ExternalPrefix = %q, want fb_", cfg.ExternalPrefix)
	}
	if cfg.Location == nil {
		t.Fatalf("Location = nil, want default zone")
	}
	wantLog, err := expandPath(defaultLogFile)
	if err != nil {
		t.Fatalf("expandPath(defaultLogFile) returned error: %v", err)
	}
	if cfg.LogFile != wantLog {
		t.Fatalf("LogFile = %q, want %q", cfg.LogFile, wantLog)
	}
	if cfg.DemoFile != "" {
		t.Fatalf("DemoFile = %q, want empty", cfg.DemoFile)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
api_url = "  http://10.0.0.5:9000  "
poll_seconds = 1.5
staleness_hours = 48
recency_minutes = 10
external_prefix = " line_ "
timezone = "UTC"
log_file = "  ~/logs/desk.log  "
log_level = "DEBUG"
demo_file = "~/demo.yaml"
request_timeout_seconds = 4
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != "http://10.0.0.5:9000" {
		t.Fatalf("APIURL = %q", cfg.APIURL)
	}
	if cfg.PollInterval != 1500*time.Millisecond {
		t.Fatalf("PollInterval = %v, want 1.5s", cfg.PollInterval)
	}
	if cfg.Staleness != 48*time.Hour || cfg.Recency != 10*time.Minute {
		t.Fatalf("windows = %v/%v", cfg.Staleness, cfg.Recency)
	}
	if cfg.ExternalPrefix != "line_" {
		t.Fatalf("ExternalPrefix = %q, want line_", cfg.ExternalPrefix)
	}
	if cfg.Location != time.UTC {
		t.Fatalf("Location = %v, want UTC", cfg.Location)
	}
	if !strings.HasPrefix(cfg.LogFile, home) || !strings.HasPrefix(cfg.DemoFile, home) {
		t.Fatalf("paths = %q, %q, want them under HOME %q", cfg.LogFile, cfg.DemoFile, home)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.RequestTimeout != 4*time.Second {
		t.Fatalf("RequestTimeout = %v, want 4s", cfg.RequestTimeout)
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
api_url = "   "
poll_seconds = 0
recency_minutes = -1
external_prefix = ""
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	def := Default()
	if cfg.APIURL != def.APIURL || cfg.PollInterval != def.PollInterval || cfg.Recency != def.Recency || cfg.ExternalPrefix != def.ExternalPrefix {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`api_url = [`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestLoad_UnknownTimezoneFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`timezone = "Mars/Olympus"`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("Load returned nil error, want timezone error")
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}
