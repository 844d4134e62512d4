package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds chatdesk's settings.
type Config struct {
	APIURL         string
	PollInterval   time.Duration
	Staleness      time.Duration
	Recency        time.Duration
	ExternalPrefix string
	Timezone       string
	Location       *time.Location
	LogFile        string
	LogLevel       string
	DemoFile       string // empty means talk to the backend
	RequestTimeout time.Duration
}

const (
	defaultConfigPath     = "~/.config/chatdesk/config.toml"
	defaultAPIURL         = "127.0.0.1:8000"
	defaultPollSeconds    = 3
	defaultStalenessHours = 24
	defaultRecencyMinutes = 5
	defaultExternalPrefix = "fb_"
	defaultTimezone       = "Asia/Bangkok"
	defaultLogFile        = "~/.local/state/chatdesk/chatdesk.log"
	defaultLogLevel       = "info"
	defaultTimeoutSeconds = 10
)

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return defaultConfigPath
}

// Default returns the built-in configuration.
func Default() Config {
	cfg := Config{
		APIURL:         defaultAPIURL,
		PollInterval:   defaultPollSeconds * time.Second,
		Staleness:      defaultStalenessHours * time.Hour,
		Recency:        defaultRecencyMinutes * time.Minute,
		ExternalPrefix: defaultExternalPrefix,
		Timezone:       defaultTimezone,
		LogFile:        mustExpand(defaultLogFile),
		LogLevel:       defaultLogLevel,
		RequestTimeout: defaultTimeoutSeconds * time.Second,
	}
	cfg.Location = loadLocation(cfg.Timezone)
	return cfg
}

// Load reads the config file at path (or the default location), falling
// back to defaults when it is missing. Blank or non-positive values also
// fall back to defaults.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIURL                string  `toml:"api_url"`
		PollSeconds           float64 `toml:"poll_seconds"`
		StalenessHours        float64 `toml:"staleness_hours"`
		RecencyMinutes        float64 `toml:"recency_minutes"`
		ExternalPrefix        string  `toml:"external_prefix"`
		Timezone              string  `toml:"timezone"`
		LogFile               string  `toml:"log_file"`
		LogLevel              string  `toml:"log_level"`
		DemoFile              string  `toml:"demo_file"`
		RequestTimeoutSeconds float64 `toml:"request_timeout_seconds"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIURL); v != "" {
		cfg.APIURL = v
	}
	if raw.PollSeconds > 0 {
		cfg.PollInterval = seconds(raw.PollSeconds)
	}
	if raw.StalenessHours > 0 {
		cfg.Staleness = time.Duration(raw.StalenessHours * float64(time.Hour))
	}
	if raw.RecencyMinutes > 0 {
		cfg.Recency = time.Duration(raw.RecencyMinutes * float64(time.Minute))
	}
	if v := strings.TrimSpace(raw.ExternalPrefix); v != "" {
		cfg.ExternalPrefix = v
	}
	if v := strings.TrimSpace(raw.Timezone); v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse config: timezone %q: %w", v, err)
		}
		cfg.Timezone = v
		cfg.Location = loc
	}
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		cfg.LogFile = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(raw.DemoFile); v != "" {
		cfg.DemoFile = mustExpand(v)
	}
	if raw.RequestTimeoutSeconds > 0 {
		cfg.RequestTimeout = seconds(raw.RequestTimeoutSeconds)
	}

	return cfg, nil
}

// ExpandPath resolves a leading ~ and makes path absolute. Errors leave path
// unchanged.
func ExpandPath(path string) string {
	return mustExpand(path)
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// loadLocation falls back to a fixed UTC+7 zone when the tz database is
// unavailable, which happens on minimal containers.
func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("ICT", 7*60*60)
	}
	return loc
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
