// Package config loads chatdesk's TOML configuration.
//
// # Resolution
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/chatdesk/config.toml
//  3. If the file doesn't exist, use built-in defaults
//  4. Blank strings and non-positive numbers fall back to defaults
//
// Command-line flags are applied on top by the caller.
//
// # Keys
//
//	api_url                 = "127.0.0.1:8000"   # backend host:port or URL
//	poll_seconds            = 3
//	staleness_hours         = 24   # hide conversations idle this long
//	recency_minutes         = 5    # activity this recent counts as unseen
//	external_prefix         = "fb_"
//	timezone                = "Asia/Bangkok"
//	log_file                = "~/.local/state/chatdesk/chatdesk.log"
//	log_level               = "info"
//	demo_file               = ""   # YAML conversations instead of the backend
//	request_timeout_seconds = 10
//
// The timezone is used both to interpret naive backend timestamps and to
// render message times.
//
// # Path Expansion
//
// Paths starting with ~ are expanded with os.UserHomeDir and made absolute.
package config
