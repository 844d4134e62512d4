// Package logtail reads the tail of chatdesk's own log file for the in-app
// log view.
//
// Read keeps a ring buffer of the last maxLines lines, so memory stays
// bounded however large the file grows. Missing files read as empty.
//
// Parse decodes lines written by slog's text handler:
//
//	time=2026-03-01T10:00:00.000+07:00 level=WARN msg="conversation poll failed" component=poller error="connection refused"
//
// into a Record carrying the time, level, message, component and the
// remaining attributes. Lines that are not logfmt are kept verbatim so
// nothing written to the file is hidden.
package logtail
