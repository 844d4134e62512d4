package ui

import (
	"errors"
	"testing"
	"time"
)

func TestTruncate(t *testing.T) {
	cases := []struct {
		in    string
		limit int
		want  string
	}{
		{"short", 10, "short"},
		{"  padded  ", 10, "padded"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "abc"},
		{"สวัสดีครับ", 5, "สว..."},
		{"anything", 0, "anything"},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.limit); got != tc.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
		}
	}
}

func TestOneLine(t *testing.T) {
	if got := oneLine("  line one\n\nline\ttwo  "); got != "line one line two" {
		t.Fatalf("oneLine = %q", got)
	}
}

func TestPadRight(t *testing.T) {
	if got := padRight("ab", 4); got != "ab  " {
		t.Fatalf("padRight = %q", got)
	}
	if got := padRight("abcdef", 4); got != "abcdef" {
		t.Fatalf("padRight longer = %q", got)
	}
}

func TestFormatChatTime(t *testing.T) {
	loc := time.FixedZone("ICT", 7*60*60)
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, loc)
	cases := []struct {
		name string
		in   time.Time
		want string
	}{
		{"zero", time.Time{}, ""},
		{"today", time.Date(2026, 3, 14, 9, 5, 0, 0, loc), "09:05"},
		{"today_from_utc", time.Date(2026, 3, 14, 2, 5, 0, 0, time.UTC), "09:05"},
		{"yesterday", time.Date(2026, 3, 13, 23, 59, 0, 0, loc), "Yesterday 23:59"},
		{"this_year", time.Date(2026, 1, 2, 8, 0, 0, 0, loc), "Jan 2 08:00"},
		{"older", time.Date(2025, 12, 31, 8, 0, 0, 0, loc), "2025-12-31 08:00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatChatTime(tc.in, now, loc); got != tc.want {
				t.Fatalf("formatChatTime = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFormatAgo(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		ago  time.Duration
		want string
	}{
		{"now", 30 * time.Second, "now"},
		{"future", -time.Minute, "now"},
		{"minutes", 5 * time.Minute, "5m"},
		{"hours", 3*time.Hour + 10*time.Minute, "3h"},
		{"days", 50 * time.Hour, "2d"},
		{"date", 10 * 24 * time.Hour, "Mar 4"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatAgo(now.Add(-tc.ago), now, time.UTC); got != tc.want {
				t.Fatalf("formatAgo = %q, want %q", got, tc.want)
			}
		})
	}
	if got := formatAgo(time.Time{}, now, time.UTC); got != "" {
		t.Fatalf("formatAgo(zero) = %q, want empty", got)
	}
}

func TestClassifyConnectionError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errors.New("dial tcp 127.0.0.1:8000: connect: connection refused"), "OFFLINE"},
		{errors.New("dial tcp: lookup backend: no such host"), "HOST NOT FOUND"},
		{errors.New("context deadline exceeded"), "TIMEOUT"},
		{errors.New("decode conversations: malformed payload"), "BAD PAYLOAD"},
		{errors.New("status 500"), "ERROR"},
	}
	for _, tc := range cases {
		if got := classifyConnectionError(tc.err); got != tc.want {
			t.Fatalf("classifyConnectionError(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestListWidth(t *testing.T) {
	cases := []struct {
		total int
		want  int
	}{
		{60, listMinWidth},
		{100, 35},
		{200, listMaxWidth},
		{20, 20},
		{LayoutCompactWidth, 31},
	}
	for _, tc := range cases {
		if got := listWidth(tc.total); got != tc.want {
			t.Fatalf("listWidth(%d) = %d, want %d", tc.total, got, tc.want)
		}
	}
}
