package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-logfmt/logfmt"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line. A missing file yields no lines.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Attr is one key=value pair of a record beyond time, level and msg.
type Attr struct {
	Key   string
	Value string
}

// Record is a parsed slog text line.
type Record struct {
	Time      time.Time
	Level     string
	Message   string
	Component string
	Attrs     []Attr
	// Raw is the original line. Lines that are not logfmt only carry Raw.
	Raw string
}

// Parsed reports whether the line decoded as a slog record.
func (r Record) Parsed() bool {
	return r.Level != "" || r.Message != ""
}

// Parse decodes a single slog text handler line. Malformed lines come back
// with only Raw set rather than as an error.
func Parse(line string) Record {
	rec := Record{Raw: line}
	if strings.TrimSpace(line) == "" {
		return rec
	}
	dec := logfmt.NewDecoder(strings.NewReader(line))
	if !dec.ScanRecord() {
		return rec
	}
	var parsed Record
	parsed.Raw = line
	for dec.ScanKeyval() {
		key, val := string(dec.Key()), string(dec.Value())
		switch key {
		case "time":
			if ts, err := time.Parse(time.RFC3339Nano, val); err == nil {
				parsed.Time = ts
			}
		case "level":
			parsed.Level = strings.ToUpper(val)
		case "msg":
			parsed.Message = val
		case "component":
			parsed.Component = val
		default:
			parsed.Attrs = append(parsed.Attrs, Attr{Key: key, Value: val})
		}
	}
	if dec.Err() != nil || !parsed.Parsed() {
		return rec
	}
	return parsed
}

// ParseLines parses every line, keeping order.
func ParseLines(lines []string) []Record {
	out := make([]Record, len(lines))
	for i, line := range lines {
		out[i] = Parse(line)
	}
	return out
}

// Filter returns records at or above minLevel whose text contains needle
// (case-insensitive). Unparsed lines only match on needle.
func Filter(records []Record, minLevel, needle string) []Record {
	min := levelRank(minLevel)
	needle = strings.ToLower(strings.TrimSpace(needle))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Parsed() && levelRank(r.Level) < min {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(r.Raw), needle) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func levelRank(level string) int {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return 0
	case "WARN", "WARNING":
		return 2
	case "ERROR":
		return 3
	default:
		return 1
	}
}
