package history

import (
	"fmt"
	"strings"
	"time"
)

// lineTimeLayout matches the timestamps already present in room logs, so old
// files keep parsing after upgrades.
const lineTimeLayout = "2006-01-02 15:04:05"

// Line is one parsed history record.
type Line struct {
	Timestamp time.Time
	Name      string
	Email     string // empty for legacy records written without an email
	Text      string
}

// FormatLine renders a record as "[<timestamp>] <name>|<email>: <text>".
// The email segment is omitted when empty, matching the legacy format.
func FormatLine(ts time.Time, name, email, text string) string {
	if email == "" {
		return fmt.Sprintf("[%s] %s: %s", ts.Format(lineTimeLayout), name, text)
	}
	return fmt.Sprintf("[%s] %s|%s: %s", ts.Format(lineTimeLayout), name, email, text)
}

// ParseLine parses both the current "name|email:" and the legacy "name:" forms.
func ParseLine(s string) (Line, error) {
	if !strings.HasPrefix(s, "[") {
		return Line{}, fmt.Errorf("history line %q: missing timestamp", s)
	}
	end := strings.Index(s, "] ")
	if end < 0 {
		return Line{}, fmt.Errorf("history line %q: unterminated timestamp", s)
	}

	ts, err := time.ParseInLocation(lineTimeLayout, s[1:end], time.Local)
	if err != nil {
		return Line{}, fmt.Errorf("history line %q: %w", s, err)
	}

	rest := s[end+2:]
	sep := strings.Index(rest, ": ")
	if sep < 0 {
		return Line{}, fmt.Errorf("history line %q: missing sender", s)
	}

	line := Line{Timestamp: ts, Text: rest[sep+2:]}
	sender := rest[:sep]
	if pipe := strings.Index(sender, "|"); pipe >= 0 {
		line.Name = sender[:pipe]
		line.Email = sender[pipe+1:]
	} else {
		line.Name = sender
	}

	return line, nil
}
