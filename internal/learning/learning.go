// Package learning implements the LearningEntry record (spec.md §3) and the
// append-only "# Learnings" log format used by memory/learnings.md
// (spec.md §4.1).
package learning

import (
	"fmt"
	"strings"
	"time"
)

const timeLayout = time.RFC3339Nano

const header = "# Learnings"

// Entry is one durable lesson recorded from a past decision.
type Entry struct {
	Timestamp time.Time
	Source    string // the skill, goal, or pipeline that produced this learning
	Note      string
}

// Format renders a single entry as one log line, e.g.:
//
//	- 2026-02-16T06:00:00Z [copywriting] The brief omitted tone guidance.
func (e Entry) Format() string {
	return fmt.Sprintf("- %s [%s] %s", e.Timestamp.Format(timeLayout), e.Source, e.Note)
}

// Append adds entry to the end of an existing learnings.md body, prepending
// the "# Learnings" header if body is empty or lacks it — per spec.md §4.1
// ("on first call it prepends a '# Learnings' header").
func Append(body string, entry Entry) string {
	body = strings.TrimRight(body, "\n")
	if body == "" {
		return header + "\n\n" + entry.Format() + "\n"
	}
	if !strings.HasPrefix(body, header) {
		return header + "\n\n" + body + "\n" + entry.Format() + "\n"
	}
	return body + "\n" + entry.Format() + "\n"
}

// Parse reads back every entry line from a learnings.md body. Lines that do
// not match the "- {ts} [{source}] {note}" shape are ignored — the header
// and any free-form prose a human appended by hand are tolerated, not
// treated as a parse failure.
func Parse(body string) []Entry {
	var out []Entry
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		rest := strings.TrimPrefix(line, "- ")
		ts, rest, ok := strings.Cut(rest, " [")
		if !ok {
			continue
		}
		source, note, ok := strings.Cut(rest, "] ")
		if !ok {
			continue
		}
		parsed, err := time.Parse(timeLayout, ts)
		if err != nil {
			continue
		}
		out = append(out, Entry{Timestamp: parsed, Source: source, Note: note})
	}
	return out
}
