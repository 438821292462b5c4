// Package mdformat implements the markdown-with-frontmatter on-disk grammar
// shared by every Workspace entity (spec.md §4.1, §6.1): a YAML-style
// frontmatter block delimited by bare "---" lines, split key:value per line
// at the first colon, followed by a free-form markdown body.
package mdformat

import "strings"

// ParseError reports a frontmatter parsing failure. Entity packages embed
// or wrap this under their own error taxonomy (PARSE_ERROR).
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "mdformat: parse error: " + e.Reason }

func (e *ParseError) Code() string { return "PARSE_ERROR" }

// ParseFrontmatter splits a markdown entity file into its frontmatter
// key/value map and body, per spec.md §4.1/§6.1:
//
//   - Delimiters are lines containing exactly "---" (trailing whitespace
//     allowed), and ONLY the first two such lines are treated as delimiters
//     — a "---" inside a fenced code block further down in the body is
//     never reached because scanning stops at the second delimiter line.
//   - Each frontmatter line is split at the FIRST colon; lines without a
//     colon, or with an empty key, are ignored.
func ParseFrontmatter(data []byte) (map[string]string, string, error) {
	lines := strings.Split(string(data), "\n")

	firstDelim := -1
	for i, l := range lines {
		if strings.TrimRight(l, " \t\r") == "---" {
			firstDelim = i
			break
		}
	}
	if firstDelim < 0 {
		return nil, "", &ParseError{Reason: "missing frontmatter opening delimiter"}
	}
	secondDelim := -1
	for i := firstDelim + 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], " \t\r") == "---" {
			secondDelim = i
			break
		}
	}
	if secondDelim < 0 {
		return nil, "", &ParseError{Reason: "missing frontmatter closing delimiter"}
	}

	fm := make(map[string]string)
	for _, l := range lines[firstDelim+1 : secondDelim] {
		idx := strings.Index(l, ":")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(l[:idx])
		if key == "" {
			continue
		}
		val := strings.TrimSpace(l[idx+1:])
		fm[key] = val
	}

	body := strings.Join(lines[secondDelim+1:], "\n")
	return fm, strings.TrimLeft(body, "\n"), nil
}

// ExtractField finds a line of the form "- **Label:** value" in body and
// returns value (used for Goal/description-style single-line body fields).
func ExtractField(body, label string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, label) {
			return strings.TrimSpace(strings.TrimPrefix(line, label))
		}
	}
	return ""
}

// ExtractSection returns the body text strictly between two section headers.
// Pass "" for end to read to the end of the body.
func ExtractSection(body, start, end string) string {
	si := strings.Index(body, start)
	if si < 0 {
		return ""
	}
	si += len(start)
	rest := body[si:]
	ei := len(rest)
	if end != "" {
		if idx := strings.Index(rest, end); idx >= 0 {
			ei = idx
		}
	}
	return strings.TrimSpace(rest[:ei])
}
