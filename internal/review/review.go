// Package review implements the agent-to-agent Review entity (spec.md §3,
// §6.1): a verdict on a completed task's output, persisted under
// reviews/{taskId}-review[-{n}].md.
package review

import (
	"fmt"
	"strings"
	"time"

	"github.com/marketeros/runtime/internal/mdformat"
)

const timeLayout = time.RFC3339Nano

// Verdict is the outcome of an agent-to-agent review.
type Verdict string

const (
	VerdictApprove Verdict = "APPROVE"
	VerdictRevise  Verdict = "REVISE"
	VerdictReject  Verdict = "REJECT"
)

// Severity tags a Finding.
type Severity string

const (
	SeverityCritical   Severity = "critical"
	SeverityMajor      Severity = "major"
	SeverityMinor      Severity = "minor"
	SeveritySuggestion Severity = "suggestion"
)

// RevisionPriority tags a RevisionRequest.
type RevisionPriority string

const (
	RevisionRequired    RevisionPriority = "required"
	RevisionRecommended RevisionPriority = "recommended"
	RevisionOptional    RevisionPriority = "optional"
)

// Finding is one line of the review's "## Findings" section.
type Finding struct {
	Severity    Severity
	Section     string
	Description string
}

// RevisionRequest is one line of the review's "## Revision Requests" section.
type RevisionRequest struct {
	Priority    RevisionPriority
	Description string
}

// Review is an agent-to-agent verdict on a completed task's output.
type Review struct {
	ID               string
	TaskID           string
	CreatedAt        time.Time
	Reviewer         string
	Author           string
	Verdict          Verdict
	Summary          string
	Findings         []Finding
	RevisionRequests []RevisionRequest
}

// MarshalMarkdown renders the review as frontmatter + body, per spec.md §6.1.
func (r *Review) MarshalMarkdown() (string, error) {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "id: %s\n", r.ID)
	fmt.Fprintf(&b, "task_id: %s\n", r.TaskID)
	fmt.Fprintf(&b, "created_at: %s\n", r.CreatedAt.Format(timeLayout))
	fmt.Fprintf(&b, "reviewer: %s\n", r.Reviewer)
	fmt.Fprintf(&b, "author: %s\n", r.Author)
	fmt.Fprintf(&b, "verdict: %s\n", r.Verdict)
	b.WriteString("---\n\n")

	b.WriteString("## Summary\n\n")
	b.WriteString(r.Summary)
	b.WriteString("\n\n")

	if len(r.Findings) > 0 {
		b.WriteString("## Findings\n\n")
		for _, f := range r.Findings {
			fmt.Fprintf(&b, "- **[%s]** %s: %s\n", f.Severity, f.Section, f.Description)
		}
		b.WriteString("\n")
	}

	if len(r.RevisionRequests) > 0 {
		b.WriteString("## Revision Requests\n\n")
		for _, rr := range r.RevisionRequests {
			fmt.Fprintf(&b, "- **[%s]** %s\n", rr.Priority, rr.Description)
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}

// UnmarshalMarkdown parses a review file produced by MarshalMarkdown.
func UnmarshalMarkdown(data []byte) (*Review, error) {
	fm, body, err := mdformat.ParseFrontmatter(data)
	if err != nil {
		return nil, err
	}

	get := func(k string) string { return fm[k] }
	required := []string{"id", "task_id", "created_at", "reviewer", "author", "verdict"}
	for _, k := range required {
		if _, ok := fm[k]; !ok {
			return nil, &mdformat.ParseError{Reason: fmt.Sprintf("missing required field %q", k)}
		}
	}

	verdict := Verdict(get("verdict"))
	switch verdict {
	case VerdictApprove, VerdictRevise, VerdictReject:
	default:
		return nil, &mdformat.ParseError{Reason: fmt.Sprintf("invalid verdict %q", verdict)}
	}

	createdAt, err := time.Parse(timeLayout, get("created_at"))
	if err != nil {
		return nil, &mdformat.ParseError{Reason: "invalid created_at: " + err.Error()}
	}

	r := &Review{
		ID:        get("id"),
		TaskID:    get("task_id"),
		CreatedAt: createdAt,
		Reviewer:  get("reviewer"),
		Author:    get("author"),
		Verdict:   verdict,
		Summary:   mdformat.ExtractSection(body, "## Summary", "## Findings"),
	}
	if r.Summary == "" {
		r.Summary = mdformat.ExtractSection(body, "## Summary", "## Revision Requests")
	}
	if r.Summary == "" {
		r.Summary = mdformat.ExtractSection(body, "## Summary", "")
	}

	r.Findings = parseFindings(mdformat.ExtractSection(body, "## Findings", "## Revision Requests"))
	r.RevisionRequests = parseRevisionRequests(mdformat.ExtractSection(body, "## Revision Requests", ""))

	return r, nil
}

func parseFindings(section string) []Finding {
	var out []Finding
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- **[") {
			continue
		}
		rest := strings.TrimPrefix(line, "- **[")
		closeIdx := strings.Index(rest, "]**")
		if closeIdx < 0 {
			continue
		}
		sev := Severity(rest[:closeIdx])
		remainder := strings.TrimSpace(rest[closeIdx+len("]**"):])
		section, desc, ok := strings.Cut(remainder, ":")
		if !ok {
			continue
		}
		out = append(out, Finding{Severity: sev, Section: strings.TrimSpace(section), Description: strings.TrimSpace(desc)})
	}
	return out
}

func parseRevisionRequests(section string) []RevisionRequest {
	var out []RevisionRequest
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- **[") {
			continue
		}
		rest := strings.TrimPrefix(line, "- **[")
		closeIdx := strings.Index(rest, "]**")
		if closeIdx < 0 {
			continue
		}
		pr := RevisionPriority(rest[:closeIdx])
		desc := strings.TrimSpace(rest[closeIdx+len("]**"):])
		out = append(out, RevisionRequest{Priority: pr, Description: desc})
	}
	return out
}
