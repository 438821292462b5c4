// Package humanreview implements the HumanReviewItem/Feedback entity
// (spec.md §3, §6.1): an escalation to a human reviewer, persisted under
// reviews/human/{humanReviewId}.md.
package humanreview

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/marketeros/runtime/internal/mdformat"
)

const timeLayout = time.RFC3339Nano

// Urgency is the escalation priority.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyNormal   Urgency = "normal"
)

// Status is the resolution state of the escalation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusInReview  Status = "in_review"
	StatusResolved  Status = "resolved"
	StatusExpired   Status = "expired"
)

// Feedback is the human's decision once a HumanReviewItem is resolved.
type Feedback struct {
	Decision             string
	Reviewer             string
	Notes                string
	RevisionInstructions string
}

// Item is one human-review escalation.
type Item struct {
	ID               string
	TaskID           string
	Skill            string
	CreatedAt        time.Time
	Urgency          Urgency
	Status           Status
	EscalationReason string
	GoalID           string
	PipelineID       string
	ResolvedAt       *time.Time
	Metadata         map[string]string
	EscalationDetails string
	EscalationContext json.RawMessage
	Feedback         *Feedback
}

// MarshalMarkdown renders the escalation as frontmatter + body, per spec.md §6.1.
func (it *Item) MarshalMarkdown() (string, error) {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "id: %s\n", it.ID)
	fmt.Fprintf(&b, "task_id: %s\n", it.TaskID)
	fmt.Fprintf(&b, "skill: %s\n", it.Skill)
	fmt.Fprintf(&b, "created_at: %s\n", it.CreatedAt.Format(timeLayout))
	fmt.Fprintf(&b, "urgency: %s\n", it.Urgency)
	fmt.Fprintf(&b, "status: %s\n", it.Status)
	fmt.Fprintf(&b, "escalation_reason: %s\n", it.EscalationReason)
	if it.GoalID != "" {
		fmt.Fprintf(&b, "goal_id: %s\n", it.GoalID)
	}
	if it.PipelineID != "" {
		fmt.Fprintf(&b, "pipeline_id: %s\n", it.PipelineID)
	}
	if it.Feedback != nil {
		fmt.Fprintf(&b, "feedback_decision: %s\n", it.Feedback.Decision)
		fmt.Fprintf(&b, "feedback_reviewer: %s\n", it.Feedback.Reviewer)
	}
	if it.ResolvedAt != nil {
		fmt.Fprintf(&b, "resolved_at: %s\n", it.ResolvedAt.Format(timeLayout))
	}
	if len(it.Metadata) > 0 {
		metaJSON, err := json.Marshal(it.Metadata)
		if err != nil {
			return "", fmt.Errorf("humanreview: marshal metadata: %w", err)
		}
		fmt.Fprintf(&b, "metadata: %s\n", metaJSON)
	}
	b.WriteString("---\n\n")

	b.WriteString("## Escalation Details\n\n")
	b.WriteString(it.EscalationDetails)
	b.WriteString("\n\n")

	if len(it.EscalationContext) > 0 {
		b.WriteString("## Escalation Context\n\n```json\n")
		b.Write(it.EscalationContext)
		b.WriteString("\n```\n\n")
	}

	if it.Feedback != nil {
		b.WriteString("## Human Feedback\n\n")
		b.WriteString("### Notes\n\n")
		b.WriteString(it.Feedback.Notes)
		b.WriteString("\n\n")
		if it.Feedback.RevisionInstructions != "" {
			b.WriteString("### Revision Instructions\n\n")
			b.WriteString(it.Feedback.RevisionInstructions)
			b.WriteString("\n\n")
		}
	}

	return b.String(), nil
}

// UnmarshalMarkdown parses a human-review file produced by MarshalMarkdown.
func UnmarshalMarkdown(data []byte) (*Item, error) {
	fm, body, err := mdformat.ParseFrontmatter(data)
	if err != nil {
		return nil, err
	}

	get := func(k string) string { return fm[k] }
	required := []string{"id", "task_id", "skill", "created_at", "urgency", "status", "escalation_reason"}
	for _, k := range required {
		if _, ok := fm[k]; !ok {
			return nil, &mdformat.ParseError{Reason: fmt.Sprintf("missing required field %q", k)}
		}
	}

	urgency := Urgency(get("urgency"))
	switch urgency {
	case UrgencyCritical, UrgencyHigh, UrgencyNormal:
	default:
		return nil, &mdformat.ParseError{Reason: fmt.Sprintf("invalid urgency %q", urgency)}
	}

	status := Status(get("status"))
	switch status {
	case StatusPending, StatusInReview, StatusResolved, StatusExpired:
	default:
		return nil, &mdformat.ParseError{Reason: fmt.Sprintf("invalid status %q", status)}
	}

	createdAt, err := time.Parse(timeLayout, get("created_at"))
	if err != nil {
		return nil, &mdformat.ParseError{Reason: "invalid created_at: " + err.Error()}
	}

	it := &Item{
		ID:                get("id"),
		TaskID:            get("task_id"),
		Skill:             get("skill"),
		CreatedAt:         createdAt,
		Urgency:           urgency,
		Status:            status,
		EscalationReason:  get("escalation_reason"),
		GoalID:            get("goal_id"),
		PipelineID:        get("pipeline_id"),
		EscalationDetails: mdformat.ExtractSection(body, "## Escalation Details", "## Escalation Context"),
	}
	if it.EscalationDetails == "" {
		it.EscalationDetails = mdformat.ExtractSection(body, "## Escalation Details", "## Human Feedback")
	}
	if it.EscalationDetails == "" {
		it.EscalationDetails = mdformat.ExtractSection(body, "## Escalation Details", "")
	}

	if ra := get("resolved_at"); ra != "" {
		t, err := time.Parse(timeLayout, ra)
		if err != nil {
			return nil, &mdformat.ParseError{Reason: "invalid resolved_at: " + err.Error()}
		}
		it.ResolvedAt = &t
	}
	if metaStr := get("metadata"); metaStr != "" {
		var meta map[string]string
		if err := json.Unmarshal([]byte(metaStr), &meta); err != nil {
			return nil, &mdformat.ParseError{Reason: "invalid metadata json: " + err.Error()}
		}
		it.Metadata = meta
	}

	if ctxStr := mdformat.ExtractSection(body, "```json", "```"); ctxStr != "" {
		it.EscalationContext = json.RawMessage(ctxStr)
	}

	decision := get("feedback_decision")
	if decision != "" {
		it.Feedback = &Feedback{
			Decision:             decision,
			Reviewer:             get("feedback_reviewer"),
			Notes:                mdformat.ExtractSection(body, "### Notes", "### Revision Instructions"),
			RevisionInstructions: mdformat.ExtractSection(body, "### Revision Instructions", ""),
		}
		if it.Feedback.Notes == "" {
			it.Feedback.Notes = mdformat.ExtractSection(body, "### Notes", "")
		}
	}

	return it, nil
}
