// Package goal implements the Goal and GoalPlan entities (spec.md §3): a
// user objective and its phase breakdown, persisted under goals/{goalId}.md
// and goals/{goalId}-plan.md.
package goal

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/marketeros/runtime/internal/mdformat"
)

const timeLayout = time.RFC3339Nano

// Status tracks where a goal is in its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Priority mirrors task.Priority; kept independent so this package has no
// dependency on internal/task.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// Goal is a user objective a pipeline run or task graph is working toward.
type Goal struct {
	ID          string
	Description string
	Category    string
	Priority    Priority
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MarshalMarkdown renders the goal as frontmatter + body.
func (g *Goal) MarshalMarkdown() (string, error) {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "id: %s\n", g.ID)
	fmt.Fprintf(&b, "category: %s\n", g.Category)
	fmt.Fprintf(&b, "priority: %s\n", g.Priority)
	fmt.Fprintf(&b, "status: %s\n", g.Status)
	fmt.Fprintf(&b, "created_at: %s\n", g.CreatedAt.Format(timeLayout))
	fmt.Fprintf(&b, "updated_at: %s\n", g.UpdatedAt.Format(timeLayout))
	b.WriteString("---\n\n")

	fmt.Fprintf(&b, "# Goal: %s\n\n", g.ID)
	b.WriteString("## Description\n\n")
	b.WriteString(g.Description)
	b.WriteString("\n\n")

	return b.String(), nil
}

// UnmarshalMarkdown parses a goal file produced by MarshalMarkdown.
func UnmarshalMarkdown(data []byte) (*Goal, error) {
	fm, body, err := mdformat.ParseFrontmatter(data)
	if err != nil {
		return nil, err
	}
	get := func(k string) string { return fm[k] }
	required := []string{"id", "category", "priority", "status", "created_at", "updated_at"}
	for _, k := range required {
		if _, ok := fm[k]; !ok {
			return nil, &mdformat.ParseError{Reason: fmt.Sprintf("missing required field %q", k)}
		}
	}

	status := Status(get("status"))
	switch status {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled:
	default:
		return nil, &mdformat.ParseError{Reason: fmt.Sprintf("invalid status %q", status)}
	}

	createdAt, err := time.Parse(timeLayout, get("created_at"))
	if err != nil {
		return nil, &mdformat.ParseError{Reason: "invalid created_at: " + err.Error()}
	}
	updatedAt, err := time.Parse(timeLayout, get("updated_at"))
	if err != nil {
		return nil, &mdformat.ParseError{Reason: "invalid updated_at: " + err.Error()}
	}

	return &Goal{
		ID:          get("id"),
		Category:    get("category"),
		Priority:    Priority(get("priority")),
		Status:      status,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
		Description: mdformat.ExtractSection(body, "## Description", ""),
	}, nil
}

// Phase is one step of a GoalPlan's breakdown.
type Phase struct {
	Skills     []string `json:"skills"`
	Parallel   bool     `json:"parallel"`
	DependsOn  *int     `json:"depends_on,omitempty"` // index of the phase this depends on
}

// Plan is the phase breakdown produced for a Goal.
type Plan struct {
	GoalID    string
	Phases    []Phase
	CreatedAt time.Time
}

// MarshalMarkdown renders the plan as frontmatter + a fenced JSON body (the
// phase list is positional/structured enough that a markdown bullet
// rendering would lose fidelity on round-trip, so the body carries JSON
// directly, same approach as HumanReviewItem's "## Escalation Context").
func (p *Plan) MarshalMarkdown() (string, error) {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "goal_id: %s\n", p.GoalID)
	fmt.Fprintf(&b, "created_at: %s\n", p.CreatedAt.Format(timeLayout))
	fmt.Fprintf(&b, "phase_count: %d\n", len(p.Phases))
	b.WriteString("---\n\n")

	fmt.Fprintf(&b, "# Plan for %s\n\n", p.GoalID)
	b.WriteString("## Phases\n\n```json\n")
	phasesJSON, err := json.Marshal(p.Phases)
	if err != nil {
		return "", fmt.Errorf("goal: marshal phases: %w", err)
	}
	b.Write(phasesJSON)
	b.WriteString("\n```\n")

	return b.String(), nil
}

// UnmarshalPlanMarkdown parses a plan file produced by Plan.MarshalMarkdown.
func UnmarshalPlanMarkdown(data []byte) (*Plan, error) {
	fm, body, err := mdformat.ParseFrontmatter(data)
	if err != nil {
		return nil, err
	}
	get := func(k string) string { return fm[k] }
	required := []string{"goal_id", "created_at", "phase_count"}
	for _, k := range required {
		if _, ok := fm[k]; !ok {
			return nil, &mdformat.ParseError{Reason: fmt.Sprintf("missing required field %q", k)}
		}
	}
	createdAt, err := time.Parse(timeLayout, get("created_at"))
	if err != nil {
		return nil, &mdformat.ParseError{Reason: "invalid created_at: " + err.Error()}
	}
	if _, err := strconv.Atoi(get("phase_count")); err != nil {
		return nil, &mdformat.ParseError{Reason: "invalid phase_count"}
	}

	phasesJSON := mdformat.ExtractSection(body, "```json", "```")
	var phases []Phase
	if phasesJSON != "" {
		if err := json.Unmarshal([]byte(phasesJSON), &phases); err != nil {
			return nil, &mdformat.ParseError{Reason: "invalid phases json: " + err.Error()}
		}
	}

	return &Plan{
		GoalID:    get("goal_id"),
		CreatedAt: createdAt,
		Phases:    phases,
	}, nil
}
