package task

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/marketeros/runtime/internal/mdformat"
)

const timeLayout = time.RFC3339Nano

// MarshalMarkdown renders the task as frontmatter + human-readable body,
// per spec.md §6.1.
func (t *Task) MarshalMarkdown() (string, error) {
	var fm strings.Builder
	fm.WriteString("---\n")
	fmt.Fprintf(&fm, "id: %s\n", t.ID)
	fmt.Fprintf(&fm, "status: %s\n", t.Status)
	fmt.Fprintf(&fm, "priority: %s\n", t.Priority)
	fmt.Fprintf(&fm, "from: %s\n", t.From)
	fmt.Fprintf(&fm, "to: %s\n", t.To)
	fmt.Fprintf(&fm, "created_at: %s\n", t.CreatedAt.Format(timeLayout))
	fmt.Fprintf(&fm, "updated_at: %s\n", t.UpdatedAt.Format(timeLayout))
	fmt.Fprintf(&fm, "revision_count: %d\n", t.RevisionCount)
	fmt.Fprintf(&fm, "output_path: %s\n", t.Output.Path)
	fmt.Fprintf(&fm, "output_format: %s\n", t.Output.Format)
	fmt.Fprintf(&fm, "next_type: %s\n", t.Next.Kind)
	if t.Deadline != nil {
		fmt.Fprintf(&fm, "deadline: %s\n", t.Deadline.Format(timeLayout))
	}
	if t.GoalID != "" {
		fmt.Fprintf(&fm, "goal_id: %s\n", t.GoalID)
	}
	if t.PipelineID != "" {
		fmt.Fprintf(&fm, "pipeline_id: %s\n", t.PipelineID)
	}
	if t.Next.Kind == NextAgent {
		fmt.Fprintf(&fm, "next_skill: %s\n", t.Next.Skill)
	}
	if t.Next.Kind == NextPipelineContinue {
		fmt.Fprintf(&fm, "next_pipeline: %s\n", t.Next.PipelineID)
	}
	if len(t.Tags) > 0 {
		fmt.Fprintf(&fm, "tags: %s\n", strings.Join(t.Tags, ","))
	}
	if len(t.Metadata) > 0 {
		metaJSON, err := marshalSortedMap(t.Metadata)
		if err != nil {
			return "", fmt.Errorf("task: marshal metadata: %w", err)
		}
		fmt.Fprintf(&fm, "metadata: %s\n", metaJSON)
	}
	fm.WriteString("---\n\n")

	fmt.Fprintf(&fm, "# Task: %s\n\n", t.ID)
	fm.WriteString("## Assignment\n\n")
	fmt.Fprintf(&fm, "- **From:** %s\n", t.From)
	fmt.Fprintf(&fm, "- **To:** %s\n", t.To)
	fmt.Fprintf(&fm, "- **Priority:** %s\n\n", t.Priority)

	fm.WriteString("## Context\n\n")
	fmt.Fprintf(&fm, "- **Goal:** %s\n", t.Goal)
	if len(t.Inputs) == 0 {
		fm.WriteString("\n(no upstream inputs)\n\n")
	} else {
		fm.WriteString("\n")
		for _, in := range t.Inputs {
			fmt.Fprintf(&fm, "- `%s` — %s\n", in.Path, in.Description)
		}
		fm.WriteString("\n")
	}

	fm.WriteString("## Requirements\n\n")
	fm.WriteString(t.Requirements)
	fm.WriteString("\n\n")

	fm.WriteString("## Output\n\n")
	fmt.Fprintf(&fm, "Write to: `%s`\n", t.Output.Path)
	fmt.Fprintf(&fm, "Format: %s\n", t.Output.Format)
	fmt.Fprintf(&fm, "Then: %s\n", formatNext(t.Next))

	return fm.String(), nil
}

func formatNext(n Next) string {
	switch n.Kind {
	case NextDirectorReview:
		return "director_review"
	case NextAgent:
		return fmt.Sprintf("agent(%s)", n.Skill)
	case NextPipelineContinue:
		return fmt.Sprintf("pipeline_continue(%s)", n.PipelineID)
	case NextComplete:
		return "complete"
	default:
		return string(n.Kind)
	}
}

func marshalSortedMap(m map[string]string) (string, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make(map[string]string, len(m))
	for _, k := range keys {
		ordered[k] = m[k]
	}
	b, err := json.Marshal(ordered)
	return string(b), err
}

// UnmarshalMarkdown parses a task file produced by MarshalMarkdown. It
// validates every enum-typed and required field per spec.md §4.1.
func UnmarshalMarkdown(data []byte) (*Task, error) {
	fmParsed, _, err := mdformat.ParseFrontmatter(data)
	if err != nil {
		return nil, err
	}

	get := func(k string) string { return fmParsed[k] }
	required := []string{"id", "status", "priority", "from", "to", "created_at", "updated_at",
		"revision_count", "output_path", "output_format", "next_type"}
	for _, k := range required {
		if _, ok := fmParsed[k]; !ok {
			return nil, &mdformat.ParseError{Reason: fmt.Sprintf("missing required field %q", k)}
		}
	}

	status := Status(get("status"))
	if !isValidStatus(status) {
		return nil, &mdformat.ParseError{Reason: fmt.Sprintf("invalid status %q", status)}
	}
	priority := Priority(get("priority"))
	if !isValidPriority(priority) {
		return nil, &mdformat.ParseError{Reason: fmt.Sprintf("invalid priority %q", priority)}
	}

	createdAt, err := time.Parse(timeLayout, get("created_at"))
	if err != nil {
		return nil, &mdformat.ParseError{Reason: "invalid created_at: " + err.Error()}
	}
	updatedAt, err := time.Parse(timeLayout, get("updated_at"))
	if err != nil {
		return nil, &mdformat.ParseError{Reason: "invalid updated_at: " + err.Error()}
	}
	revCount, err := strconv.Atoi(get("revision_count"))
	if err != nil || revCount < 0 {
		return nil, &mdformat.ParseError{Reason: "invalid revision_count"}
	}

	nextKind := NextKind(get("next_type"))
	next := Next{Kind: nextKind}
	switch nextKind {
	case NextDirectorReview, NextComplete:
	case NextAgent:
		next.Skill = get("next_skill")
		if next.Skill == "" {
			return nil, &mdformat.ParseError{Reason: "next_type=agent requires next_skill"}
		}
	case NextPipelineContinue:
		next.PipelineID = get("next_pipeline")
		if next.PipelineID == "" {
			return nil, &mdformat.ParseError{Reason: "next_type=pipeline_continue requires next_pipeline"}
		}
	default:
		return nil, &mdformat.ParseError{Reason: fmt.Sprintf("invalid next_type %q", nextKind)}
	}

	t := &Task{
		ID:            get("id"),
		Status:        status,
		Priority:      priority,
		From:          get("from"),
		To:            get("to"),
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
		RevisionCount: revCount,
		Output:        Output{Path: get("output_path"), Format: get("output_format")},
		Next:          next,
		GoalID:        get("goal_id"),
		PipelineID:    get("pipeline_id"),
	}

	if d := get("deadline"); d != "" {
		dl, err := time.Parse(timeLayout, d)
		if err != nil {
			return nil, &mdformat.ParseError{Reason: "invalid deadline: " + err.Error()}
		}
		t.Deadline = &dl
	}
	if tagStr := get("tags"); tagStr != "" {
		t.Tags = strings.Split(tagStr, ",")
	}
	if metaStr := get("metadata"); metaStr != "" {
		var meta map[string]string
		if err := json.Unmarshal([]byte(metaStr), &meta); err != nil {
			return nil, &mdformat.ParseError{Reason: "invalid metadata json: " + err.Error()}
		}
		t.Metadata = meta
	}

	body := string(data)
	t.Goal = mdformat.ExtractField(body, "- **Goal:**")
	t.Inputs = extractInputs(body)
	t.Requirements = mdformat.ExtractSection(body, "## Requirements", "## Output")

	return t, nil
}

func isValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusAssigned, StatusInProgress, StatusCompleted, StatusInReview,
		StatusRevision, StatusApproved, StatusFailed, StatusBlocked, StatusCancelled, StatusDeferred:
		return true
	default:
		return false
	}
}

func isValidPriority(p Priority) bool {
	switch p {
	case PriorityP0, PriorityP1, PriorityP2, PriorityP3:
		return true
	default:
		return false
	}
}

// extractInputs parses bulleted "- `path` — description" lines under ## Context.
func extractInputs(body string) []Input {
	ctx := mdformat.ExtractSection(body, "## Context", "## Requirements")
	var inputs []Input
	for _, line := range strings.Split(ctx, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- `") {
			continue
		}
		rest := strings.TrimPrefix(line, "- `")
		idx := strings.Index(rest, "`")
		if idx < 0 {
			continue
		}
		path := rest[:idx]
		desc := strings.TrimSpace(strings.TrimPrefix(rest[idx+1:], "—"))
		inputs = append(inputs, Input{Path: path, Description: desc})
	}
	return inputs
}

