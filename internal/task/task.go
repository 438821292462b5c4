// Package task defines the Task data model — the unit of agent work that
// flows through the pipeline engine and agent executor — and its lifecycle
// state machine.
package task

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Status is the lifecycle stage of a Task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusInReview   Status = "in_review"
	StatusRevision   Status = "revision"
	StatusApproved   Status = "approved"
	StatusFailed     Status = "failed"
	StatusBlocked    Status = "blocked"
	StatusCancelled  Status = "cancelled"
	StatusDeferred   Status = "deferred"
)

// Priority is the task scheduling priority.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// NextKind tags the variant carried by Next.
type NextKind string

const (
	NextDirectorReview  NextKind = "director_review"
	NextAgent           NextKind = "agent"
	NextPipelineContinue NextKind = "pipeline_continue"
	NextComplete        NextKind = "complete"
)

// Next is a tagged variant describing what happens after this task completes.
type Next struct {
	Kind       NextKind `json:"kind"`
	Skill      string   `json:"skill,omitempty"`       // set when Kind == NextAgent
	PipelineID string   `json:"pipeline_id,omitempty"` // set when Kind == NextPipelineContinue
}

// Input is one upstream input reference.
type Input struct {
	Path        string `json:"path"`
	Description string `json:"description"`
}

// Output describes where and in what format a task must write its artifact.
type Output struct {
	Path   string `json:"path"`
	Format string `json:"format"`
}

// Task is the unit of agent work.
type Task struct {
	ID            string            `json:"id"`
	From          string            `json:"from"`
	To            string            `json:"to"`
	Priority      Priority          `json:"priority"`
	Deadline      *time.Time        `json:"deadline,omitempty"`
	Status        Status            `json:"status"`
	RevisionCount int               `json:"revision_count"`
	GoalID        string            `json:"goal_id,omitempty"`
	PipelineID    string            `json:"pipeline_id,omitempty"`
	Goal          string            `json:"goal"`
	Inputs        []Input           `json:"inputs,omitempty"`
	Requirements  string            `json:"requirements,omitempty"`
	Output        Output            `json:"output"`
	Next          Next              `json:"next"`
	Tags          []string          `json:"tags,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// NewID builds a task identity of the form "{skill}-{YYYYMMDD}-{6 random hex}".
func NewID(skill string, now time.Time) (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("task: generate id suffix: %w", err)
	}
	return fmt.Sprintf("%s-%s-%s", skill, now.UTC().Format("20060102"), hex.EncodeToString(buf)), nil
}

// New creates a pending task with sensible defaults. id should come from NewID.
func New(id, from, to string, priority Priority, goal string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:        id,
		From:      from,
		To:        to,
		Priority:  priority,
		Status:    StatusPending,
		Goal:      goal,
		Next:      Next{Kind: NextComplete},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Executable reports whether the task is in a status C2 may execute.
func (t *Task) Executable() bool {
	switch t.Status {
	case StatusPending, StatusAssigned, StatusRevision:
		return true
	default:
		return false
	}
}

// touch bumps UpdatedAt. Callers that mutate a Task outside of
// workspace.UpdateTaskStatus (e.g. while constructing it) should call this.
func (t *Task) touch() {
	t.UpdatedAt = time.Now().UTC()
}
