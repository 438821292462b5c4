package pipelineeng

import (
	"time"

	"github.com/marketeros/runtime/internal/executor"
	"github.com/marketeros/runtime/internal/task"
)

// StepKind tags a PipelineDefinition step's dispatch mode.
type StepKind string

const (
	StepSequential StepKind = "sequential"
	StepParallel   StepKind = "parallel"
	StepReview     StepKind = "review"
)

// Step is a tagged variant: exactly one of Skill/Skills/Reviewer is set,
// selected by Kind.
type Step struct {
	Kind     StepKind
	Skill    string   // StepSequential
	Skills   []string // StepParallel
	Reviewer string   // StepReview
}

// PipelineDefinition is an ordered, named graph of steps.
type PipelineDefinition struct {
	ID    string
	Name  string
	Steps []Step
}

// RunStatus is the lifecycle stage of a PipelineRun.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunPaused    RunStatus = "paused"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// PipelineRun is one execution of a PipelineDefinition.
type PipelineRun struct {
	ID               string
	DefinitionID     string
	Status           RunStatus
	CurrentStepIndex int
	TaskIDs          []string
	CompletedAt      *time.Time
	CreatedAt        time.Time
}

// StepResult records the outcome of one dispatched step.
type StepResult struct {
	Index       int
	Kind        StepKind
	Status      string
	OutputPaths []string
	Tokens      executor.TokenUsage
	Error       *Error
}

// PipelineResult is the sole output of Execute — it never returns a Go
// error (spec.md §4.4: "Never throws; returns a PipelineResult").
type PipelineResult struct {
	Status      RunStatus
	RunID       string
	StepResults []StepResult
	TokensUsed  executor.TokenUsage
	Error       *Error
}

// Config configures one Execute call (spec.md §4.4).
type Config struct {
	GoalDescription   string
	Priority          task.Priority
	InitialInputPaths []string
	MaxConcurrency    int
	OnStepComplete    func(StepResult)
	OnStatusChange    func(RunStatus)
}

func (c Config) maxConcurrency() int {
	if c.MaxConcurrency > 0 {
		return c.MaxConcurrency
	}
	return 3
}
