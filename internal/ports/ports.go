// Package ports declares the external interfaces the runtime consumes
// (spec.md §4.8): a message client for LLM completions, a Director that
// turns goals into task graphs, a queue manager, a budget provider, and a
// clock. Grounded on the teacher's internal/brain.LLMProvider
// interface-plus-fakes pattern.
package ports

import (
	"context"
	"time"

	"github.com/marketeros/runtime/internal/goal"
	"github.com/marketeros/runtime/internal/task"
)

// StopReason is the terminal condition of a completion call.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"
)

// CompletionRequest is one call to a MessageClient.
type CompletionRequest struct {
	SystemPrompt string
	UserMessage  string
	Model        string
	MaxTokens    int
}

// CompletionResponse is the result of a successful CompletionRequest.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	StopReason   StopReason
}

// MessageClient is the abstract LLM backend consumed by the agent executor
// (spec.md §4.3). Implementations raise errors carrying one of the
// executor's retryable/non-retryable codes.
type MessageClient interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// StartedPipeline is what Director.StartPipeline returns: the definition
// and run it created, plus every task it seeded.
type StartedPipeline struct {
	DefinitionID string
	RunID        string
	TaskIDs      []string
}

// Director turns goals and pipeline templates into task graphs, and is
// consumed by the Scheduler (§4.6) and the Event Bus (§4.7).
type Director interface {
	StartPipeline(ctx context.Context, templateName, description string, priority task.Priority) (*StartedPipeline, error)
	CreateGoal(ctx context.Context, description, category string, priority task.Priority) (*goal.Goal, error)
	DecomposeGoal(ctx context.Context, g *goal.Goal) (*goal.Plan, error)
	PlanGoalTasks(ctx context.Context, plan *goal.Plan, g *goal.Goal) ([]*task.Task, error)
}

// QueueManager dispatches tasks to workers; only enqueueBatch is consumed
// here (spec.md §4.7).
type QueueManager interface {
	EnqueueBatch(ctx context.Context, tasks []*task.Task) error
}

// BudgetLevel is a coarse cost-pressure indicator gating which priorities
// may run.
type BudgetLevel string

const (
	BudgetNormal    BudgetLevel = "normal"
	BudgetWarning   BudgetLevel = "warning"
	BudgetThrottle  BudgetLevel = "throttle"
	BudgetCritical  BudgetLevel = "critical"
	BudgetExhausted BudgetLevel = "exhausted"
)

// BudgetState is a point-in-time snapshot of spend.
type BudgetState struct {
	TotalBudget      float64
	Spent            float64
	PercentUsed      float64
	Level            BudgetLevel
	AllowedPriorities []task.Priority
	ModelOverride    string
}

// BudgetProvider reports the current spend posture, consumed by the
// Scheduler's budget gate (spec.md §4.6).
type BudgetProvider interface {
	BudgetState() BudgetState
}

// Clock abstracts wall-clock time for testability (spec.md §4.8).
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock is a test Clock that always returns the same instant until
// advanced.
type FixedClock struct {
	t time.Time
}

// NewFixedClock returns a FixedClock pinned at t.
func NewFixedClock(t time.Time) *FixedClock { return &FixedClock{t: t} }

func (c *FixedClock) Now() time.Time { return c.t }

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// Set pins the clock at t.
func (c *FixedClock) Set(t time.Time) { c.t = t }
