package ports

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/marketeros/runtime/internal/goal"
	"github.com/marketeros/runtime/internal/task"
)

// StaticMessageClient is a MessageClient that returns the same canned
// response (or a per-call sequence of responses) to every completion
// request. Used by the pipeline/executor test suites in place of a real
// LLM backend (spec.md §8 end-to-end scenarios).
type StaticMessageClient struct {
	mu        sync.Mutex
	Responses []CompletionResponse // consumed in order; last entry repeats once exhausted
	Err       error                // if set, every call fails with this error
	Delay     func()               // optional, invoked before returning (used to simulate latency)
	calls     int
	Requests  []CompletionRequest // every request seen, in call order
}

// NewStaticMessageClient returns a client that always answers with resp.
func NewStaticMessageClient(resp CompletionResponse) *StaticMessageClient {
	return &StaticMessageClient{Responses: []CompletionResponse{resp}}
}

func (c *StaticMessageClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if c.Delay != nil {
		c.Delay()
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, req)
	if c.Err != nil {
		return nil, c.Err
	}
	idx := c.calls
	if idx >= len(c.Responses) {
		idx = len(c.Responses) - 1
	}
	c.calls++
	resp := c.Responses[idx]
	return &resp, nil
}

// CallCount returns the number of completion requests seen so far.
func (c *StaticMessageClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// FakeDirector is an in-memory Director used by scheduler/event-bus tests.
// StartPipeline seeds one task per call and records it for assertions.
type FakeDirector struct {
	mu         sync.Mutex
	StartErr   error
	Started    []StartedPipeline
	nextTaskID int
}

func NewFakeDirector() *FakeDirector { return &FakeDirector{} }

func (d *FakeDirector) StartPipeline(ctx context.Context, templateName, description string, priority task.Priority) (*StartedPipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.StartErr != nil {
		return nil, d.StartErr
	}
	d.nextTaskID++
	sp := StartedPipeline{
		DefinitionID: templateName,
		RunID:        uuid.NewString(),
		TaskIDs:      []string{fmt.Sprintf("%s-task-%d", templateName, d.nextTaskID)},
	}
	d.Started = append(d.Started, sp)
	return &sp, nil
}

func (d *FakeDirector) CreateGoal(ctx context.Context, description, category string, priority task.Priority) (*goal.Goal, error) {
	return &goal.Goal{ID: uuid.NewString(), Description: description, Category: category, Priority: goal.Priority(priority), Status: goal.StatusPending}, nil
}

func (d *FakeDirector) DecomposeGoal(ctx context.Context, g *goal.Goal) (*goal.Plan, error) {
	return &goal.Plan{GoalID: g.ID}, nil
}

func (d *FakeDirector) PlanGoalTasks(ctx context.Context, plan *goal.Plan, g *goal.Goal) ([]*task.Task, error) {
	return nil, nil
}

// FakeQueueManager records every batch it is asked to enqueue.
type FakeQueueManager struct {
	mu        sync.Mutex
	EnqueueErr error
	Batches   [][]*task.Task
}

func NewFakeQueueManager() *FakeQueueManager { return &FakeQueueManager{} }

func (q *FakeQueueManager) EnqueueBatch(ctx context.Context, tasks []*task.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.EnqueueErr != nil {
		return q.EnqueueErr
	}
	q.Batches = append(q.Batches, tasks)
	return nil
}

// FakeBudgetProvider returns a fixed BudgetState, settable between calls.
type FakeBudgetProvider struct {
	mu    sync.Mutex
	State BudgetState
}

func NewFakeBudgetProvider(state BudgetState) *FakeBudgetProvider {
	return &FakeBudgetProvider{State: state}
}

func (b *FakeBudgetProvider) BudgetState() BudgetState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.State
}

// Set updates the state returned by subsequent BudgetState calls.
func (b *FakeBudgetProvider) Set(state BudgetState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.State = state
}
