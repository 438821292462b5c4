package director

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marketeros/runtime/internal/goal"
	"github.com/marketeros/runtime/internal/observability"
	"github.com/marketeros/runtime/internal/pipelineeng"
	"github.com/marketeros/runtime/internal/ports"
	"github.com/marketeros/runtime/internal/task"
	"github.com/marketeros/runtime/internal/workspace"
)

// Director implements ports.Director by driving pipelineeng.Engine against
// a fixed template registry. It keeps every run it starts in memory so a
// caller (the CLI, the Scheduler) can inspect outcomes after the fact.
type Director struct {
	Workspace *workspace.Workspace
	Engine    *pipelineeng.Engine
	Clock     ports.Clock
	Logger    *observability.Logger
	Templates map[string]*pipelineeng.PipelineDefinition

	mu   sync.Mutex
	runs map[string]*pipelineeng.PipelineRun
}

// New builds a Director backed by ws and exec's pipeline engine, using the
// default template registry.
func New(ws *workspace.Workspace, engine *pipelineeng.Engine) *Director {
	return &Director{
		Workspace: ws,
		Engine:    engine,
		Clock:     ports.SystemClock{},
		Logger:    observability.NewLogger(nil),
		Templates: Templates(),
		runs:      make(map[string]*pipelineeng.PipelineRun),
	}
}

// StartPipeline implements ports.Director. It synchronously drives the
// named template to completion (or a review pause) and returns every task
// it created, regardless of outcome.
func (d *Director) StartPipeline(ctx context.Context, templateName, description string, priority task.Priority) (*ports.StartedPipeline, error) {
	def, ok := d.Templates[templateName]
	if !ok {
		return nil, fmt.Errorf("director: unknown pipeline template %q", templateName)
	}

	run := &pipelineeng.PipelineRun{
		ID:        uuid.NewString(),
		DefinitionID: def.ID,
		Status:    pipelineeng.RunPending,
		CreatedAt: d.now(),
	}

	cfg := pipelineeng.Config{
		GoalDescription: description,
		Priority:        priority,
	}

	result := d.Engine.Execute(ctx, def, run, cfg)

	d.mu.Lock()
	d.runs[run.ID] = run
	d.mu.Unlock()

	if result.Status == pipelineeng.RunFailed {
		d.log().Warn("pipeline failed", "template", templateName, "run_id", run.ID, "error", result.Error)
	}

	return &ports.StartedPipeline{
		DefinitionID: def.ID,
		RunID:        run.ID,
		TaskIDs:      run.TaskIDs,
	}, nil
}

// CreateGoal implements ports.Director: persists a new pending goal.
func (d *Director) CreateGoal(ctx context.Context, description, category string, priority task.Priority) (*goal.Goal, error) {
	now := d.now()
	g := &goal.Goal{
		ID:          uuid.NewString(),
		Description: description,
		Category:    category,
		Priority:    goal.Priority(priority),
		Status:      goal.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := d.Workspace.WriteGoal(ctx, g); err != nil {
		return nil, fmt.Errorf("director: write goal: %w", err)
	}
	return g, nil
}

// DecomposeGoal implements ports.Director: maps the goal's category onto its
// template and builds a plan with one phase per sequential or parallel step
// (review steps add no phase), and persists it.
func (d *Director) DecomposeGoal(ctx context.Context, g *goal.Goal) (*goal.Plan, error) {
	templateName := defaultTemplateForCategory(g.Category)
	def, ok := d.Templates[templateName]
	if !ok {
		return nil, fmt.Errorf("director: no template for category %q", g.Category)
	}

	var phases []goal.Phase
	for _, step := range def.Steps {
		switch step.Kind {
		case pipelineeng.StepSequential:
			phases = append(phases, goal.Phase{Skills: []string{step.Skill}})
		case pipelineeng.StepParallel:
			phases = append(phases, goal.Phase{Skills: step.Skills, Parallel: true})
		case pipelineeng.StepReview:
			// Review steps are a pipeline-engine concern, not a task-graph phase.
		}
	}

	plan := &goal.Plan{GoalID: g.ID, Phases: phases, CreatedAt: d.now()}
	if err := d.Workspace.WriteGoalPlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("director: write plan: %w", err)
	}
	return plan, nil
}

// PlanGoalTasks implements ports.Director: runs the template matching g's
// category end-to-end via the Pipeline Engine and returns every task it
// created (the engine has already written them to the workspace).
func (d *Director) PlanGoalTasks(ctx context.Context, plan *goal.Plan, g *goal.Goal) ([]*task.Task, error) {
	templateName := defaultTemplateForCategory(g.Category)
	started, err := d.StartPipeline(ctx, templateName, g.Description, task.Priority(g.Priority))
	if err != nil {
		return nil, err
	}

	tasks := make([]*task.Task, 0, len(started.TaskIDs))
	for _, id := range started.TaskIDs {
		t, err := d.Workspace.ReadTask(id)
		if err != nil {
			d.log().Warn("read planned task failed", "task_id", id, "err", err)
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Run returns the in-memory PipelineRun for runID, if this Director started it.
func (d *Director) Run(runID string) (*pipelineeng.PipelineRun, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	run, ok := d.runs[runID]
	return run, ok
}

func (d *Director) now() time.Time {
	if d.Clock != nil {
		return d.Clock.Now()
	}
	return time.Now().UTC()
}

func (d *Director) log() *observability.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return observability.NewLogger(nil)
}
