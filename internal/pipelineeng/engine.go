package pipelineeng

import (
	"context"
	"fmt"
	"sync"

	"github.com/marketeros/runtime/internal/executor"
	"github.com/marketeros/runtime/internal/observability"
	"github.com/marketeros/runtime/internal/ports"
	"github.com/marketeros/runtime/internal/task"
	"github.com/marketeros/runtime/internal/workspace"
)

// Executor is the subset of the Agent Executor this engine dispatches to.
type Executor interface {
	Execute(ctx context.Context, t *task.Task, opts executor.Options) *executor.ExecutionResult
}

// Engine is the Pipeline Engine (C1, spec.md §4.4).
type Engine struct {
	Workspace *workspace.Workspace
	Executor  Executor
	Clock     ports.Clock
	Logger    *observability.Logger
}

// New builds an Engine with a system clock and the default logger
// (observability.NewLogger(nil), JSON to stderr).
func New(ws *workspace.Workspace, exec Executor) *Engine {
	return &Engine{
		Workspace: ws,
		Executor:  exec,
		Clock:     ports.SystemClock{},
		Logger:    observability.NewLogger(nil),
	}
}

// Execute drives run through definition.Steps starting at
// run.CurrentStepIndex (spec.md §4.4).
func (e *Engine) Execute(ctx context.Context, definition *PipelineDefinition, run *PipelineRun, cfg Config) *PipelineResult {
	if run.Status != RunPending && run.Status != RunPaused {
		return &PipelineResult{Status: run.Status, RunID: run.ID, Error: newError(CodeAlreadyRunning, fmt.Sprintf("run.status=%s", run.Status))}
	}
	if len(definition.Steps) == 0 {
		run.Status = RunFailed
		e.setCompletedAt(run)
		return &PipelineResult{Status: RunFailed, RunID: run.ID, Error: newError(CodeNoSteps, "definition has no steps")}
	}
	if ctx.Err() != nil {
		run.Status = RunCancelled
		e.setCompletedAt(run)
		return &PipelineResult{Status: RunCancelled, RunID: run.ID, Error: newError(CodeAborted, ctx.Err().Error())}
	}

	run.Status = RunRunning
	e.fireStatusChange(cfg, RunRunning)

	startIndex := run.CurrentStepIndex
	if startIndex < len(definition.Steps) && definition.Steps[startIndex].Kind == StepReview {
		startIndex++
	}

	result := &PipelineResult{RunID: run.ID}
	currentInputPaths := cfg.InitialInputPaths

	for i := startIndex; i < len(definition.Steps); i++ {
		if ctx.Err() != nil {
			run.Status = RunCancelled
			e.setCompletedAt(run)
			result.Status = RunCancelled
			result.Error = newError(CodeAborted, ctx.Err().Error())
			e.fireStatusChange(cfg, RunCancelled)
			return result
		}

		step := definition.Steps[i]
		isFinal := i == len(definition.Steps)-1

		var stepResult StepResult
		switch step.Kind {
		case StepSequential:
			stepResult = e.runSequential(ctx, run, cfg, i, step, currentInputPaths, isFinal)
		case StepParallel:
			stepResult = e.runParallel(ctx, run, cfg, i, step, currentInputPaths, isFinal)
		case StepReview:
			stepResult = StepResult{Index: i, Kind: StepReview, Status: "paused", OutputPaths: currentInputPaths}
			run.Status = RunPaused
			run.CurrentStepIndex = i
			result.Status = RunPaused
			result.Error = newError(CodePausedForReview, "awaiting human review")
			result.StepResults = append(result.StepResults, stepResult)
			e.fireStepComplete(cfg, stepResult)
			e.fireStatusChange(cfg, RunPaused)
			return result
		default:
			stepResult = StepResult{Index: i, Kind: step.Kind, Status: "failed", Error: newError(CodeUnknown, fmt.Sprintf("unknown step kind %q", step.Kind))}
		}

		result.StepResults = append(result.StepResults, stepResult)
		result.TokensUsed.Input += stepResult.Tokens.Input
		result.TokensUsed.Output += stepResult.Tokens.Output
		result.TokensUsed.Total += stepResult.Tokens.Total
		e.fireStepComplete(cfg, stepResult)

		if stepResult.Status == "failed" {
			run.Status = RunFailed
			e.setCompletedAt(run)
			result.Status = RunFailed
			result.Error = stepResult.Error
			e.fireStatusChange(cfg, RunFailed)
			return result
		}

		currentInputPaths = stepResult.OutputPaths
		run.CurrentStepIndex = i
	}

	run.Status = RunCompleted
	e.setCompletedAt(run)
	result.Status = RunCompleted
	e.fireStatusChange(cfg, RunCompleted)
	return result
}

func (e *Engine) runSequential(ctx context.Context, run *PipelineRun, cfg Config, index int, step Step, inputPaths []string, isFinal bool) StepResult {
	t, err := e.buildTask(run, cfg, step.Skill, inputPaths, isFinal)
	if err != nil {
		return StepResult{Index: index, Kind: StepSequential, Status: "failed", Error: newError(CodeTaskCreationFailed, err.Error())}
	}
	if err := e.Workspace.WriteTask(ctx, t); err != nil {
		return StepResult{Index: index, Kind: StepSequential, Status: "failed", Error: newError(CodeWorkspaceError, err.Error())}
	}
	run.TaskIDs = append(run.TaskIDs, t.ID)

	res := e.Executor.Execute(ctx, t, executor.Options{})
	if res.Status != executor.StatusCompleted {
		return StepResult{Index: index, Kind: StepSequential, Status: "failed", Tokens: res.TokensUsed, Error: newError(CodeStepFailed, errMessage(res))}
	}
	return StepResult{Index: index, Kind: StepSequential, Status: "completed", OutputPaths: []string{res.OutputPath}, Tokens: res.TokensUsed}
}

func (e *Engine) runParallel(ctx context.Context, run *PipelineRun, cfg Config, index int, step Step, inputPaths []string, isFinal bool) StepResult {
	n := len(step.Skills)
	tasks := make([]*task.Task, n)
	for i, skill := range step.Skills {
		t, err := e.buildTask(run, cfg, skill, inputPaths, isFinal)
		if err != nil {
			return StepResult{Index: index, Kind: StepParallel, Status: "failed", Error: newError(CodeTaskCreationFailed, err.Error())}
		}
		if err := e.Workspace.WriteTask(ctx, t); err != nil {
			return StepResult{Index: index, Kind: StepParallel, Status: "failed", Error: newError(CodeWorkspaceError, err.Error())}
		}
		tasks[i] = t
	}
	// Every task id is recorded before any execution begins (spec.md §4.4.b).
	for _, t := range tasks {
		run.TaskIDs = append(run.TaskIDs, t.ID)
	}

	stepCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, cfg.maxConcurrency())
	results := make([]*executor.ExecutionResult, n)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstFailure *executor.ExecutionResult

	for i, t := range tasks {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, t *task.Task) {
			defer wg.Done()
			defer func() { <-sem }()

			if stepCtx.Err() != nil {
				return
			}
			res := e.Executor.Execute(stepCtx, t, executor.Options{})
			mu.Lock()
			results[i] = res
			if res.Status != executor.StatusCompleted && firstFailure == nil {
				firstFailure = res
				cancel()
			}
			mu.Unlock()
		}(i, t)
	}
	wg.Wait()

	var tokens executor.TokenUsage
	for _, r := range results {
		if r != nil {
			tokens.Input += r.TokensUsed.Input
			tokens.Output += r.TokensUsed.Output
			tokens.Total += r.TokensUsed.Total
		}
	}

	if firstFailure != nil {
		return StepResult{Index: index, Kind: StepParallel, Status: "failed", Tokens: tokens, Error: newError(CodeStepFailed, errMessage(firstFailure))}
	}

	outputs := make([]string, 0, n)
	for _, r := range results {
		if r != nil && r.Status == executor.StatusCompleted {
			outputs = append(outputs, r.OutputPath)
		}
	}
	return StepResult{Index: index, Kind: StepParallel, Status: "completed", OutputPaths: outputs, Tokens: tokens}
}

func (e *Engine) buildTask(run *PipelineRun, cfg Config, skill string, inputPaths []string, isFinal bool) (*task.Task, error) {
	id, err := task.NewID(skill, e.clock().Now())
	if err != nil {
		return nil, err
	}
	t := task.New(id, "pipeline-engine", skill, cfg.Priority, cfg.GoalDescription)
	t.PipelineID = run.ID
	t.Inputs = make([]task.Input, len(inputPaths))
	for i, p := range inputPaths {
		t.Inputs[i] = task.Input{Path: p, Description: "Output from previous pipeline step"}
	}
	if isFinal {
		t.Next = task.Next{Kind: task.NextDirectorReview}
	} else {
		t.Next = task.Next{Kind: task.NextPipelineContinue, PipelineID: run.ID}
	}
	return t, nil
}

func (e *Engine) setCompletedAt(run *PipelineRun) {
	now := e.clock().Now()
	run.CompletedAt = &now
}

func (e *Engine) fireStatusChange(cfg Config, status RunStatus) {
	if cfg.OnStatusChange == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.log().Warn("onStatusChange callback panicked", "recover", r)
		}
	}()
	cfg.OnStatusChange(status)
}

func (e *Engine) fireStepComplete(cfg Config, sr StepResult) {
	if cfg.OnStepComplete == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.log().Warn("onStepComplete callback panicked", "recover", r)
		}
	}()
	cfg.OnStepComplete(sr)
}

func (e *Engine) clock() ports.Clock {
	if e.Clock != nil {
		return e.Clock
	}
	return ports.SystemClock{}
}

func (e *Engine) log() *observability.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return observability.NewLogger(nil)
}

func errMessage(res *executor.ExecutionResult) string {
	if res.Error != nil {
		return string(res.Error.Code) + ": " + res.Error.Message
	}
	return "unknown executor failure"
}
