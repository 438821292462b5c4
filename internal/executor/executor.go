package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/marketeros/runtime/internal/observability"
	"github.com/marketeros/runtime/internal/ports"
	"github.com/marketeros/runtime/internal/task"
	"github.com/marketeros/runtime/internal/workspace"
)

// Options configures one Execute call, layered over the Executor's
// defaults.
type Options struct {
	Model              string // overrides the skill/tier default when set
	ProductContextPath string // optional, spec.md §4.3 step 4
	MaxRetries         int
	RetryDelayMs       int64
	TimeoutMs          int64
}

// Executor is the Agent Executor (C2, spec.md §4.3).
type Executor struct {
	Workspace *workspace.Workspace
	Client    ports.MessageClient
	Skills    SkillLoader
	Budget    ports.BudgetProvider
	Clock     ports.Clock
	Cost      CostEstimator
	Logger    *observability.Logger
	Metrics   *observability.MetricsCollector
	CostSink  func(taskID string, usd float64)

	DefaultModel        string
	DefaultMaxRetries   int
	DefaultRetryDelayMs int64
	DefaultTimeoutMs    int64
}

// New builds an Executor with sensible defaults (3 retries, 2s base
// backoff, 120s per-call timeout).
func New(ws *workspace.Workspace, client ports.MessageClient, skills SkillLoader) *Executor {
	return &Executor{
		Workspace:           ws,
		Client:              client,
		Skills:              skills,
		Clock:               ports.SystemClock{},
		Cost:                StaticRates{DefaultRate: ModelRate{InputPer1K: 0.003, OutputPer1K: 0.015}},
		Logger:              observability.NewLogger(nil),
		Metrics:             observability.NewMetricsCollector(0),
		DefaultModel:        "claude-sonnet",
		DefaultMaxRetries:   3,
		DefaultRetryDelayMs: 2000,
		DefaultTimeoutMs:    120_000,
	}
}

// Execute runs one task end-to-end (spec.md §4.3's 11-step algorithm).
// It never returns a Go error: every failure mode becomes
// ExecutionResult.Status == failed with a populated Error.
func (e *Executor) Execute(ctx context.Context, t *task.Task, opts Options) *ExecutionResult {
	start := e.clock().Now()
	result := &ExecutionResult{TaskID: t.ID, Skill: t.To}

	// Step 1: gate. Only pending/assigned/revision tasks may execute.
	if !t.Executable() {
		return e.fail(result, start, newError(CodeTaskNotExecutable, fmt.Sprintf("status=%s", t.Status)))
	}

	// Step 2: move to in_progress before any work begins, so a crash never
	// leaves a task silently stuck at pending.
	if _, err := e.Workspace.UpdateTaskStatus(ctx, t.ID, task.StatusInProgress); err != nil {
		return e.fail(result, start, newError(CodeWorkspaceWriteFailed, err.Error()))
	}

	log := e.log().Child(map[string]any{"task_id": t.ID, "skill": t.To})

	// Step 3: load the skill definition.
	skill, err := e.Skills.Load(t.To)
	if err != nil {
		return e.failAndMarkTask(ctx, t, result, start, asExecError(err, CodeSkillNotFound))
	}

	// Step 4: optional product context.
	var productContext string
	if opts.ProductContextPath != "" {
		pc, err := e.Workspace.ReadFile(opts.ProductContextPath)
		if err != nil {
			return e.failAndMarkTask(ctx, t, result, start, newError(CodeInputNotFound, err.Error()))
		}
		productContext = pc
	}

	// Step 5: upstream inputs named on the task.
	inputs := make([]string, 0, len(t.Inputs))
	for _, in := range t.Inputs {
		body, err := e.Workspace.ReadFile(in.Path)
		if err != nil {
			return e.failAndMarkTask(ctx, t, result, start, newError(CodeInputNotFound, fmt.Sprintf("%s: %v", in.Path, err)))
		}
		inputs = append(inputs, formatInput(in.Description, body))
	}

	// Step 6: build the system and user prompts in a fixed section order.
	systemPrompt := skill.Prompt
	userMessage := buildUserMessage(t, productContext, inputs)

	// Step 7: resolve the model and build a composite cancellation context.
	model := e.resolveModel(opts.Model)
	timeout := e.durationOr(opts.TimeoutMs, e.DefaultTimeoutMs)
	maxRetries := intOr(opts.MaxRetries, e.DefaultMaxRetries)
	retryDelay := e.durationOr(opts.RetryDelayMs, e.DefaultRetryDelayMs)

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Step 8: invoke with retry, exponential backoff on retryable codes.
	resp, attempts, execErr := e.invokeWithRetry(callCtx, ports.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserMessage:  userMessage,
		Model:        model,
		MaxTokens:    4096,
	}, maxRetries, retryDelay, log)
	result.Attempts = attempts
	if execErr != nil {
		return e.failAndMarkTask(ctx, t, result, start, execErr)
	}

	// Step 9: validate the response.
	var warning *Error
	if strings.TrimSpace(resp.Content) == "" {
		return e.failAndMarkTask(ctx, t, result, start, newError(CodeResponseEmpty, "empty completion"))
	}
	if resp.StopReason == ports.StopMaxTokens {
		warning = newError(CodeResponseTruncated, "response hit max_tokens")
	}

	usage := TokenUsage{Input: resp.InputTokens, Output: resp.OutputTokens, Total: resp.InputTokens + resp.OutputTokens}
	if e.Cost != nil {
		cost := e.Cost.Estimate(model, usage)
		if e.CostSink != nil {
			e.CostSink(t.ID, cost)
		}
		e.metrics().Record(observability.MetricCost, cost, observability.Labels{"task_id": t.ID, "skill": t.To})
	}
	e.metrics().Record(observability.MetricTokens, float64(usage.Total), observability.Labels{"skill": t.To})

	// Step 10: persist the output artifact.
	outputPath := t.Output.Path
	if outputPath == "" {
		outputPath = fmt.Sprintf("outputs/%s/%s/%s.md", skill.Squad, t.To, t.ID)
	}
	if err := e.Workspace.WriteOutput(ctx, outputPath, resp.Content); err != nil {
		return e.failAndMarkTask(ctx, t, result, start, newError(CodeWorkspaceWriteFailed, err.Error()))
	}

	// Step 11: mark completed.
	if _, err := e.Workspace.UpdateTaskStatus(ctx, t.ID, task.StatusCompleted); err != nil {
		return e.failAndMarkTask(ctx, t, result, start, newError(CodeWorkspaceWriteFailed, err.Error()))
	}

	result.Status = StatusCompleted
	result.OutputPath = outputPath
	result.TokensUsed = usage
	result.Warning = warning
	result.DurationMs = e.clock().Now().Sub(start).Milliseconds()
	e.metrics().Increment("executor.completed")
	log.Info("task completed", "duration_ms", result.DurationMs, "attempts", attempts)
	return result
}

// invokeWithRetry calls the MessageClient, retrying retryable codes with
// exponential backoff (retryDelayMs * 2^attempt), honoring cancellation
// during the sleep itself (spec.md §4.3 step 8).
func (e *Executor) invokeWithRetry(ctx context.Context, req ports.CompletionRequest, maxRetries int, baseDelay time.Duration, log *observability.Logger) (*ports.CompletionResponse, int, *Error) {
	var lastErr *Error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := e.Client.Complete(ctx, req)
		if err == nil {
			return resp, attempt + 1, nil
		}

		execErr := asExecError(err, CodeAPIError)
		lastErr = execErr
		if ctx.Err() != nil {
			return nil, attempt + 1, newError(CodeAborted, ctx.Err().Error())
		}
		if !retryable[execErr.Code] || attempt == maxRetries {
			return nil, attempt + 1, execErr
		}

		delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt)))
		log.Warn("retrying completion", "attempt", attempt+1, "code", execErr.Code, "delay_ms", delay.Milliseconds())
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, attempt + 1, newError(CodeAborted, ctx.Err().Error())
		}
	}
	return nil, maxRetries + 1, lastErr
}

// failAndMarkTask records the failure and best-effort moves the task to
// failed — a task that errors after leaving pending must never be left
// stuck at in_progress (spec.md §4.3, §7).
func (e *Executor) failAndMarkTask(ctx context.Context, t *task.Task, result *ExecutionResult, start time.Time, execErr *Error) *ExecutionResult {
	if _, err := e.Workspace.UpdateTaskStatus(ctx, t.ID, task.StatusFailed); err != nil {
		e.log().Warn("failed to mark task failed", "task_id", t.ID, "err", err)
	}
	return e.fail(result, start, execErr)
}

func (e *Executor) fail(result *ExecutionResult, start time.Time, execErr *Error) *ExecutionResult {
	result.Status = StatusFailed
	result.Error = execErr
	result.DurationMs = e.clock().Now().Sub(start).Milliseconds()
	e.metrics().Increment("executor.failed")
	e.log().Error("task failed", "task_id", result.TaskID, "code", execErr.Code, "message", execErr.Message)
	return result
}

func (e *Executor) resolveModel(override string) string {
	if override != "" {
		return override
	}
	if e.Budget != nil {
		if m := e.Budget.BudgetState().ModelOverride; m != "" {
			return m
		}
	}
	if e.DefaultModel != "" {
		return e.DefaultModel
	}
	return "claude-sonnet"
}

func (e *Executor) clock() ports.Clock {
	if e.Clock != nil {
		return e.Clock
	}
	return ports.SystemClock{}
}

func (e *Executor) log() *observability.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return observability.NewLogger(nil)
}

func (e *Executor) metrics() *observability.MetricsCollector {
	if e.Metrics != nil {
		return e.Metrics
	}
	return observability.NewMetricsCollector(0)
}

func (e *Executor) durationOr(ms, defaultMs int64) time.Duration {
	if ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return time.Duration(defaultMs) * time.Millisecond
}

func intOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func formatInput(description, body string) string {
	if description == "" {
		return body
	}
	return fmt.Sprintf("%s:\n\n%s", description, body)
}

func buildUserMessage(t *task.Task, productContext string, inputs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Goal\n\n%s\n", t.Goal)
	if t.Requirements != "" {
		fmt.Fprintf(&b, "\n## Requirements\n\n%s\n", t.Requirements)
	}
	if productContext != "" {
		fmt.Fprintf(&b, "\n## Product Context\n\n%s\n", productContext)
	}
	for i, in := range inputs {
		fmt.Fprintf(&b, "\n## Input %d\n\n%s\n", i+1, in)
	}
	return b.String()
}

// codedError is implemented by client errors that already carry one of our
// taxonomy codes (e.g. a MessageClient wrapping a provider's 429 as
// API_RATE_LIMITED).
type codedError interface {
	Code() Code
}

func asExecError(err error, fallback Code) *Error {
	var ce codedError
	if errors.As(err, &ce) {
		return newError(ce.Code(), err.Error())
	}
	var execErr *Error
	if errors.As(err, &execErr) {
		return execErr
	}
	return newError(fallback, err.Error())
}
