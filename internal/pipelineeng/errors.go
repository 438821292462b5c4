// Package pipelineeng implements the Pipeline Engine (C1, spec.md §4.4):
// drives a PipelineRun through its PipelineDefinition's steps, dispatching
// each to the Agent Executor (C2) and never throwing — every failure
// becomes a field on the returned PipelineResult.
package pipelineeng

import "fmt"

// Code is the closed error taxonomy for pipeline execution (spec.md §7).
type Code string

const (
	CodeStepFailed         Code = "STEP_FAILED"
	CodeNoSteps            Code = "NO_STEPS"
	CodeInvalidStepIndex   Code = "INVALID_STEP_INDEX"
	CodeTaskCreationFailed Code = "TASK_CREATION_FAILED"
	CodeWorkspaceError     Code = "WORKSPACE_ERROR"
	CodeAborted            Code = "ABORTED"
	CodeAlreadyRunning     Code = "ALREADY_RUNNING"
	CodePausedForReview    Code = "PAUSED_FOR_REVIEW"
	CodeUnknown            Code = "UNKNOWN"
)

// Error is the typed error carried on PipelineResult.Error.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("pipelineeng: %s: %s", e.Code, e.Message) }

func newError(code Code, msg string) *Error { return &Error{Code: code, Message: msg} }
