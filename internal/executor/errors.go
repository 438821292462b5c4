// Package executor implements the Agent Executor (C2, spec.md §4.3): runs
// one task end-to-end against a MessageClient, never throwing — every
// failure becomes a field on the returned ExecutionResult.
package executor

import "fmt"

// Code is the closed error taxonomy for task execution (spec.md §7).
type Code string

const (
	CodeSkillNotFound        Code = "SKILL_NOT_FOUND"
	CodeInputNotFound        Code = "INPUT_NOT_FOUND"
	CodeAPIError             Code = "API_ERROR"
	CodeAPIRateLimited       Code = "API_RATE_LIMITED"
	CodeAPIOverloaded        Code = "API_OVERLOADED"
	CodeAPITimeout           Code = "API_TIMEOUT"
	CodeResponseEmpty        Code = "RESPONSE_EMPTY"
	CodeResponseTruncated    Code = "RESPONSE_TRUNCATED" // warning, not a failure
	CodeWorkspaceWriteFailed Code = "WORKSPACE_WRITE_FAILED"
	CodeTaskNotExecutable    Code = "TASK_NOT_EXECUTABLE"
	CodeAborted              Code = "ABORTED"
	CodeUnknown              Code = "UNKNOWN"
)

// retryable is the set of codes the invoke-with-retry loop will retry
// (spec.md §4.3 step 8, §7).
var retryable = map[Code]bool{
	CodeAPIError:       true,
	CodeAPIRateLimited: true,
	CodeAPIOverloaded:  true,
	CodeAPITimeout:     true,
}

// Error is the typed error carried on ExecutionResult.Error.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("executor: %s: %s", e.Code, e.Message) }

func newError(code Code, msg string) *Error { return &Error{Code: code, Message: msg} }
