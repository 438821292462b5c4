package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/marketeros/runtime/internal/ports"
	"github.com/marketeros/runtime/internal/task"
	"github.com/marketeros/runtime/internal/workspace"
)

func newTestWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ws
}

func newTestTask(t *testing.T, ws *workspace.Workspace, skill string) *task.Task {
	t.Helper()
	id, err := task.NewID(skill, ports.SystemClock{}.Now())
	if err != nil {
		t.Fatalf("NewID: %v", err)
	}
	tk := task.New(id, "director", skill, task.PriorityP1, "write a launch announcement")
	if err := ws.WriteTask(context.Background(), tk); err != nil {
		t.Fatalf("WriteTask: %v", err)
	}
	return tk
}

func testSkills() SkillLoader {
	return MapSkillLoader{
		"copywriter": {Name: "copywriter", Squad: "content", Prompt: "You are a copywriter."},
	}
}

func TestExecute_Success(t *testing.T) {
	ws := newTestWorkspace(t)
	tk := newTestTask(t, ws, "copywriter")

	client := ports.NewStaticMessageClient(ports.CompletionResponse{
		Content: "Announcing our launch!", InputTokens: 100, OutputTokens: 50, StopReason: ports.StopEndTurn,
	})

	ex := New(ws, client, testSkills())
	result := ex.Execute(context.Background(), tk, Options{})

	if result.Status != StatusCompleted {
		t.Fatalf("Status = %s, want completed (err=%v)", result.Status, result.Error)
	}
	if result.TokensUsed.Total != 150 {
		t.Errorf("TokensUsed.Total = %d, want 150", result.TokensUsed.Total)
	}
	if result.OutputPath == "" {
		t.Error("expected a non-empty OutputPath")
	}
	if exists, _ := ws.FileExists(result.OutputPath); !exists {
		t.Errorf("output file %s was not written", result.OutputPath)
	}

	reread, err := ws.ReadTask(tk.ID)
	if err != nil {
		t.Fatalf("ReadTask: %v", err)
	}
	if reread.Status != task.StatusCompleted {
		t.Errorf("task status = %s, want completed", reread.Status)
	}
}

func TestExecute_NotExecutable(t *testing.T) {
	ws := newTestWorkspace(t)
	tk := newTestTask(t, ws, "copywriter")
	tk.Status = task.StatusCompleted
	if err := ws.WriteTask(context.Background(), tk); err != nil {
		t.Fatalf("WriteTask: %v", err)
	}

	client := ports.NewStaticMessageClient(ports.CompletionResponse{Content: "x"})
	ex := New(ws, client, testSkills())
	result := ex.Execute(context.Background(), tk, Options{})

	if result.Status != StatusFailed || result.Error == nil || result.Error.Code != CodeTaskNotExecutable {
		t.Fatalf("got %+v, want TASK_NOT_EXECUTABLE failure", result)
	}
}

func TestExecute_SkillNotFound(t *testing.T) {
	ws := newTestWorkspace(t)
	tk := newTestTask(t, ws, "unknown-skill")

	client := ports.NewStaticMessageClient(ports.CompletionResponse{Content: "x"})
	ex := New(ws, client, testSkills())
	result := ex.Execute(context.Background(), tk, Options{})

	if result.Status != StatusFailed || result.Error.Code != CodeSkillNotFound {
		t.Fatalf("got %+v, want SKILL_NOT_FOUND failure", result)
	}

	reread, err := ws.ReadTask(tk.ID)
	if err != nil {
		t.Fatalf("ReadTask: %v", err)
	}
	if reread.Status != task.StatusFailed {
		t.Errorf("task status = %s, want failed (best-effort mark-failed)", reread.Status)
	}
}

func TestExecute_EmptyResponse(t *testing.T) {
	ws := newTestWorkspace(t)
	tk := newTestTask(t, ws, "copywriter")

	client := ports.NewStaticMessageClient(ports.CompletionResponse{Content: "   "})
	ex := New(ws, client, testSkills())
	result := ex.Execute(context.Background(), tk, Options{})

	if result.Status != StatusFailed || result.Error.Code != CodeResponseEmpty {
		t.Fatalf("got %+v, want RESPONSE_EMPTY failure", result)
	}
}

func TestExecute_TruncatedResponseIsWarningNotFailure(t *testing.T) {
	ws := newTestWorkspace(t)
	tk := newTestTask(t, ws, "copywriter")

	client := ports.NewStaticMessageClient(ports.CompletionResponse{
		Content: "partial output", StopReason: ports.StopMaxTokens,
	})
	ex := New(ws, client, testSkills())
	result := ex.Execute(context.Background(), tk, Options{})

	if result.Status != StatusCompleted {
		t.Fatalf("Status = %s, want completed", result.Status)
	}
	if result.Warning == nil || result.Warning.Code != CodeResponseTruncated {
		t.Fatalf("Warning = %v, want RESPONSE_TRUNCATED", result.Warning)
	}
}

// flakyClient fails with a retryable code the first N calls, then succeeds.
type flakyClient struct {
	failuresLeft int
	code         Code
	calls        int
}

func (f *flakyClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	f.calls++
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return nil, newError(f.code, "simulated overload")
	}
	return &ports.CompletionResponse{Content: "ok", InputTokens: 10, OutputTokens: 5, StopReason: ports.StopEndTurn}, nil
}

func TestExecute_RetriesRetryableErrors(t *testing.T) {
	ws := newTestWorkspace(t)
	tk := newTestTask(t, ws, "copywriter")

	client := &flakyClient{failuresLeft: 2, code: CodeAPIOverloaded}
	ex := New(ws, client, testSkills())
	ex.DefaultRetryDelayMs = 1 // keep the test fast

	result := ex.Execute(context.Background(), tk, Options{})
	if result.Status != StatusCompleted {
		t.Fatalf("Status = %s, want completed (err=%v)", result.Status, result.Error)
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
	if client.calls != 3 {
		t.Errorf("calls = %d, want 3", client.calls)
	}
}

func TestExecute_NonRetryableErrorFailsImmediately(t *testing.T) {
	ws := newTestWorkspace(t)
	tk := newTestTask(t, ws, "copywriter")

	client := &flakyClient{failuresLeft: 1, code: CodeResponseEmpty} // not in the retryable set
	ex := New(ws, client, testSkills())
	ex.DefaultRetryDelayMs = 1

	result := ex.Execute(context.Background(), tk, Options{})
	if result.Status != StatusFailed || result.Attempts != 1 {
		t.Fatalf("got %+v, want a single-attempt failure", result)
	}
}

func TestExecute_ExhaustsRetriesAndFails(t *testing.T) {
	ws := newTestWorkspace(t)
	tk := newTestTask(t, ws, "copywriter")

	client := &flakyClient{failuresLeft: 99, code: CodeAPITimeout}
	ex := New(ws, client, testSkills())
	ex.DefaultMaxRetries = 2
	ex.DefaultRetryDelayMs = 1

	result := ex.Execute(context.Background(), tk, Options{})
	if result.Status != StatusFailed || result.Error.Code != CodeAPITimeout {
		t.Fatalf("got %+v, want exhausted-retries API_TIMEOUT failure", result)
	}
	if result.Attempts != 3 { // initial + 2 retries
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
}

func TestExecute_InputNotFound(t *testing.T) {
	ws := newTestWorkspace(t)
	tk := newTestTask(t, ws, "copywriter")
	tk.Inputs = []task.Input{{Path: "outputs/missing.md", Description: "brief"}}
	if err := ws.WriteTask(context.Background(), tk); err != nil {
		t.Fatalf("WriteTask: %v", err)
	}

	client := ports.NewStaticMessageClient(ports.CompletionResponse{Content: "x"})
	ex := New(ws, client, testSkills())
	result := ex.Execute(context.Background(), tk, Options{})

	if result.Status != StatusFailed || result.Error.Code != CodeInputNotFound {
		t.Fatalf("got %+v, want INPUT_NOT_FOUND failure", result)
	}
}

func TestExecute_ReadsUpstreamInputsAndProductContext(t *testing.T) {
	ws := newTestWorkspace(t)
	tk := newTestTask(t, ws, "copywriter")
	tk.Inputs = []task.Input{{Path: "outputs/research/brief.md", Description: "research brief"}}
	if err := ws.WriteTask(context.Background(), tk); err != nil {
		t.Fatalf("WriteTask: %v", err)
	}
	if err := ws.WriteFile(context.Background(), "outputs/research/brief.md", "audience: developers"); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(ws.Root(), "context"), 0o755); err != nil {
		t.Fatalf("mkdir context: %v", err)
	}
	if err := os.WriteFile(filepath.Join(ws.Root(), "context", "product.md"), []byte("product: Widget"), 0o644); err != nil {
		t.Fatalf("seed product context: %v", err)
	}

	client := ports.NewStaticMessageClient(ports.CompletionResponse{Content: "ok"})
	ex := New(ws, client, testSkills())
	result := ex.Execute(context.Background(), tk, Options{ProductContextPath: "context/product.md"})

	if result.Status != StatusCompleted {
		t.Fatalf("Status = %s, want completed (err=%v)", result.Status, result.Error)
	}
	req := client.Requests[0]
	if !contains(req.UserMessage, "audience: developers") || !contains(req.UserMessage, "product: Widget") {
		t.Errorf("UserMessage missing expected sections: %q", req.UserMessage)
	}
}

func TestExecute_BudgetModelOverride(t *testing.T) {
	ws := newTestWorkspace(t)
	tk := newTestTask(t, ws, "copywriter")

	client := ports.NewStaticMessageClient(ports.CompletionResponse{Content: "ok"})
	ex := New(ws, client, testSkills())
	ex.Budget = ports.NewFakeBudgetProvider(ports.BudgetState{ModelOverride: "claude-haiku"})

	result := ex.Execute(context.Background(), tk, Options{})
	if result.Status != StatusCompleted {
		t.Fatalf("Status = %s, want completed", result.Status)
	}
	if client.Requests[0].Model != "claude-haiku" {
		t.Errorf("Model = %q, want claude-haiku (from budget override)", client.Requests[0].Model)
	}
}

func TestExecute_CostSinkInvoked(t *testing.T) {
	ws := newTestWorkspace(t)
	tk := newTestTask(t, ws, "copywriter")

	client := ports.NewStaticMessageClient(ports.CompletionResponse{
		Content: "ok", InputTokens: 1000, OutputTokens: 1000,
	})
	ex := New(ws, client, testSkills())

	var recordedTaskID string
	var recordedCost float64
	ex.CostSink = func(taskID string, usd float64) {
		recordedTaskID = taskID
		recordedCost = usd
	}

	result := ex.Execute(context.Background(), tk, Options{})
	if result.Status != StatusCompleted {
		t.Fatalf("Status = %s, want completed", result.Status)
	}
	if recordedTaskID != tk.ID {
		t.Errorf("CostSink taskID = %q, want %q", recordedTaskID, tk.ID)
	}
	if recordedCost <= 0 {
		t.Errorf("CostSink cost = %f, want > 0", recordedCost)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (needle == "" ||
		indexOf(haystack, needle) >= 0)
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
