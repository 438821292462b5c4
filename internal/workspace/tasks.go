package workspace

import (
	"context"
	"fmt"
	"strings"

	"github.com/marketeros/runtime/internal/task"
)

func taskPath(id string) string { return fmt.Sprintf("tasks/%s.md", id) }

// WriteTask persists t at tasks/{id}.md.
func (w *Workspace) WriteTask(ctx context.Context, t *task.Task) error {
	body, err := t.MarshalMarkdown()
	if err != nil {
		return newErr(CodeWriteFailed, "write_task", taskPath(t.ID), err)
	}
	return w.WriteFile(ctx, taskPath(t.ID), body)
}

// ReadTask loads and parses the task with the given id.
func (w *Workspace) ReadTask(id string) (*task.Task, error) {
	body, err := w.ReadFile(taskPath(id))
	if err != nil {
		return nil, err
	}
	t, err := task.UnmarshalMarkdown([]byte(body))
	if err != nil {
		return nil, newErr(CodeParseError, "read_task", taskPath(id), err)
	}
	return t, nil
}

// TaskFilter narrows ListTasks; zero values are wildcards.
type TaskFilter struct {
	Status   task.Status
	GoalID   string
	PipelineID string
}

func (f TaskFilter) matches(t *task.Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.GoalID != "" && t.GoalID != f.GoalID {
		return false
	}
	if f.PipelineID != "" && t.PipelineID != f.PipelineID {
		return false
	}
	return true
}

// ListTasks returns every task matching filter, sorted by id.
func (w *Workspace) ListTasks(filter TaskFilter) ([]*task.Task, error) {
	names, err := w.ListFiles("tasks", ".md")
	if err != nil {
		return nil, err
	}
	var out []*task.Task
	for _, name := range names {
		id := strings.TrimSuffix(name, ".md")
		t, err := w.ReadTask(id)
		if err != nil {
			return nil, err
		}
		if filter.matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// UpdateTaskStatus reads, validates the transition against the task state
// machine, mutates, and writes — all within a single lock acquisition
// (spec.md §4.1, preventing TOCTOU; §8 invariant 8). On an invalid
// transition it fails with CodeValidationError.
func (w *Workspace) UpdateTaskStatus(ctx context.Context, id string, to task.Status) (*task.Task, error) {
	abs, err := w.resolve(taskPath(id))
	if err != nil {
		return nil, err
	}
	release, err := w.acquireLock(ctx, abs)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := w.readTaskLocked(abs, id)
	if err != nil {
		return nil, err
	}
	if !task.ValidTransition(current.Status, to) {
		return nil, newErr(CodeValidationError, "update_task_status", taskPath(id),
			&task.TransitionError{From: current.Status, To: to})
	}
	if err := current.Advance(to); err != nil {
		return nil, newErr(CodeValidationError, "update_task_status", taskPath(id), err)
	}

	body, err := current.MarshalMarkdown()
	if err != nil {
		return nil, newErr(CodeWriteFailed, "update_task_status", taskPath(id), err)
	}
	if err := w.writeFileLocked(abs, taskPath(id), body); err != nil {
		return nil, err
	}
	return current, nil
}

func (w *Workspace) readTaskLocked(abs, id string) (*task.Task, error) {
	data, err := readFileRaw(abs)
	if err != nil {
		return nil, newErr(CodeNotFound, "read_task", taskPath(id), err)
	}
	t, err := task.UnmarshalMarkdown(data)
	if err != nil {
		return nil, newErr(CodeParseError, "read_task", taskPath(id), err)
	}
	return t, nil
}
