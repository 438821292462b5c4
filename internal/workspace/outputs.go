package workspace

import "context"

// WriteOutput writes an agent's produced artifact at relPath, which callers
// build as outputs/{squad}/{skill}/{taskId}.md (spec.md §4.1, §4.3 step 10).
func (w *Workspace) WriteOutput(ctx context.Context, relPath, content string) error {
	return w.WriteFile(ctx, relPath, content)
}

// ReadOutput reads back a previously written output artifact.
func (w *Workspace) ReadOutput(relPath string) (string, error) {
	return w.ReadFile(relPath)
}
