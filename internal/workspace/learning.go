package workspace

import (
	"context"
	"os"

	"github.com/marketeros/runtime/internal/learning"
)

const learningsPath = "memory/learnings.md"

// AppendLearning performs an atomic read-modify-write of memory/learnings.md
// under its advisory lock (spec.md §4.1). The file need not exist yet; the
// first call creates it with the "# Learnings" header.
func (w *Workspace) AppendLearning(ctx context.Context, entry learning.Entry) error {
	abs, err := w.resolve(learningsPath)
	if err != nil {
		return err
	}
	release, err := w.acquireLock(ctx, abs)
	if err != nil {
		return err
	}
	defer release()

	existing, err := readFileRaw(abs)
	if err != nil && !os.IsNotExist(err) {
		return newErr(CodeReadFailed, "append_learning", learningsPath, err)
	}
	updated := learning.Append(string(existing), entry)
	return w.writeFileLocked(abs, learningsPath, updated)
}

// ReadLearnings returns every parsed learning entry recorded so far.
func (w *Workspace) ReadLearnings() ([]learning.Entry, error) {
	body, err := w.ReadFile(learningsPath)
	if err != nil {
		if wsErr, ok := err.(*Error); ok && wsErr.Code == CodeNotFound {
			return nil, nil
		}
		return nil, err
	}
	return learning.Parse(body), nil
}
