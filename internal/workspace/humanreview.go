package workspace

import (
	"context"
	"fmt"

	"github.com/marketeros/runtime/internal/humanreview"
)

func humanReviewPath(id string) string { return fmt.Sprintf("reviews/human/%s.md", id) }

// WriteHumanReview persists it at reviews/human/{humanReviewId}.md.
func (w *Workspace) WriteHumanReview(ctx context.Context, it *humanreview.Item) error {
	body, err := it.MarshalMarkdown()
	if err != nil {
		return newErr(CodeWriteFailed, "write_human_review", humanReviewPath(it.ID), err)
	}
	return w.WriteFile(ctx, humanReviewPath(it.ID), body)
}

// ReadHumanReview loads the escalation with the given id.
func (w *Workspace) ReadHumanReview(id string) (*humanreview.Item, error) {
	path := humanReviewPath(id)
	body, err := w.ReadFile(path)
	if err != nil {
		return nil, err
	}
	it, err := humanreview.UnmarshalMarkdown([]byte(body))
	if err != nil {
		return nil, newErr(CodeParseError, "read_human_review", path, err)
	}
	return it, nil
}

// UpdateHumanReview reads, applies mutate, and writes back — all within a
// single lock acquisition (spec.md §4.1, §5: "updateHumanReview MUST be
// atomic read-validate-write").
func (w *Workspace) UpdateHumanReview(ctx context.Context, id string, mutate func(*humanreview.Item) error) (*humanreview.Item, error) {
	path := humanReviewPath(id)
	abs, err := w.resolve(path)
	if err != nil {
		return nil, err
	}
	release, err := w.acquireLock(ctx, abs)
	if err != nil {
		return nil, err
	}
	defer release()

	data, err := readFileRaw(abs)
	if err != nil {
		return nil, newErr(CodeNotFound, "update_human_review", path, err)
	}
	it, err := humanreview.UnmarshalMarkdown(data)
	if err != nil {
		return nil, newErr(CodeParseError, "update_human_review", path, err)
	}
	if err := mutate(it); err != nil {
		return nil, newErr(CodeValidationError, "update_human_review", path, err)
	}
	body, err := it.MarshalMarkdown()
	if err != nil {
		return nil, newErr(CodeWriteFailed, "update_human_review", path, err)
	}
	if err := w.writeFileLocked(abs, path, body); err != nil {
		return nil, err
	}
	return it, nil
}
