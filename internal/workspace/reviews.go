package workspace

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/marketeros/runtime/internal/review"
)

func reviewPath(taskID string, revision int) string {
	if revision <= 0 {
		return fmt.Sprintf("reviews/%s-review.md", taskID)
	}
	return fmt.Sprintf("reviews/%s-review-%d.md", taskID, revision)
}

// WriteReview persists r at reviews/{taskId}-review[-{n}].md. revision is 0
// for the first review of a task, N for subsequent re-reviews.
func (w *Workspace) WriteReview(ctx context.Context, r *review.Review, revision int) error {
	body, err := r.MarshalMarkdown()
	if err != nil {
		return newErr(CodeWriteFailed, "write_review", reviewPath(r.TaskID, revision), err)
	}
	return w.WriteFile(ctx, reviewPath(r.TaskID, revision), body)
}

// ReadReview loads the review at the given taskId/revision.
func (w *Workspace) ReadReview(taskID string, revision int) (*review.Review, error) {
	path := reviewPath(taskID, revision)
	body, err := w.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := review.UnmarshalMarkdown([]byte(body))
	if err != nil {
		return nil, newErr(CodeParseError, "read_review", path, err)
	}
	return r, nil
}

// ListReviews returns every review filename for taskID, sorted (base review
// first, then numbered revisions in ascending order).
func (w *Workspace) ListReviews(taskID string) ([]string, error) {
	names, err := w.ListFiles("reviews", ".md")
	if err != nil {
		return nil, err
	}
	var out []string
	prefix := taskID + "-review"
	for _, name := range names {
		base := strings.TrimSuffix(name, ".md")
		if base == prefix || strings.HasPrefix(base, prefix+"-") {
			out = append(out, name)
		}
	}
	// Suffixes are "" for the base review and "-N" for revisions; ordering by
	// length and then text keeps the numbers ascending (-2 before -10).
	suffix := func(name string) string { return strings.TrimPrefix(strings.TrimSuffix(name, ".md"), prefix) }
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := suffix(out[i]), suffix(out[j])
		if len(si) != len(sj) {
			return len(si) < len(sj)
		}
		return si < sj
	})
	return out, nil
}
