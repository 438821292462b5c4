package workspace

import (
	"context"
	"fmt"
	"strings"

	"github.com/marketeros/runtime/internal/goal"
)

func goalPath(id string) string     { return fmt.Sprintf("goals/%s.md", id) }
func goalPlanPath(id string) string { return fmt.Sprintf("goals/%s-plan.md", id) }

// WriteGoal persists g at goals/{goalId}.md.
func (w *Workspace) WriteGoal(ctx context.Context, g *goal.Goal) error {
	body, err := g.MarshalMarkdown()
	if err != nil {
		return newErr(CodeWriteFailed, "write_goal", goalPath(g.ID), err)
	}
	return w.WriteFile(ctx, goalPath(g.ID), body)
}

// ReadGoal loads the goal with the given id.
func (w *Workspace) ReadGoal(id string) (*goal.Goal, error) {
	body, err := w.ReadFile(goalPath(id))
	if err != nil {
		return nil, err
	}
	g, err := goal.UnmarshalMarkdown([]byte(body))
	if err != nil {
		return nil, newErr(CodeParseError, "read_goal", goalPath(id), err)
	}
	return g, nil
}

// WriteGoalPlan persists p at goals/{goalId}-plan.md.
func (w *Workspace) WriteGoalPlan(ctx context.Context, p *goal.Plan) error {
	body, err := p.MarshalMarkdown()
	if err != nil {
		return newErr(CodeWriteFailed, "write_goal_plan", goalPlanPath(p.GoalID), err)
	}
	return w.WriteFile(ctx, goalPlanPath(p.GoalID), body)
}

// ReadGoalPlan loads the plan for the given goal id.
func (w *Workspace) ReadGoalPlan(goalID string) (*goal.Plan, error) {
	path := goalPlanPath(goalID)
	body, err := w.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := goal.UnmarshalPlanMarkdown([]byte(body))
	if err != nil {
		return nil, newErr(CodeParseError, "read_goal_plan", path, err)
	}
	return p, nil
}

// ListGoals returns every goal id under goals/ (plan files are excluded).
func (w *Workspace) ListGoals() ([]string, error) {
	names, err := w.ListFiles("goals", ".md")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, name := range names {
		if strings.HasSuffix(name, "-plan.md") {
			continue
		}
		out = append(out, strings.TrimSuffix(name, ".md"))
	}
	return out, nil
}
