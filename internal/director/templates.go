// Package director is the in-process Director (spec.md §4.8 glossary:
// "external component that turns goals into task graphs and reviews
// completed work"). It owns a fixed registry of pipeline templates and
// drives them through the Pipeline Engine (C1), so the CLI and the
// Scheduler/Event Bus have a concrete ports.Director to call.
package director

import "github.com/marketeros/runtime/internal/pipelineeng"

// Templates is the registry of named pipelines StartPipeline can start, keyed by template name exactly as it appears on the CLI
// (--pipeline) and in EventMapping.PipelineTemplate.
func Templates() map[string]*pipelineeng.PipelineDefinition {
	return map[string]*pipelineeng.PipelineDefinition{
		"Content Marketing Cycle": {
			ID:   "content-marketing-cycle",
			Name: "Content Marketing Cycle",
			Steps: []pipelineeng.Step{
				{Kind: pipelineeng.StepSequential, Skill: "content-strategy"},
				{Kind: pipelineeng.StepSequential, Skill: "copywriting"},
				{Kind: pipelineeng.StepReview, Reviewer: "director"},
				{Kind: pipelineeng.StepSequential, Skill: "copy-editing"},
			},
		},
		"Campaign Launch": {
			ID:   "campaign-launch",
			Name: "Campaign Launch",
			Steps: []pipelineeng.Step{
				{Kind: pipelineeng.StepSequential, Skill: "content-strategy"},
				{Kind: pipelineeng.StepParallel, Skills: []string{"copywriting", "email-sequence", "social-content", "paid-ads"}},
				{Kind: pipelineeng.StepReview, Reviewer: "director"},
				{Kind: pipelineeng.StepSequential, Skill: "copy-editing"},
			},
		},
		"SEO Cycle": {
			ID:   "seo-cycle",
			Name: "SEO Cycle",
			Steps: []pipelineeng.Step{
				{Kind: pipelineeng.StepSequential, Skill: "content-strategy"},
				{Kind: pipelineeng.StepSequential, Skill: "page-cro"},
				{Kind: pipelineeng.StepReview, Reviewer: "director"},
				{Kind: pipelineeng.StepSequential, Skill: "copy-editing"},
			},
		},
	}
}

// defaultTemplateForCategory picks a pipeline template for a freeform goal
// when the caller didn't name one explicitly (CLI single-goal mode).
func defaultTemplateForCategory(category string) string {
	switch category {
	case "seo":
		return "SEO Cycle"
	case "campaign":
		return "Campaign Launch"
	default:
		return "Content Marketing Cycle"
	}
}
