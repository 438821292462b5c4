package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/marketeros/runtime/internal/budget"
	"github.com/marketeros/runtime/internal/director"
	"github.com/marketeros/runtime/internal/eventbus"
	"github.com/marketeros/runtime/internal/executor"
	"github.com/marketeros/runtime/internal/llmclient"
	"github.com/marketeros/runtime/internal/observability"
	"github.com/marketeros/runtime/internal/pipelineeng"
	"github.com/marketeros/runtime/internal/ports"
	"github.com/marketeros/runtime/internal/schedule"
	"github.com/marketeros/runtime/internal/scheduler"
	"github.com/marketeros/runtime/internal/webhook"
	"github.com/marketeros/runtime/internal/workspace"
)

// Config is the daemon/CLI configuration, layered env-over-defaults the
// way the teacher's cmd/overhuman/main.go loadConfig does.
type Config struct {
	DataDir       string
	WebhookAddr   string
	WebhookToken  string
	AnthropicKey  string
	DailyBudget   float64
	MonthlyBudget float64
}

func loadConfig() Config {
	dataDir := os.Getenv("MARKETINGD_DATA")
	if dataDir == "" {
		dataDir = "./marketingd-data"
	}
	cfg := Config{
		DataDir:      dataDir,
		WebhookAddr:  "127.0.0.1:8090",
		WebhookToken: os.Getenv("MARKETINGD_WEBHOOK_TOKEN"),
		AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
	}
	if v := os.Getenv("MARKETINGD_WEBHOOK_ADDR"); v != "" {
		cfg.WebhookAddr = v
	}
	return cfg
}

// App is the composition root (spec.md §9: "no process-wide singleton").
// Every subsystem is a plain value, constructed here and shut down via
// Shutdown.
type App struct {
	Workspace *workspace.Workspace
	Budget    *budget.Tracker
	Executor  *executor.Executor
	Engine    *pipelineeng.Engine
	Director  *director.Director
	Scheduler *scheduler.Scheduler
	EventBus  *eventbus.Bus
	Webhook   *webhook.Server
	Logger    *observability.Logger
	Metrics   *observability.MetricsCollector
}

// bootstrap wires every subsystem into an App, grounded on
// cmd/overhuman/main.go's bootstrap(cfg) shape.
func bootstrap(cfg Config) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	logger := observability.NewLogger(nil)
	metrics := observability.NewMetricsCollector(10_000)

	ws, err := workspace.New(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	if err := seedSkills(ws); err != nil {
		return nil, fmt.Errorf("seed skills: %w", err)
	}

	budgetTracker := budget.New(cfg.DailyBudget, cfg.MonthlyBudget)

	var client ports.MessageClient
	if cfg.AnthropicKey != "" {
		client = llmclient.NewClaudeClient(cfg.AnthropicKey)
	} else {
		logger.Warn("no ANTHROPIC_API_KEY set; executor will fail every task")
		client = noAPIKeyClient{}
	}

	skills := executor.NewFileSkillLoader(func(relPath string) (string, error) {
		return ws.ReadFile(relPath)
	})

	exec := executor.New(ws, client, skills)
	exec.Budget = budgetTracker
	exec.Logger = logger
	exec.Metrics = metrics
	exec.CostSink = func(taskID string, usd float64) { budgetTracker.Record(taskID, usd) }

	engine := pipelineeng.New(ws, exec)
	engine.Logger = logger

	dir := director.New(ws, engine)
	dir.Logger = logger

	sched := scheduler.New(ws, dir, budgetTracker, scheduler.Config{CatchUpEnabled: true})
	sched.Logger = logger

	bus := eventbus.New(dir, nil)
	bus.Logger = logger
	for _, m := range defaultEventMappings() {
		bus.AddMapping(m)
	}

	hook := webhook.New(bus, cfg.WebhookToken)
	hook.Logger = logger
	hook.Metrics = metrics

	return &App{
		Workspace: ws,
		Budget:    budgetTracker,
		Executor:  exec,
		Engine:    engine,
		Director:  dir,
		Scheduler: sched,
		EventBus:  bus,
		Webhook:   hook,
		Logger:    logger,
		Metrics:   metrics,
	}, nil
}

// Shutdown stops every background activity the App started.
func (a *App) Shutdown(ctx context.Context) {
	a.Scheduler.Stop()
}

// defaultSkill is a seed skill definition written to skills/{name}.md on
// first boot so FileSkillLoader has something to load.
type defaultSkill struct {
	squad  string
	prompt string
}

func defaultSkills() map[string]defaultSkill {
	return map[string]defaultSkill{
		"content-strategy": {"strategy", "Plan the content strategy for the stated goal: audience, angle, and key messages."},
		"copywriting":      {"creative", "Write the on-brand copy the strategy calls for."},
		"copy-editing":     {"creative", "Edit the draft copy for clarity, tone, and correctness."},
		"email-sequence":   {"creative", "Write the email nurture sequence supporting the campaign."},
		"social-content":   {"creative", "Write the social posts supporting the campaign."},
		"paid-ads":         {"convert", "Write the paid ad copy and variants for the campaign."},
		"page-cro":         {"convert", "Propose landing-page conversion-rate optimizations."},
	}
}

// seedSkills writes the default skill definitions to the workspace's
// skills/ directory, skipping any that already exist so an operator's
// edits survive restarts.
func seedSkills(ws *workspace.Workspace) error {
	ctx := context.Background()
	for name, s := range defaultSkills() {
		path := fmt.Sprintf("skills/%s.md", name)
		exists, err := ws.FileExists(path)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		content := fmt.Sprintf("---\nsquad: %s\n---\n%s\n", s.squad, s.prompt)
		if err := ws.WriteFile(ctx, path, content); err != nil {
			return err
		}
	}
	return nil
}

func defaultEventMappings() []eventbus.EventMapping {
	return []eventbus.EventMapping{
		{EventType: "traffic_drop", PipelineTemplate: "SEO Cycle", CooldownMs: 60_000},
		{EventType: "deploy", PipelineTemplate: "Content Marketing Cycle", CooldownMs: 0},
	}
}

// loadSchedules reads a JSON array of schedule.Entry from path. A missing
// file means "no schedules configured" rather than an error.
func loadSchedules(path string) ([]schedule.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entries []schedule.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return entries, nil
}

// noAPIKeyClient fails every completion request with a non-retryable error,
// so an unconfigured daemon degrades loudly instead of hanging on retries.
type noAPIKeyClient struct{}

func (noAPIKeyClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	return nil, &executor.Error{Code: executor.CodeUnknown, Message: "marketingd: no LLM provider configured (set ANTHROPIC_API_KEY)"}
}
