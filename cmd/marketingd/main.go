// Package main is the entry point for the marketing-workflow runtime
// daemon and CLI (spec.md §6.3).
//
// Usage:
//
//	marketingd <goal-string> [--priority P0|P1|P2|P3] [--dry-run]
//	marketingd --pipeline <template> [--priority ...]
//	marketingd --daemon
//	marketingd --help|-h
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/marketeros/runtime/internal/task"
)

const appName = "marketingd"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	parsed, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n\n", appName, err)
		printUsage()
		return 1
	}
	if parsed.help {
		printUsage()
		return 0
	}

	cfg := loadConfig()
	app, err := bootstrap(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: bootstrap: %v\n", appName, err)
		return 1
	}
	defer app.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		app.Logger.Info("shutdown signal received")
		cancel()
	}()

	switch {
	case parsed.daemon:
		return runDaemon(ctx, app, cfg)
	case parsed.pipelineTemplate != "":
		return runPipeline(ctx, app, parsed)
	case parsed.goal != "":
		return runGoal(ctx, app, parsed)
	default:
		printUsage()
		return 1
	}
}

func runPipeline(ctx context.Context, app *App, parsed cliArgs) int {
	if parsed.dryRun {
		fmt.Printf("[dry-run] would start pipeline %q at priority %s\n", parsed.pipelineTemplate, parsed.priority)
		return 0
	}
	started, err := app.Director.StartPipeline(ctx, parsed.pipelineTemplate, parsed.pipelineTemplate, parsed.priority)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: pipeline failed: %v\n", appName, err)
		return 1
	}
	fmt.Printf("run %s started, %d task(s) created\n", started.RunID, len(started.TaskIDs))
	return 0
}

func runGoal(ctx context.Context, app *App, parsed cliArgs) int {
	if parsed.dryRun {
		fmt.Printf("[dry-run] would create goal %q at priority %s\n", parsed.goal, parsed.priority)
		return 0
	}
	g, err := app.Director.CreateGoal(ctx, parsed.goal, "", parsed.priority)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: create goal failed: %v\n", appName, err)
		return 1
	}
	plan, err := app.Director.DecomposeGoal(ctx, g)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: decompose goal failed: %v\n", appName, err)
		return 1
	}
	tasks, err := app.Director.PlanGoalTasks(ctx, plan, g)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: plan tasks failed: %v\n", appName, err)
		return 1
	}
	fmt.Printf("goal %s planned, %d task(s) created\n", g.ID, len(tasks))
	return 0
}

func runDaemon(ctx context.Context, app *App, cfg Config) int {
	entries, err := loadSchedules(filepath.Join(cfg.DataDir, "config", "schedules.json"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: load schedules: %v\n", appName, err)
		return 1
	}
	if err := app.Scheduler.Start(ctx, entries); err != nil {
		fmt.Fprintf(os.Stderr, "%s: scheduler start: %v\n", appName, err)
		return 1
	}
	app.Scheduler.Run(ctx)

	server := &http.Server{Addr: cfg.WebhookAddr, Handler: app.Webhook.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		app.Logger.Info("webhook listening", "addr", cfg.WebhookAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Error("webhook server error", "err", err)
		}
	}()

	<-ctx.Done()
	app.Logger.Info("daemon shutting down")
	app.Scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
	return 0
}

type cliArgs struct {
	goal             string
	pipelineTemplate string
	priority         task.Priority
	dryRun           bool
	daemon           bool
	help             bool
}

func parseArgs(args []string) (cliArgs, error) {
	parsed := cliArgs{priority: task.PriorityP2}
	var positional []string

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch a {
		case "--help", "-h":
			parsed.help = true
		case "--daemon":
			parsed.daemon = true
		case "--dry-run":
			parsed.dryRun = true
		case "--priority":
			i++
			if i >= len(args) {
				return parsed, fmt.Errorf("--priority requires a value")
			}
			p := task.Priority(args[i])
			switch p {
			case task.PriorityP0, task.PriorityP1, task.PriorityP2, task.PriorityP3:
				parsed.priority = p
			default:
				return parsed, fmt.Errorf("invalid --priority %q (want P0|P1|P2|P3)", args[i])
			}
		case "--pipeline":
			i++
			if i >= len(args) {
				return parsed, fmt.Errorf("--pipeline requires a template name")
			}
			parsed.pipelineTemplate = args[i]
		default:
			positional = append(positional, a)
		}
	}

	if parsed.help || parsed.daemon || parsed.pipelineTemplate != "" {
		return parsed, nil
	}
	if len(positional) == 0 {
		return parsed, fmt.Errorf("expected a goal string, --pipeline <template>, or --daemon")
	}
	parsed.goal = joinArgs(positional)
	return parsed, nil
}

func joinArgs(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += " " + p
	}
	return out
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `%s — autonomous marketing-workflow runtime

Usage:
  %s <goal-string> [--priority P0|P1|P2|P3] [--dry-run]
  %s --pipeline <template> [--priority P0|P1|P2|P3] [--dry-run]
  %s --daemon
  %s --help|-h

Environment variables:
  MARKETINGD_DATA          Workspace root (default: ./marketingd-data)
  MARKETINGD_WEBHOOK_ADDR  Webhook listen address (default: 127.0.0.1:8090)
  MARKETINGD_WEBHOOK_TOKEN Bearer token required on POST /webhook
  ANTHROPIC_API_KEY        Claude API key for the agent executor

`, appName, appName, appName, appName, appName)
}
