// Package scheduler implements the Scheduler (C3, spec.md §4.6): fires
// scheduled pipeline activations at their cron times, exactly once per
// matched minute, subject to budget and overlap gates, and survives
// restarts by treating its in-memory state as a write-through cache over
// internal/workspace's schedules/*.json files (spec.md §9).
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/marketeros/runtime/internal/cronexpr"
	"github.com/marketeros/runtime/internal/observability"
	"github.com/marketeros/runtime/internal/ports"
	"github.com/marketeros/runtime/internal/schedule"
	"github.com/marketeros/runtime/internal/task"
	"github.com/marketeros/runtime/internal/workspace"
)

const defaultTickInterval = 60 * time.Second

// scheduleInfo is the in-memory entry for one configured schedule.
type scheduleInfo struct {
	entry   schedule.Entry
	cron    *cronexpr.Fields
	enabled bool
}

// running tracks a pipeline a schedule fired that has not yet completed.
type running struct {
	startedAt  time.Time
	pipelineID string
}

// Config controls optional Scheduler behaviour.
type Config struct {
	TickInterval        time.Duration
	CatchUpEnabled      bool
	CatchUpLookbackDays int
}

func (c Config) tickInterval() time.Duration {
	if c.TickInterval > 0 {
		return c.TickInterval
	}
	return defaultTickInterval
}

func (c Config) lookbackDays() int {
	if c.CatchUpLookbackDays > 0 {
		return c.CatchUpLookbackDays
	}
	return 31
}

// Scheduler is the Scheduler engine (C3, spec.md §4.6).
type Scheduler struct {
	Workspace *workspace.Workspace
	Director  ports.Director
	Budget    ports.BudgetProvider
	Clock     ports.Clock
	Logger    *observability.Logger
	cfg       Config

	mu              sync.Mutex
	schedules       map[string]*scheduleInfo
	order           []string // insertion order, for deterministic tick iteration
	states          map[string]*schedule.State
	runningPipelines map[string]running
	firedThisMinute map[string]bool
	lastMinuteKey   string

	ticking  bool
	stopCh   chan struct{}
	tickDone chan struct{}
}

// New builds a Scheduler. Call Start to load entries and begin ticking.
func New(ws *workspace.Workspace, director ports.Director, budget ports.BudgetProvider, cfg Config) *Scheduler {
	return &Scheduler{
		Workspace:        ws,
		Director:         director,
		Budget:           budget,
		Clock:            ports.SystemClock{},
		Logger:           observability.NewLogger(nil),
		cfg:              cfg,
		schedules:        make(map[string]*scheduleInfo),
		states:           make(map[string]*schedule.State),
		runningPipelines: make(map[string]running),
		firedThisMinute:  make(map[string]bool),
	}
}

// SkipReason enumerates why a schedule did not fire on a given tick.
type SkipReason string

const (
	SkipDisabled             SkipReason = "disabled"
	SkipAlreadyFiredThisMinute SkipReason = "already_fired_this_minute"
	SkipPipelineStillRunning SkipReason = "pipeline_still_running"
	SkipBudget               SkipReason = "budget"
	SkipFireError            SkipReason = "fire_error"
)

// TickResult summarizes the outcome of one tick.
type TickResult struct {
	Now     time.Time
	Fired   []string
	Skipped map[string]string // scheduleID -> reason
	Overlap bool              // true if this tick was skipped entirely due to overlap
}

// Start loads entries, parses their cron expressions (dropping and logging
// any invalid one), restores durable state, and optionally runs catch-up.
// It does not start the ticking goroutine; callers drive ticks via Tick or
// Run.
func (s *Scheduler) Start(ctx context.Context, entries []schedule.Entry) error {
	s.mu.Lock()
	for _, e := range entries {
		info := &scheduleInfo{entry: e, enabled: e.Enabled}
		fields, err := cronexpr.Parse(e.Cron)
		if err != nil {
			s.log().Warn("dropping schedule with invalid cron", "schedule_id", e.ID, "cron", e.Cron, "err", err)
			continue
		}
		info.cron = fields
		if _, exists := s.schedules[e.ID]; !exists {
			s.order = append(s.order, e.ID)
		}
		s.schedules[e.ID] = info
	}
	s.mu.Unlock()

	states, err := s.Workspace.ListScheduleStates()
	if err != nil {
		return fmt.Errorf("scheduler: restore state: %w", err)
	}
	s.mu.Lock()
	for _, st := range states {
		s.states[st.ScheduleID] = st
	}
	s.mu.Unlock()

	if s.cfg.CatchUpEnabled {
		s.runCatchUp(ctx)
	}
	return nil
}

// Stop signals the ticking goroutine started by Run to end. It does not
// block and does not wait for a tick that is already in flight.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
}

// Run starts a goroutine that ticks every cfg.TickInterval (default 60s),
// aligned to the next minute boundary, until ctx is cancelled or Stop is
// called. It returns immediately.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	stopCh := make(chan struct{})
	s.stopCh = stopCh
	s.mu.Unlock()

	go func() {
		now := s.clock().Now()
		firstDelay := now.Truncate(time.Minute).Add(time.Minute).Sub(now)
		timer := time.NewTimer(firstDelay)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-timer.C:
				s.Tick(ctx)
				timer.Reset(s.cfg.tickInterval())
			}
		}
	}()
}

// Tick runs one scheduling pass (spec.md §4.6). If a previous tick is
// still in flight, this tick is skipped entirely (tick_overlap_skipped).
func (s *Scheduler) Tick(ctx context.Context) TickResult {
	s.mu.Lock()
	if s.ticking {
		s.mu.Unlock()
		s.log().Warn("tick_overlap_skipped")
		return TickResult{Now: s.clock().Now(), Overlap: true}
	}
	s.ticking = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.ticking = false
		s.mu.Unlock()
	}()

	now := s.clock().Now()
	minuteKey := now.Format("2006-01-02T15:04")

	s.mu.Lock()
	if minuteKey != s.lastMinuteKey {
		s.firedThisMinute = make(map[string]bool)
		s.lastMinuteKey = minuteKey
	}
	ids := append([]string(nil), s.order...)
	s.mu.Unlock()

	result := TickResult{Now: now, Skipped: make(map[string]string)}
	for _, id := range ids {
		reason, fired := s.evaluateOne(ctx, id, now)
		if fired {
			result.Fired = append(result.Fired, id)
		} else if reason != "" {
			result.Skipped[id] = reason
		}
	}
	return result
}

func (s *Scheduler) evaluateOne(ctx context.Context, id string, now time.Time) (reason string, fired bool) {
	s.mu.Lock()
	info, ok := s.schedules[id]
	if !ok {
		s.mu.Unlock()
		return "", false
	}
	if !info.enabled {
		s.mu.Unlock()
		return string(SkipDisabled), false
	}
	if info.cron == nil || !info.cron.Matches(now) {
		s.mu.Unlock()
		return "", false // silent skip, per spec
	}
	if s.firedThisMinute[id] {
		s.mu.Unlock()
		return string(SkipAlreadyFiredThisMinute), false
	}
	if _, inFlight := s.runningPipelines[id]; inFlight {
		s.mu.Unlock()
		s.log().Info("pipeline_still_running", "schedule_id", id)
		return string(SkipPipelineStillRunning), false
	}
	entry := info.entry
	s.mu.Unlock()

	if s.Budget != nil {
		budget := s.Budget.BudgetState()
		if !priorityAllowed(budget.AllowedPriorities, entry.Priority) {
			reason := fmt.Sprintf("%s_%s", SkipBudget, budget.Level)
			s.recordSkip(id, reason)
			return reason, false
		}
	}

	if err := s.fire(ctx, id, entry, now); err != nil {
		reason := fmt.Sprintf("%s: %s", SkipFireError, err.Error())
		s.recordSkip(id, reason)
		return reason, false
	}

	s.mu.Lock()
	s.firedThisMinute[id] = true
	s.mu.Unlock()
	return "", true
}

// fire starts the schedule's pipeline or goal (spec.md §4.6 "Firing").
func (s *Scheduler) fire(ctx context.Context, id string, entry schedule.Entry, fireTime time.Time) error {
	priority := task.Priority(entry.Priority)

	var pipelineID string
	if strings.HasPrefix(entry.PipelineID, "goal:") {
		goalType := strings.TrimPrefix(entry.PipelineID, "goal:")
		description := goalDescription(goalType, fireTime)
		g, err := s.Director.CreateGoal(ctx, description, goalType, priority)
		if err != nil {
			return fmt.Errorf("create_goal: %w", err)
		}
		plan, err := s.Director.DecomposeGoal(ctx, g)
		if err != nil {
			return fmt.Errorf("decompose_goal: %w", err)
		}
		if _, err := s.Director.PlanGoalTasks(ctx, plan, g); err != nil {
			return fmt.Errorf("plan_goal_tasks: %w", err)
		}
		pipelineID = g.ID
	} else {
		description := entry.Description
		if description == "" {
			description = entry.Name
		}
		started, err := s.Director.StartPipeline(ctx, entry.PipelineID, description, priority)
		if err != nil {
			return fmt.Errorf("start_pipeline: %w", err)
		}
		pipelineID = started.RunID
	}

	s.mu.Lock()
	s.runningPipelines[id] = running{startedAt: s.clock().Now(), pipelineID: pipelineID}
	st := s.states[id]
	if st == nil {
		st = &schedule.State{ScheduleID: id}
	}
	firedAt := fireTime
	st.LastFiredAt = &firedAt
	st.LastSkipReason = ""
	st.FireCount++
	s.states[id] = st
	s.mu.Unlock()

	if err := s.Workspace.WriteScheduleState(ctx, st); err != nil {
		s.log().Warn("persist schedule state failed", "schedule_id", id, "err", err)
	}
	return nil
}

// MarkCompleted clears the in-flight marker for a schedule, re-enabling it
// to fire again. Guarded by the same mutex a Tick uses so a concurrent
// completion callback never observes runningPipelines mid-mutation (spec.md
// §9 open question).
func (s *Scheduler) MarkCompleted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runningPipelines, id)
}

func (s *Scheduler) recordSkip(id, reason string) {
	s.mu.Lock()
	st := s.states[id]
	if st == nil {
		st = &schedule.State{ScheduleID: id}
	}
	st.LastSkipReason = reason
	s.states[id] = st
	s.mu.Unlock()
	if err := s.Workspace.WriteScheduleState(context.Background(), st); err != nil {
		s.log().Warn("persist schedule skip state failed", "schedule_id", id, "err", err)
	}
}

func priorityAllowed(allowed []task.Priority, priority string) bool {
	for _, p := range allowed {
		if string(p) == priority {
			return true
		}
	}
	return false
}

func goalDescription(goalType string, at time.Time) string {
	return fmt.Sprintf("Scheduled %s goal for %s", goalType, at.Format("2006-01-02"))
}

// GetNextFiring scans forward for the next instant the schedule will match
// (spec.md §4.6 "Next-firing projection"), or (zero, false) if the
// schedule is unknown, disabled, or has no match within the cron engine's
// 366-day horizon.
func (s *Scheduler) GetNextFiring(id string) (time.Time, bool) {
	s.mu.Lock()
	info, ok := s.schedules[id]
	now := s.clock().Now()
	s.mu.Unlock()
	if !ok || !info.enabled || info.cron == nil {
		return time.Time{}, false
	}
	return info.cron.NextFiring(now)
}

func (s *Scheduler) clock() ports.Clock {
	if s.Clock != nil {
		return s.Clock
	}
	return ports.SystemClock{}
}

func (s *Scheduler) log() *observability.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return observability.NewLogger(nil)
}
