// Package budget implements the reference BudgetProvider (spec.md §4.8):
// cost tracking against a daily/monthly limit, gating which task
// priorities the Scheduler may fire (spec.md §4.6).
package budget

import (
	"fmt"
	"sync"
	"time"

	"github.com/marketeros/runtime/internal/ports"
	"github.com/marketeros/runtime/internal/task"
)

// Tracker records spending and enforces limits. Thread-safe. Implements
// ports.BudgetProvider.
type Tracker struct {
	mu sync.RWMutex

	dailyLimit   float64
	monthlyLimit float64

	dailySpend   float64
	monthlySpend float64
	totalSpend   float64

	taskSpend map[string]float64
	dayKey    string // "2006-01-02" — reset daily when date changes
	monthKey  string // "2006-01" — reset monthly when month changes

	modelOverride string
}

// New creates a budget tracker with the given limits. Pass 0 for no limit.
func New(dailyLimit, monthlyLimit float64) *Tracker {
	now := time.Now()
	return &Tracker{
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		taskSpend:    make(map[string]float64),
		dayKey:       now.Format("2006-01-02"),
		monthKey:     now.Format("2006-01"),
	}
}

// Record records a cost against a task ID.
func (t *Tracker) Record(taskID string, costUSD float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.maybeReset()

	t.dailySpend += costUSD
	t.monthlySpend += costUSD
	t.totalSpend += costUSD
	t.taskSpend[taskID] += costUSD
}

// CanSpend returns true if spending the given amount would stay within limits.
func (t *Tracker) CanSpend(amount float64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.dailyLimit > 0 && t.dailySpend+amount > t.dailyLimit {
		return false
	}
	if t.monthlyLimit > 0 && t.monthlySpend+amount > t.monthlyLimit {
		return false
	}
	return true
}

// RemainingDaily returns the remaining daily budget. Returns -1 if no limit.
func (t *Tracker) RemainingDaily() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.dailyLimit <= 0 {
		return -1
	}
	remaining := t.dailyLimit - t.dailySpend
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TaskSpend returns spending for a specific task.
func (t *Tracker) TaskSpend(taskID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.taskSpend[taskID]
}

// TotalSpend returns all-time spending.
func (t *Tracker) TotalSpend() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalSpend
}

// SetModelOverride forces BudgetState().ModelOverride to model (empty string
// clears it). Used by operators to force a cheaper model tier under
// sustained cost pressure.
func (t *Tracker) SetModelOverride(model string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.modelOverride = model
}

// BudgetStatus returns a human-readable status string.
func (t *Tracker) BudgetStatus() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	daily := "unlimited"
	if t.dailyLimit > 0 {
		daily = fmt.Sprintf("$%.4f / $%.2f (%.0f%%)", t.dailySpend, t.dailyLimit, t.dailySpend/t.dailyLimit*100)
	}
	monthly := "unlimited"
	if t.monthlyLimit > 0 {
		monthly = fmt.Sprintf("$%.4f / $%.2f (%.0f%%)", t.monthlySpend, t.monthlyLimit, t.monthlySpend/t.monthlyLimit*100)
	}
	return fmt.Sprintf("daily=%s monthly=%s total=$%.4f", daily, monthly, t.totalSpend)
}

// BudgetState implements ports.BudgetProvider, deriving a coarse pressure
// level and the set of priorities the Scheduler may still fire at it
// (spec.md §4.6, §4.8). The daily limit is the governing TotalBudget; an
// unlimited tracker (dailyLimit == 0) always reports BudgetNormal.
func (t *Tracker) BudgetState() ports.BudgetState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.dailyLimit <= 0 {
		return ports.BudgetState{
			TotalBudget:       0,
			Spent:             t.dailySpend,
			PercentUsed:       0,
			Level:             ports.BudgetNormal,
			AllowedPriorities: allPriorities,
			ModelOverride:     t.modelOverride,
		}
	}

	pct := t.dailySpend / t.dailyLimit * 100
	level, allowed := levelFor(pct)
	return ports.BudgetState{
		TotalBudget:       t.dailyLimit,
		Spent:             t.dailySpend,
		PercentUsed:       pct,
		Level:             level,
		AllowedPriorities: allowed,
		ModelOverride:     t.modelOverride,
	}
}

var allPriorities = []task.Priority{task.PriorityP0, task.PriorityP1, task.PriorityP2, task.PriorityP3}

// levelFor maps a percent-used figure to a BudgetLevel and the priorities
// still allowed to fire, generalized from the teacher's single
// ShouldDowngrade 80% threshold into the five-level scale spec.md §4.8
// names.
func levelFor(pct float64) (ports.BudgetLevel, []task.Priority) {
	switch {
	case pct < 50:
		return ports.BudgetNormal, allPriorities
	case pct < 75:
		return ports.BudgetWarning, []task.Priority{task.PriorityP0, task.PriorityP1, task.PriorityP2}
	case pct < 90:
		return ports.BudgetThrottle, []task.Priority{task.PriorityP0, task.PriorityP1}
	case pct < 100:
		return ports.BudgetCritical, []task.Priority{task.PriorityP0}
	default:
		return ports.BudgetExhausted, nil
	}
}

// maybeReset resets daily/monthly counters when the period changes. Must be
// called with mu held.
func (t *Tracker) maybeReset() {
	now := time.Now()
	day := now.Format("2006-01-02")
	month := now.Format("2006-01")

	if day != t.dayKey {
		t.dailySpend = 0
		t.dayKey = day
	}
	if month != t.monthKey {
		t.monthlySpend = 0
		t.monthKey = month
	}
}
