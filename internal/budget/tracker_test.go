package budget

import (
	"strings"
	"testing"

	"github.com/marketeros/runtime/internal/ports"
)

func TestTracker_Record(t *testing.T) {
	tr := New(10.0, 100.0)

	tr.Record("task_1", 0.05)
	tr.Record("task_1", 0.03)
	tr.Record("task_2", 0.10)

	if tr.TotalSpend() != 0.18 {
		t.Errorf("TotalSpend = %f, want 0.18", tr.TotalSpend())
	}
	if tr.TaskSpend("task_1") != 0.08 {
		t.Errorf("TaskSpend(task_1) = %f, want 0.08", tr.TaskSpend("task_1"))
	}
	if tr.TaskSpend("task_2") != 0.10 {
		t.Errorf("TaskSpend(task_2) = %f, want 0.10", tr.TaskSpend("task_2"))
	}
}

func TestTracker_CanSpend(t *testing.T) {
	tr := New(1.0, 10.0)

	if !tr.CanSpend(0.5) {
		t.Error("should be able to spend 0.5")
	}

	tr.Record("t", 0.8)

	if !tr.CanSpend(0.1) {
		t.Error("should still be able to spend 0.1 (total 0.9 < 1.0)")
	}
	if tr.CanSpend(0.3) {
		t.Error("should NOT be able to spend 0.3 (total 1.1 > 1.0)")
	}
}

func TestTracker_CanSpend_MonthlyLimit(t *testing.T) {
	tr := New(0, 0.50) // No daily limit, $0.50 monthly.

	tr.Record("t", 0.40)

	if !tr.CanSpend(0.05) {
		t.Error("should be able to spend 0.05 (0.45 < 0.50)")
	}
	if tr.CanSpend(0.20) {
		t.Error("should NOT be able to spend 0.20 (0.60 > 0.50)")
	}
}

func TestTracker_CanSpend_Unlimited(t *testing.T) {
	tr := New(0, 0) // No limits.

	tr.Record("t", 999.0)
	if !tr.CanSpend(999.0) {
		t.Error("unlimited budget should always allow spending")
	}
}

func TestTracker_RemainingDaily(t *testing.T) {
	tr := New(5.0, 100.0)

	if tr.RemainingDaily() != 5.0 {
		t.Errorf("remaining = %f, want 5.0", tr.RemainingDaily())
	}

	tr.Record("t", 3.0)
	if tr.RemainingDaily() != 2.0 {
		t.Errorf("remaining = %f, want 2.0", tr.RemainingDaily())
	}

	tr.Record("t", 3.0) // Over limit.
	if tr.RemainingDaily() != 0 {
		t.Errorf("remaining = %f, want 0", tr.RemainingDaily())
	}
}

func TestTracker_RemainingDaily_Unlimited(t *testing.T) {
	tr := New(0, 0)
	if tr.RemainingDaily() != -1 {
		t.Errorf("remaining = %f, want -1 (unlimited)", tr.RemainingDaily())
	}
}

func TestTracker_BudgetStatus(t *testing.T) {
	tr := New(5.0, 50.0)
	tr.Record("t", 1.5)

	status := tr.BudgetStatus()
	if !strings.Contains(status, "daily=") {
		t.Errorf("status should contain 'daily=': %s", status)
	}
	if !strings.Contains(status, "monthly=") {
		t.Errorf("status should contain 'monthly=': %s", status)
	}
	if !strings.Contains(status, "total=") {
		t.Errorf("status should contain 'total=': %s", status)
	}
}

func TestTracker_BudgetStatus_Unlimited(t *testing.T) {
	tr := New(0, 0)
	status := tr.BudgetStatus()
	if !strings.Contains(status, "unlimited") {
		t.Errorf("status should say unlimited: %s", status)
	}
}

func TestTracker_TaskSpend_Unknown(t *testing.T) {
	tr := New(0, 0)
	if tr.TaskSpend("nonexistent") != 0 {
		t.Error("unknown task should return 0")
	}
}

func TestTracker_BudgetState_Unlimited(t *testing.T) {
	tr := New(0, 0)
	state := tr.BudgetState()
	if state.Level != ports.BudgetNormal {
		t.Errorf("Level = %s, want normal", state.Level)
	}
	if len(state.AllowedPriorities) != 4 {
		t.Errorf("AllowedPriorities = %v, want all 4", state.AllowedPriorities)
	}
}

func TestTracker_BudgetState_Levels(t *testing.T) {
	cases := []struct {
		spend float64
		want  ports.BudgetLevel
	}{
		{0.10, ports.BudgetNormal},
		{0.60, ports.BudgetWarning},
		{0.80, ports.BudgetThrottle},
		{0.95, ports.BudgetCritical},
		{1.00, ports.BudgetExhausted},
	}
	for _, c := range cases {
		tr := New(1.0, 0)
		tr.Record("t", c.spend)
		state := tr.BudgetState()
		if state.Level != c.want {
			t.Errorf("spend=%.2f: Level = %s, want %s", c.spend, state.Level, c.want)
		}
	}
}

func TestTracker_BudgetState_ExhaustedAllowsNothing(t *testing.T) {
	tr := New(1.0, 0)
	tr.Record("t", 1.0)
	state := tr.BudgetState()
	if len(state.AllowedPriorities) != 0 {
		t.Errorf("AllowedPriorities = %v, want none", state.AllowedPriorities)
	}
}

func TestTracker_SetModelOverride(t *testing.T) {
	tr := New(1.0, 0)
	tr.SetModelOverride("claude-haiku")
	if state := tr.BudgetState(); state.ModelOverride != "claude-haiku" {
		t.Errorf("ModelOverride = %q", state.ModelOverride)
	}
}
