package scheduler

import (
	"context"
	"sort"
	"time"
)

// catchUpEntry is one queued catch-up firing.
type catchUpEntry struct {
	id       string
	fireTime time.Time
	priority string
}

var priorityRank = map[string]int{"P0": 0, "P1": 1, "P2": 2, "P3": 3}

// runCatchUp fires any schedule whose most recent cron match was missed
// while the process was down (spec.md §4.6 "Catch-up"). It is called once
// from Start, and only if Config.CatchUpEnabled.
func (s *Scheduler) runCatchUp(ctx context.Context) {
	now := s.clock().Now()
	lookback := s.cfg.lookbackDays()

	s.mu.Lock()
	ids := append([]string(nil), s.order...)
	s.mu.Unlock()

	var queue []catchUpEntry
	for _, id := range ids {
		s.mu.Lock()
		info, ok := s.schedules[id]
		if !ok || !info.enabled || info.cron == nil {
			s.mu.Unlock()
			continue
		}
		st := s.states[id]
		s.mu.Unlock()

		prev, found := info.cron.PreviousMatch(now, lookback)
		if !found {
			continue
		}
		if st != nil && st.LastFiredAt != nil && !st.LastFiredAt.Before(prev) {
			continue
		}
		queue = append(queue, catchUpEntry{id: id, fireTime: prev, priority: info.entry.Priority})
	}

	sort.SliceStable(queue, func(i, j int) bool {
		return priorityRank[queue[i].priority] < priorityRank[queue[j].priority]
	})

	for _, c := range queue {
		s.mu.Lock()
		entry := s.schedules[c.id].entry
		s.mu.Unlock()

		if s.Budget != nil {
			budget := s.Budget.BudgetState()
			if !priorityAllowed(budget.AllowedPriorities, entry.Priority) {
				s.log().Info("catch_up_denied_by_budget", "schedule_id", c.id, "level", budget.Level)
				continue
			}
		}
		if err := s.fire(ctx, c.id, entry, c.fireTime); err != nil {
			s.log().Warn("catch_up_fire_error", "schedule_id", c.id, "err", err)
		}
	}
}
