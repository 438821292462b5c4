// Package schedule holds the ScheduleEntry and ScheduleState data types
// (spec.md §3). The scheduler engine (internal/scheduler) owns the
// behaviour that consumes them; this package is a leaf so both
// internal/scheduler and internal/workspace can depend on it without a
// cycle.
package schedule

import (
	"encoding/json"
	"time"
)

// Entry is a configured cron activation.
type Entry struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Cron         string `json:"cron"`
	PipelineID   string `json:"pipeline_id"` // a template name, or "goal:<type>"
	Enabled      bool   `json:"enabled"`
	Priority     string `json:"priority"`
	GoalCategory string `json:"goal_category,omitempty"`
	Description  string `json:"description,omitempty"`
}

// State is the durable, per-schedule firing record (spec.md §6.1: "a small
// JSON file").
type State struct {
	ScheduleID     string     `json:"scheduleId"`
	LastFiredAt    *time.Time `json:"lastFiredAt,omitempty"`
	LastSkipReason string     `json:"lastSkipReason,omitempty"`
	FireCount      int        `json:"fireCount"`
}

// Marshal encodes s via the standard encoding/json tags above; this
// wrapper exists so workspace callers have one obvious entry point
// alongside the markdown-entity Marshal/Unmarshal pairs.
func (s State) Marshal() ([]byte, error) { return json.Marshal(s) }

// UnmarshalState parses a schedule state JSON blob.
func UnmarshalState(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
