package workspace

import (
	"context"
	"fmt"
	"strings"

	"github.com/marketeros/runtime/internal/schedule"
)

func scheduleStatePath(id string) string { return fmt.Sprintf("schedules/%s.json", id) }

// WriteScheduleState persists s at schedules/{scheduleId}.json.
func (w *Workspace) WriteScheduleState(ctx context.Context, s *schedule.State) error {
	data, err := s.Marshal()
	if err != nil {
		return newErr(CodeWriteFailed, "write_schedule_state", scheduleStatePath(s.ScheduleID), err)
	}
	return w.WriteFile(ctx, scheduleStatePath(s.ScheduleID), string(data))
}

// ReadScheduleState loads the persisted state for a schedule id.
func (w *Workspace) ReadScheduleState(id string) (*schedule.State, error) {
	path := scheduleStatePath(id)
	body, err := w.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := schedule.UnmarshalState([]byte(body))
	if err != nil {
		return nil, newErr(CodeParseError, "read_schedule_state", path, err)
	}
	return s, nil
}

// ListScheduleStates returns every persisted ScheduleState under
// schedules/, used by the Scheduler to rebuild its write-through cache on
// restart (spec.md §9 "In-memory maps vs durable state").
func (w *Workspace) ListScheduleStates() ([]*schedule.State, error) {
	names, err := w.ListFiles("schedules", ".json")
	if err != nil {
		return nil, err
	}
	var out []*schedule.State
	for _, name := range names {
		id := strings.TrimSuffix(name, ".json")
		s, err := w.ReadScheduleState(id)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
