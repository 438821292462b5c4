package cronexpr

import "time"

// Matches reports whether t satisfies the expression (spec.md §4.5):
// AND, not POSIX OR, between day-of-month and day-of-week.
func (f *Fields) Matches(t time.Time) bool {
	return contains(f.Minute, t.Minute()) &&
		contains(f.Hour, t.Hour()) &&
		contains(f.DayOfMonth, t.Day()) &&
		contains(f.Month, int(t.Month())) &&
		contains(f.DayOfWeek, int(t.Weekday()))
}

const defaultLookbackDays = 31

// PreviousMatch returns the most recent instant strictly before `before`
// that satisfies the expression (minute resolution), or (zero, false) if
// none exists within lookbackDays (spec.md §4.5). If lookbackDays <= 0, the
// default of 31 is used.
//
// Strategy: walk days backward from before's day; on each matching
// calendar day, scan hours and minutes in descending order for the first
// candidate <= before - 1 minute.
func (f *Fields) PreviousMatch(before time.Time, lookbackDays int) (time.Time, bool) {
	if lookbackDays <= 0 {
		lookbackDays = defaultLookbackDays
	}

	upperBound := before.Add(-time.Minute)
	day := time.Date(before.Year(), before.Month(), before.Day(), 0, 0, 0, 0, before.Location())

	for d := 0; d <= lookbackDays; d++ {
		if d > 0 {
			day = day.AddDate(0, 0, -1)
		}
		if !contains(f.DayOfMonth, day.Day()) || !contains(f.Month, int(day.Month())) || !contains(f.DayOfWeek, int(day.Weekday())) {
			continue
		}
		for h := 23; h >= 0; h-- {
			if !contains(f.Hour, h) {
				continue
			}
			for m := 59; m >= 0; m-- {
				if !contains(f.Minute, m) {
					continue
				}
				candidate := time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
				if candidate.After(upperBound) {
					continue
				}
				return candidate, true
			}
		}
	}
	return time.Time{}, false
}

const maxNextFiringDays = 366

// NextFiring scans forward minute-by-minute from after "after" (exclusive)
// for the first instant that satisfies the expression, with fast-skip
// heuristics (advance a full day when the day-of-month/day-of-week/month
// does not match), limited to maxNextFiringDays (spec.md §4.6
// getNextFiring).
func (f *Fields) NextFiring(after time.Time) (time.Time, bool) {
	t := after.Truncate(time.Minute).Add(time.Minute)
	deadline := after.AddDate(0, 0, maxNextFiringDays)

	for t.Before(deadline) {
		if !contains(f.DayOfMonth, t.Day()) || !contains(f.Month, int(t.Month())) || !contains(f.DayOfWeek, int(t.Weekday())) {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
			continue
		}
		if !contains(f.Hour, t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location()).Add(time.Hour)
			continue
		}
		if contains(f.Minute, t.Minute()) {
			return t, true
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}, false
}
