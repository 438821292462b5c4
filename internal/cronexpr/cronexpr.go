// Package cronexpr implements the 5-field cron expression engine
// (spec.md §4.5): minute hour day-of-month month day-of-week, with AND
// (not POSIX OR) semantics between day-of-month and day-of-week.
//
// github.com/robfig/cron/v3 was evaluated and rejected as the engine
// itself — its default parser implements POSIX OR between DOM and DOW,
// which this spec explicitly forbids, and it has no previousCronMatch
// primitive. Its field-as-sorted-match-set shape is kept as a stylistic
// reference.
package cronexpr

import (
	"fmt"
	"strconv"
	"strings"
)

// Error carries (expression, field) context on a parse failure.
type Error struct {
	Expression string
	Field      string
	Reason     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("cronexpr: invalid %s field %q in %q: %s", e.Field, e.Expression, e.Expression, e.Reason)
}

func (e *Error) Code() string { return "CRON_PARSE_ERROR" }

type fieldSpec struct {
	name     string
	min, max int
}

var fieldSpecs = [5]fieldSpec{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"dayOfMonth", 1, 31},
	{"month", 1, 12},
	{"dayOfWeek", 0, 7},
}

// Fields is a parsed cron expression: one sorted set of matching values per
// field.
type Fields struct {
	Minute     []int
	Hour       []int
	DayOfMonth []int
	Month      []int
	DayOfWeek  []int
	raw        string
}

// Parse parses a standard 5-field cron expression.
func Parse(expr string) (*Fields, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return nil, &Error{Expression: expr, Field: "", Reason: fmt.Sprintf("expected 5 fields, got %d", len(parts))}
	}

	sets := make([][]int, 5)
	for i, spec := range fieldSpecs {
		set, err := parseField(parts[i], spec)
		if err != nil {
			return nil, &Error{Expression: expr, Field: spec.name, Reason: err.Error()}
		}
		sets[i] = set
	}

	return &Fields{
		Minute:     sets[0],
		Hour:       sets[1],
		DayOfMonth: sets[2],
		Month:      sets[3],
		DayOfWeek:  sets[4],
		raw:        expr,
	}, nil
}

// String returns the original expression text.
func (f *Fields) String() string { return f.raw }

// parseField supports *, literal, a-b range, */n or a-b/n or v/n step, and
// a,b,c lists (spec.md §4.5).
func parseField(s string, spec fieldSpec) ([]int, error) {
	var values []int
	for _, part := range strings.Split(s, ",") {
		vals, err := parsePart(part, spec)
		if err != nil {
			return nil, err
		}
		values = append(values, vals...)
	}
	return dedupSorted(values), nil
}

func parsePart(part string, spec fieldSpec) ([]int, error) {
	base, step, hasStep := strings.Cut(part, "/")
	stepN := 1
	if hasStep {
		n, err := strconv.Atoi(step)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid step %q", step)
		}
		stepN = n
	}

	var lo, hi int
	switch {
	case base == "*":
		lo, hi = spec.min, spec.max
	case strings.Contains(base, "-"):
		loS, hiS, _ := strings.Cut(base, "-")
		var err error
		lo, err = strconv.Atoi(loS)
		if err != nil {
			return nil, fmt.Errorf("invalid range start %q", loS)
		}
		hi, err = strconv.Atoi(hiS)
		if err != nil {
			return nil, fmt.Errorf("invalid range end %q", hiS)
		}
	default:
		v, err := strconv.Atoi(base)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", base)
		}
		if hasStep {
			lo, hi = v, spec.max
		} else {
			lo, hi = v, v
		}
	}

	if lo < spec.min || hi > spec.max || lo > hi {
		return nil, fmt.Errorf("value out of range [%d,%d]", spec.min, spec.max)
	}

	var out []int
	for v := lo; v <= hi; v += stepN {
		out = append(out, normalizeDOW(spec, v))
	}
	return out, nil
}

// normalizeDOW maps day-of-week 7 to 0 (both mean Sunday, spec.md §4.5).
func normalizeDOW(spec fieldSpec, v int) int {
	if spec.name == "dayOfWeek" && v == 7 {
		return 0
	}
	return v
}

func dedupSorted(vals []int) []int {
	seen := make(map[int]bool, len(vals))
	var out []int
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func contains(set []int, v int) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
