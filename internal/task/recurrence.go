package task

import (
	"iter"
	"time"
)

// DefaultUnboundedCap bounds schedules that have no end date: instead of
// scheduling "forever", an open-ended task is planned for this many
// occurrences. Override per deployment via Calculator.UnboundedCap.
const DefaultUnboundedCap = 365

// Calculator computes occurrence counts for a schedule. The zero value uses
// DefaultUnboundedCap. Its methods are pure; snooze and resume decisions
// re-run them and must agree exactly with what was originally scheduled.
type Calculator struct {
	// UnboundedCap replaces the planned occurrence count when no end date
	// is given. Zero or negative falls back to DefaultUnboundedCap.
	UnboundedCap int
}

// OccurrenceCount returns how many times a task fires. A non-positive
// frequency means one-time. Without an end date the count is the unbounded
// cap. Otherwise it is ceil((end-start)/frequency), floored to 1: a window
// shorter than one interval still fires once.
func (c Calculator) OccurrenceCount(frequencyMs int64, start time.Time, end *time.Time) int {
	if frequencyMs <= 0 {
		return 1
	}
	if end == nil {
		if c.UnboundedCap > 0 {
			return c.UnboundedCap
		}
		return DefaultUnboundedCap
	}
	diff := end.Sub(start).Milliseconds()
	if diff < frequencyMs {
		return 1
	}
	return int((diff + frequencyMs - 1) / frequencyMs)
}

// OccurrenceDates yields the firing instants start, start+f, start+2f, ...
// strictly before end (the first occurrence is always yielded, so a window
// shorter than one interval still produces one date). For a non-positive
// frequency the sequence is just the start instant. The sequence is lazy
// and restartable; its length equals OccurrenceCount for the same window.
func OccurrenceDates(start, end time.Time, frequencyMs int64) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		if start.After(end) {
			return
		}
		if !yield(start) {
			return
		}
		if frequencyMs <= 0 {
			return
		}
		step := time.Duration(frequencyMs) * time.Millisecond
		for t := start.Add(step); t.Before(end); t = t.Add(step) {
			if !yield(t) {
				return
			}
		}
	}
}
