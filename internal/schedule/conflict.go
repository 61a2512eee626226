package schedule

import "strings"

// Overlap reports whether two meetings collide: they share at least one
// weekday and their time ranges intersect. Intervals are half-open, so a
// section ending 10:00 does not conflict with one starting 10:00. The first
// shared weekday is returned for error reporting.
func Overlap(a, b Meeting) (string, bool) {
	if a.Start.Minutes() >= b.End.Minutes() || b.Start.Minutes() >= a.End.Minutes() {
		return "", false
	}
	for _, dayA := range a.Days {
		for _, dayB := range b.Days {
			if strings.EqualFold(strings.TrimSpace(dayA), strings.TrimSpace(dayB)) {
				return dayA, true
			}
		}
	}
	return "", false
}

// HasConflict reports whether the candidate meeting overlaps any of the
// existing meetings. Existing sets are small (a student's concurrent
// enrollments), so a linear scan is enough.
func HasConflict(candidate Meeting, existing []Meeting) bool {
	for _, m := range existing {
		if _, ok := Overlap(candidate, m); ok {
			return true
		}
	}
	return false
}
