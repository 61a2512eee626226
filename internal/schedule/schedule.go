// Package schedule parses free-form weekly schedule text and detects
// overlapping meeting times. Section schedules are entered by humans as
// "Monday and Wednesday 08:00-10:00"; parsing is strict so that a malformed
// schedule blocks enrollment instead of silently passing conflict checks.
package schedule

import (
	"fmt"
	"strings"
)

// TimeOfDay is a 24-hour clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// Minutes returns the offset from midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// String renders the time as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Meeting is the structured form of a schedule string: one or more weekdays
// sharing a single start/end time range.
type Meeting struct {
	Days  []string
	Start TimeOfDay
	End   TimeOfDay
}

// String renders the meeting back in the input grammar.
func (m Meeting) String() string {
	return fmt.Sprintf("%s %s-%s", strings.Join(m.Days, " and "), m.Start, m.End)
}

// FormatError reports schedule text that does not match the grammar.
type FormatError struct {
	Raw    string
	Reason string
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid schedule %q: %s", e.Raw, e.Reason)
}

// dayConnector joins weekday names in the day-list portion of the grammar.
const dayConnector = "and"

var canonicalDays = map[string]string{
	"monday":    "Monday",
	"tuesday":   "Tuesday",
	"wednesday": "Wednesday",
	"thursday":  "Thursday",
	"friday":    "Friday",
	"saturday":  "Saturday",
	"sunday":    "Sunday",
}

// Parse converts schedule text into a Meeting. The grammar is a sequence of
// weekday names joined by "and", a single space, then HH:MM-HH:MM. Parse is
// pure and deterministic; results may be cached per distinct input.
func Parse(raw string) (Meeting, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Meeting{}, &FormatError{Raw: raw, Reason: "empty schedule"}
	}

	fields := strings.Fields(trimmed)
	if len(fields) < 2 {
		return Meeting{}, &FormatError{Raw: raw, Reason: "missing time range"}
	}

	start, end, err := parseRange(raw, fields[len(fields)-1])
	if err != nil {
		return Meeting{}, err
	}

	dayList := strings.Join(fields[:len(fields)-1], " ")
	days, err := parseDays(raw, dayList)
	if err != nil {
		return Meeting{}, err
	}

	return Meeting{Days: days, Start: start, End: end}, nil
}

func parseDays(raw, dayList string) ([]string, error) {
	var days []string
	seen := make(map[string]struct{})
	for _, token := range strings.Split(dayList, dayConnector) {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, &FormatError{Raw: raw, Reason: "empty weekday name"}
		}
		canonical, ok := canonicalDays[strings.ToLower(token)]
		if !ok {
			return nil, &FormatError{Raw: raw, Reason: fmt.Sprintf("unknown weekday %q", token)}
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		days = append(days, canonical)
	}
	if len(days) == 0 {
		return nil, &FormatError{Raw: raw, Reason: "no weekdays"}
	}
	return days, nil
}

func parseRange(raw, token string) (TimeOfDay, TimeOfDay, error) {
	parts := strings.Split(token, "-")
	if len(parts) != 2 {
		return TimeOfDay{}, TimeOfDay{}, &FormatError{Raw: raw, Reason: "time range must be HH:MM-HH:MM"}
	}
	start, err := parseTime(raw, parts[0])
	if err != nil {
		return TimeOfDay{}, TimeOfDay{}, err
	}
	end, err := parseTime(raw, parts[1])
	if err != nil {
		return TimeOfDay{}, TimeOfDay{}, err
	}
	if start.Minutes() >= end.Minutes() {
		return TimeOfDay{}, TimeOfDay{}, &FormatError{Raw: raw, Reason: "start must be before end"}
	}
	return start, end, nil
}

func parseTime(raw, token string) (TimeOfDay, error) {
	if len(token) != 5 || token[2] != ':' {
		return TimeOfDay{}, &FormatError{Raw: raw, Reason: fmt.Sprintf("invalid time %q", token)}
	}
	hour, ok := parseTwoDigits(token[:2])
	if !ok || hour > 23 {
		return TimeOfDay{}, &FormatError{Raw: raw, Reason: fmt.Sprintf("invalid hour in %q", token)}
	}
	minute, ok := parseTwoDigits(token[3:])
	if !ok || minute > 59 {
		return TimeOfDay{}, &FormatError{Raw: raw, Reason: fmt.Sprintf("invalid minute in %q", token)}
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func parseTwoDigits(s string) (int, bool) {
	if len(s) != 2 || s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}
