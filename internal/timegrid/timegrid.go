// Package timegrid provides minute-of-day arithmetic for availability windows
// and the 12-hour display format used by the time picker.
package timegrid

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// StepMinutes is the slot grid granularity.
	StepMinutes = 30

	// MinutesPerDay is the normalized end-of-day value.
	MinutesPerDay = 24 * 60
)

// MalformedTimeError reports a time string that could not be parsed.
type MalformedTimeError struct {
	Value  string
	Reason string
}

func (e *MalformedTimeError) Error() string {
	return fmt.Sprintf("malformed time %q: %s", e.Value, e.Reason)
}

// ToMinutes parses a 24-hour "HH:MM" string into minute-of-day.
// When endOfWindow is true, "00:00" means end of day and normalizes
// to MinutesPerDay instead of zero.
func ToMinutes(s string, endOfWindow bool) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, &MalformedTimeError{Value: s, Reason: "expected HH:MM"}
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, &MalformedTimeError{Value: s, Reason: "invalid hour"}
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, &MalformedTimeError{Value: s, Reason: "invalid minute"}
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, &MalformedTimeError{Value: s, Reason: "out of range"}
	}

	total := hour*60 + minute
	if endOfWindow && total == 0 {
		return MinutesPerDay, nil
	}
	return total, nil
}

// ExpandStarts returns every start minute t such that start <= t and
// t+duration <= end, advancing by step. The progression is closed-form:
// count = (end - duration - start)/step + 1 when end-duration >= start.
func ExpandStarts(start, end, step, duration int) []int {
	if step <= 0 || duration <= 0 {
		return nil
	}
	last := end - duration
	if last < start {
		return nil
	}

	count := (last-start)/step + 1
	starts := make([]int, 0, count)
	for t := start; t <= last; t += step {
		starts = append(starts, t)
	}
	return starts
}

// To24h formats a minute-of-day as 24-hour "HH:MM". MinutesPerDay
// maps back to "00:00", the wire encoding for end of day.
func To24h(minuteOfDay int) string {
	minuteOfDay %= MinutesPerDay
	return fmt.Sprintf("%02d:%02d", minuteOfDay/60, minuteOfDay%60)
}

// ToDisplay formats a minute-of-day as "H:MMam" / "H:MMpm".
func ToDisplay(minuteOfDay int) string {
	hour := (minuteOfDay / 60) % 24
	minute := minuteOfDay % 60

	suffix := "am"
	if hour >= 12 {
		suffix = "pm"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d%s", h, minute, suffix)
}

// FromDisplay parses a "H:MMam" / "H:MMpm" string back into minute-of-day.
// It is the exact inverse of ToDisplay and rejects anything else.
func FromDisplay(s string) (int, error) {
	var suffix string
	switch {
	case strings.HasSuffix(s, "am"):
		suffix = "am"
	case strings.HasSuffix(s, "pm"):
		suffix = "pm"
	default:
		return 0, &MalformedTimeError{Value: s, Reason: "missing am/pm suffix"}
	}

	body := strings.TrimSuffix(s, suffix)
	parts := strings.Split(body, ":")
	if len(parts) != 2 {
		return 0, &MalformedTimeError{Value: s, Reason: "expected H:MM"}
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, &MalformedTimeError{Value: s, Reason: "invalid hour"}
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, &MalformedTimeError{Value: s, Reason: "invalid minute"}
	}
	if hour < 1 || hour > 12 || minute < 0 || minute > 59 || len(parts[1]) != 2 {
		return 0, &MalformedTimeError{Value: s, Reason: "out of range"}
	}

	if hour == 12 {
		hour = 0
	}
	if suffix == "pm" {
		hour += 12
	}
	return hour*60 + minute, nil
}
