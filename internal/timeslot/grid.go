package timeslot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidTime indicates a value is not a well formed 24h HH:MM string.
var ErrInvalidTime = errors.New("timeslot: invalid HH:MM time")

// ErrInvalidStep indicates the slot step is not a positive number of minutes.
var ErrInvalidStep = errors.New("timeslot: step must be positive")

// ErrInvalidWindow indicates the end time precedes the start time.
var ErrInvalidWindow = errors.New("timeslot: end must not precede start")

// MinuteOfDay parses an HH:MM time into minutes since midnight.
func MinuteOfDay(value string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, ErrInvalidTime
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, ErrInvalidTime
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, ErrInvalidTime
	}
	return hour*60 + minute, nil
}

// Format renders minutes since midnight as an HH:MM string.
func Format(minuteOfDay int) string {
	return fmt.Sprintf("%02d:%02d", minuteOfDay/60, minuteOfDay%60)
}

// Grid produces the ordered sequence of HH:MM start times from start to end
// inclusive, advancing by step minutes. The result is the canonical universe
// of bookable times for a working day: it is deterministic, never staff or
// date specific, and always contains the boundary end time when the window is
// a whole multiple of step.
func Grid(start, end string, step int) ([]string, error) {
	if step <= 0 {
		return nil, ErrInvalidStep
	}

	from, err := MinuteOfDay(start)
	if err != nil {
		return nil, err
	}
	to, err := MinuteOfDay(end)
	if err != nil {
		return nil, err
	}
	if to < from {
		return nil, ErrInvalidWindow
	}

	slots := make([]string, 0, (to-from)/step+1)
	for minute := from; minute <= to; minute += step {
		slots = append(slots, Format(minute))
	}
	return slots, nil
}

// Aligned reports whether value falls on the step grid anchored at start.
// Both times must be well formed; malformed values are never aligned.
func Aligned(start, value string, step int) bool {
	if step <= 0 {
		return false
	}
	from, err := MinuteOfDay(start)
	if err != nil {
		return false
	}
	at, err := MinuteOfDay(value)
	if err != nil {
		return false
	}
	if at < from {
		return false
	}
	return (at-from)%step == 0
}
