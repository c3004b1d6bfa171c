// Package calendar decides whether a (date, time) pair is bookable at all,
// independent of existing bookings. It is the single authority shared by the
// availability read path and the booking write path.
package calendar

import (
	"time"

	"github.com/example/counseling-intake/internal/timeslot"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Reason identifies why a (date, time) pair is not bookable.
type Reason string

const (
	// ReasonNone indicates the pair passed every policy rule.
	ReasonNone Reason = ""
	// ReasonInvalidDate indicates the date is not a valid ISO calendar date.
	ReasonInvalidDate Reason = "INVALID_DATE"
	// ReasonPastDate indicates the date is strictly before the local today.
	ReasonPastDate Reason = "PAST_DATE"
	// ReasonNonWorkingDay indicates the date falls on a non-working weekday.
	ReasonNonWorkingDay Reason = "NON_WORKING_DAY"
	// ReasonHoliday indicates the date is in the configured holiday set.
	ReasonHoliday Reason = "HOLIDAY"
	// ReasonOutsideHours indicates the time is malformed or outside business hours.
	ReasonOutsideHours Reason = "OUTSIDE_HOURS"
	// ReasonMisalignedTime indicates the time does not fall on the slot grid.
	ReasonMisalignedTime Reason = "MISALIGNED_TIME"
)

// Decision reports the outcome of a policy check.
type Decision struct {
	OK     bool
	Reason Reason
}

func allow() Decision {
	return Decision{OK: true}
}

func deny(reason Reason) Decision {
	return Decision{Reason: reason}
}

// Policy captures the institution's booking calendar: local timezone, business
// hours window, slot step, non-working weekdays and holidays.
type Policy struct {
	location       *time.Location
	startTime      string
	endTime        string
	stepMinutes    int
	nonWorkingDays map[time.Weekday]struct{}
	holidays       map[string]struct{}
}

// Config carries the caller supplied policy settings. Zero fields fall back to
// the defaults used throughout the service: 08:00-17:00 in 30 minute steps
// with Saturday and Sunday non-working.
type Config struct {
	Location       *time.Location
	StartTime      string
	EndTime        string
	StepMinutes    int
	NonWorkingDays []time.Weekday
	Holidays       []string
}

// NewPolicy constructs a Policy from the provided configuration.
func NewPolicy(cfg Config) *Policy {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.StartTime == "" {
		cfg.StartTime = "08:00"
	}
	if cfg.EndTime == "" {
		cfg.EndTime = "17:00"
	}
	if cfg.StepMinutes <= 0 {
		cfg.StepMinutes = 30
	}
	if cfg.NonWorkingDays == nil {
		cfg.NonWorkingDays = []time.Weekday{time.Saturday, time.Sunday}
	}

	nonWorking := make(map[time.Weekday]struct{}, len(cfg.NonWorkingDays))
	for _, day := range cfg.NonWorkingDays {
		nonWorking[day] = struct{}{}
	}
	holidays := make(map[string]struct{}, len(cfg.Holidays))
	for _, holiday := range cfg.Holidays {
		holidays[holiday] = struct{}{}
	}

	return &Policy{
		location:       cfg.Location,
		startTime:      cfg.StartTime,
		endTime:        cfg.EndTime,
		stepMinutes:    cfg.StepMinutes,
		nonWorkingDays: nonWorking,
		holidays:       holidays,
	}
}

// Location returns the institution's timezone.
func (p *Policy) Location() *time.Location {
	return p.location
}

// StartTime returns the opening bound of the business hours window.
func (p *Policy) StartTime() string {
	return p.startTime
}

// EndTime returns the closing bound of the business hours window.
func (p *Policy) EndTime() string {
	return p.endTime
}

// StepMinutes returns the slot step width in minutes.
func (p *Policy) StepMinutes() int {
	return p.stepMinutes
}

// Grid returns the slot grid for a working day under this policy.
func (p *Policy) Grid() ([]string, error) {
	return timeslot.Grid(p.startTime, p.endTime, p.stepMinutes)
}

// CheckDate applies the date level rules (syntax, not past, working day, not a
// holiday) against the institution's local today derived from now. The first
// failing rule wins.
func (p *Policy) CheckDate(date string, now time.Time) Decision {
	parsed, err := time.ParseInLocation(DateLayout, date, p.location)
	if err != nil || parsed.Format(DateLayout) != date {
		return deny(ReasonInvalidDate)
	}

	// Compare calendar days in the institution's location, not the server's
	// UTC day boundary, so "today" does not shift near midnight.
	local := now.In(p.location)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.location)
	if parsed.Before(today) {
		return deny(ReasonPastDate)
	}

	if _, ok := p.nonWorkingDays[parsed.Weekday()]; ok {
		return deny(ReasonNonWorkingDay)
	}

	if _, ok := p.holidays[date]; ok {
		return deny(ReasonHoliday)
	}

	return allow()
}

// CheckTime applies the time level rules: well formed HH:MM within the
// business hours window, aligned to the slot step.
func (p *Policy) CheckTime(value string) Decision {
	at, err := timeslot.MinuteOfDay(value)
	if err != nil {
		return deny(ReasonOutsideHours)
	}

	from, err := timeslot.MinuteOfDay(p.startTime)
	if err != nil {
		return deny(ReasonOutsideHours)
	}
	to, err := timeslot.MinuteOfDay(p.endTime)
	if err != nil {
		return deny(ReasonOutsideHours)
	}
	if at < from || at > to {
		return deny(ReasonOutsideHours)
	}

	if !timeslot.Aligned(p.startTime, value, p.stepMinutes) {
		return deny(ReasonMisalignedTime)
	}

	return allow()
}

// Check runs the full ordered rule set for a (date, time) pair.
func (p *Policy) Check(date, value string, now time.Time) Decision {
	if decision := p.CheckDate(date, now); !decision.OK {
		return decision
	}
	return p.CheckTime(value)
}
