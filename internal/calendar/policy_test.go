package calendar

import (
	"testing"
	"time"
)

func testPolicy(holidays ...string) *Policy {
	return NewPolicy(Config{
		Location:    time.FixedZone("PST", 8*60*60),
		StartTime:   "08:00",
		EndTime:     "17:00",
		StepMinutes: 30,
		Holidays:    holidays,
	})
}

// Monday 2026-01-12 09:00 local.
func testNow() time.Time {
	return time.Date(2026, time.January, 12, 9, 0, 0, 0, time.FixedZone("PST", 8*60*60))
}

func TestPolicy_CheckDate(t *testing.T) {
	t.Parallel()

	policy := testPolicy("2026-01-14")
	now := testNow()

	cases := []struct {
		name   string
		date   string
		ok     bool
		reason Reason
	}{
		{name: "today is bookable", date: "2026-01-12", ok: true},
		{name: "future weekday is bookable", date: "2026-01-13", ok: true},
		{name: "malformed date", date: "12-01-2026", reason: ReasonInvalidDate},
		{name: "non canonical date", date: "2026-1-12", reason: ReasonInvalidDate},
		{name: "impossible date", date: "2026-02-30", reason: ReasonInvalidDate},
		{name: "yesterday", date: "2026-01-11", reason: ReasonPastDate},
		{name: "saturday", date: "2026-01-10", reason: ReasonPastDate},
		{name: "next saturday", date: "2026-01-17", reason: ReasonNonWorkingDay},
		{name: "next sunday", date: "2026-01-18", reason: ReasonNonWorkingDay},
		{name: "holiday", date: "2026-01-14", reason: ReasonHoliday},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := policy.CheckDate(tc.date, now)
			if decision.OK != tc.ok {
				t.Fatalf("CheckDate(%q) ok = %v, want %v (reason %s)", tc.date, decision.OK, tc.ok, decision.Reason)
			}
			if !tc.ok && decision.Reason != tc.reason {
				t.Fatalf("CheckDate(%q) reason = %s, want %s", tc.date, decision.Reason, tc.reason)
			}
		})
	}
}

func TestPolicy_CheckDate_UsesLocalDay(t *testing.T) {
	t.Parallel()

	policy := testPolicy()

	// 17:00 UTC Monday is already 01:00 Tuesday in the institution's zone, so
	// Monday must count as a past date even though the UTC day has not rolled.
	now := time.Date(2026, time.January, 12, 17, 0, 0, 0, time.UTC)

	if decision := policy.CheckDate("2026-01-12", now); decision.OK || decision.Reason != ReasonPastDate {
		t.Fatalf("expected PAST_DATE for local yesterday, got %+v", decision)
	}
	if decision := policy.CheckDate("2026-01-13", now); !decision.OK {
		t.Fatalf("expected local today to be bookable, got %+v", decision)
	}
}

func TestPolicy_CheckTime(t *testing.T) {
	t.Parallel()

	policy := testPolicy()

	cases := []struct {
		name   string
		value  string
		ok     bool
		reason Reason
	}{
		{name: "opening slot", value: "08:00", ok: true},
		{name: "half hour slot", value: "13:30", ok: true},
		{name: "closing boundary", value: "17:00", ok: true},
		{name: "before opening", value: "07:30", reason: ReasonOutsideHours},
		{name: "after closing", value: "17:30", reason: ReasonOutsideHours},
		{name: "malformed", value: "9am", reason: ReasonOutsideHours},
		{name: "misaligned", value: "09:15", reason: ReasonMisalignedTime},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := policy.CheckTime(tc.value)
			if decision.OK != tc.ok {
				t.Fatalf("CheckTime(%q) ok = %v, want %v (reason %s)", tc.value, decision.OK, tc.ok, decision.Reason)
			}
			if !tc.ok && decision.Reason != tc.reason {
				t.Fatalf("CheckTime(%q) reason = %s, want %s", tc.value, decision.Reason, tc.reason)
			}
		})
	}
}

func TestPolicy_Check_DateRulesWin(t *testing.T) {
	t.Parallel()

	policy := testPolicy()
	now := testNow()

	// A misaligned time on a weekend must surface the weekend, not the time.
	decision := policy.Check("2026-01-17", "09:15", now)
	if decision.OK || decision.Reason != ReasonNonWorkingDay {
		t.Fatalf("expected NON_WORKING_DAY to win, got %+v", decision)
	}
}

func TestPolicy_Grid(t *testing.T) {
	t.Parallel()

	slots, err := testPolicy().Grid()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 19 {
		t.Fatalf("expected 19 slots, got %d", len(slots))
	}
}
