package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/counseling-intake/internal/calendar"
	"github.com/example/counseling-intake/internal/counseling"
	"github.com/example/counseling-intake/internal/persistence"
)

// ReasonSlotTaken marks a slot held by another live meeting request.
const ReasonSlotTaken = "SLOT_TAKEN"

// ReasonNoStaffAvailable marks a slot where every roster member is booked.
const ReasonNoStaffAvailable = "NO_STAFF_AVAILABLE"

// AvailabilityService resolves open and closed slots for a date, either for
// one staff member or across the whole bookable roster.
type AvailabilityService struct {
	requests RequestStore
	users    UserDirectory
	policy   *calendar.Policy
	cache    *availabilityCache
	now      func() time.Time
	logger   *slog.Logger
}

// NewAvailabilityService wires dependencies for availability queries.
func NewAvailabilityService(requests RequestStore, users UserDirectory, policy *calendar.Policy, cacheTTL time.Duration, now func() time.Time) *AvailabilityService {
	return NewAvailabilityServiceWithLogger(requests, users, policy, cacheTTL, now, nil)
}

// NewAvailabilityServiceWithLogger constructs an AvailabilityService with a specified logger.
func NewAvailabilityServiceWithLogger(requests RequestStore, users UserDirectory, policy *calendar.Policy, cacheTTL time.Duration, now func() time.Time, logger *slog.Logger) *AvailabilityService {
	if now == nil {
		now = time.Now
	}
	if policy == nil {
		policy = calendar.NewPolicy(calendar.Config{})
	}
	return &AvailabilityService{
		requests: requests,
		users:    users,
		policy:   policy,
		cache:    newAvailabilityCache(cacheTTL, 0, now),
		now:      now,
		logger:   defaultLogger(logger),
	}
}

// InvalidateDay drops cached availability for the date. It satisfies the
// AvailabilityInvalidator hook used by RequestService.
func (s *AvailabilityService) InvalidateDay(date, staffID string) {
	if s == nil {
		return
	}
	s.cache.InvalidateDay(date, staffID)
}

// Resolve computes the slot list for the requested date. A date rejected by
// the calendar policy short-circuits: every slot is closed with that reason
// and no store queries run.
func (s *AvailabilityService) Resolve(ctx context.Context, params AvailabilityParams) (result DayAvailability, err error) {
	if s == nil {
		return DayAvailability{}, fmt.Errorf("AvailabilityService is nil")
	}

	logger := serviceLogger(ctx, s.logger, "AvailabilityService", "Resolve",
		"date", params.Date,
		"staff_id", params.StaffID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "availability resolution failed", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	grid, err := s.policy.Grid()
	if err != nil {
		return DayAvailability{}, err
	}

	date := strings.TrimSpace(params.Date)
	if decision := s.policy.CheckDate(date, s.now()); !decision.OK {
		return closedDay(date, grid, string(decision.Reason)), nil
	}

	key := availabilityCacheKey(date, params.StaffID)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	if params.StaffID != "" {
		result, err = s.resolveStaff(ctx, date, params.StaffID, grid)
	} else {
		result, err = s.resolveRoster(ctx, date, grid)
	}
	if err != nil {
		return DayAvailability{}, err
	}

	s.cache.Store(key, result)
	return result, nil
}

// resolveStaff marks each grid slot open unless a live meeting request of the
// staff member holds it.
func (s *AvailabilityService) resolveStaff(ctx context.Context, date, staffID string, grid []string) (DayAvailability, error) {
	staff, err := s.users.GetUser(ctx, staffID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return DayAvailability{}, ErrNotFound
		}
		return DayAvailability{}, err
	}
	if !staff.Role.Staff() || !staff.Active {
		return DayAvailability{}, ErrNotFound
	}

	taken, err := s.takenSlots(ctx, date, staffID)
	if err != nil {
		return DayAvailability{}, err
	}

	day := DayAvailability{Date: date, Slots: make([]Slot, 0, len(grid))}
	for _, at := range grid {
		slot := Slot{Time: at, Open: true}
		if taken[at] {
			slot.Open = false
			slot.Reason = ReasonSlotTaken
		}
		day.Slots = append(day.Slots, slot)
	}
	return day, nil
}

// resolveRoster merges availability across every bookable staff member. A
// slot stays open while at least one member is free.
func (s *AvailabilityService) resolveRoster(ctx context.Context, date string, grid []string) (DayAvailability, error) {
	roster, err := s.users.ListStaff(ctx)
	if err != nil {
		return DayAvailability{}, err
	}
	if len(roster) == 0 {
		return closedDay(date, grid, ReasonNoStaffAvailable), nil
	}

	takenByStaff := make(map[string]map[string]bool, len(roster))
	for _, member := range roster {
		taken, err := s.takenSlots(ctx, date, member.ID)
		if err != nil {
			return DayAvailability{}, err
		}
		takenByStaff[member.ID] = taken
	}

	day := DayAvailability{Date: date, Slots: make([]Slot, 0, len(grid))}
	for _, at := range grid {
		slot := Slot{Time: at}
		for _, member := range roster {
			if !takenByStaff[member.ID][at] {
				slot.OpenStaffIDs = append(slot.OpenStaffIDs, member.ID)
			}
		}
		if len(slot.OpenStaffIDs) > 0 {
			slot.Open = true
		} else {
			slot.Reason = ReasonNoStaffAvailable
		}
		day.Slots = append(day.Slots, slot)
	}
	return day, nil
}

// takenSlots collects the times held by live meeting requests.
func (s *AvailabilityService) takenSlots(ctx context.Context, date, staffID string) (map[string]bool, error) {
	records, err := s.requests.ListRequests(ctx, persistence.RequestFilter{
		StaffID:    staffID,
		Kind:       counseling.KindMeet,
		MeetDate:   date,
		ActiveOnly: true,
	})
	if err != nil {
		return nil, err
	}

	taken := make(map[string]bool, len(records))
	for _, record := range records {
		taken[record.MeetTime] = true
	}
	return taken, nil
}

func closedDay(date string, grid []string, reason string) DayAvailability {
	day := DayAvailability{Date: date, Slots: make([]Slot, 0, len(grid))}
	for _, at := range grid {
		day.Slots = append(day.Slots, Slot{Time: at, Reason: reason})
	}
	return day
}
