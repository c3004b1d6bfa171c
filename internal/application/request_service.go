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

// RequestStore captures the persistence interactions needed by the service.
type RequestStore interface {
	CreateRequest(ctx context.Context, request persistence.Request) error
	GetRequest(ctx context.Context, id string) (persistence.Request, error)
	UpdateRequest(ctx context.Context, request persistence.Request) error
	ListRequests(ctx context.Context, filter persistence.RequestFilter) ([]persistence.Request, error)
}

// UserDirectory exposes the account lookups needed by the service.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (persistence.User, error)
	ListStaff(ctx context.Context) ([]persistence.User, error)
}

// RequestEvent describes a lifecycle change published for the notification
// pipeline. Type values are stable identifiers.
type RequestEvent struct {
	Type        string
	RequestID   string
	Kind        counseling.Kind
	Status      counseling.Status
	RequesterID string
	StaffID     string
	MeetDate    string
	MeetTime    string
	OccurredAt  time.Time
}

// Event type identifiers carried on published request events.
const (
	EventRequestCreated     = "request.created"
	EventRequestApproved    = "request.approved"
	EventRequestDisapproved = "request.disapproved"
	EventRequestCancelled   = "request.cancelled"
	EventRequestCompleted   = "request.completed"
	EventRequestReplied     = "request.replied"
)

// RequestEventPublisher delivers lifecycle events to the notification
// pipeline. Publish failures must not fail the originating operation.
type RequestEventPublisher interface {
	PublishRequestEvent(ctx context.Context, event RequestEvent) error
}

// AvailabilityInvalidator drops cached availability for a staff member's day
// after a booking change.
type AvailabilityInvalidator interface {
	InvalidateDay(date, staffID string)
}

// RequestService orchestrates the counseling request lifecycle.
type RequestService struct {
	requests    RequestStore
	users       UserDirectory
	policy      *calendar.Policy
	events      RequestEventPublisher
	invalidator AvailabilityInvalidator
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRequestService wires dependencies for request operations. The events
// publisher and invalidator are optional.
func NewRequestService(requests RequestStore, users UserDirectory, policy *calendar.Policy, idGenerator func() string, now func() time.Time) *RequestService {
	return NewRequestServiceWithLogger(requests, users, policy, idGenerator, now, nil)
}

// NewRequestServiceWithLogger constructs a RequestService with a specified logger.
func NewRequestServiceWithLogger(requests RequestStore, users UserDirectory, policy *calendar.Policy, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RequestService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if policy == nil {
		policy = calendar.NewPolicy(calendar.Config{})
	}
	return &RequestService{
		requests:    requests,
		users:       users,
		policy:      policy,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// SetEventPublisher attaches an optional lifecycle event publisher.
func (s *RequestService) SetEventPublisher(events RequestEventPublisher) {
	s.events = events
}

// SetAvailabilityInvalidator attaches an optional availability cache hook.
func (s *RequestService) SetAvailabilityInvalidator(invalidator AvailabilityInvalidator) {
	s.invalidator = invalidator
}

func (s *RequestService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RequestService", operation, attrs...)
}

// CreateAsk submits a question-style request. It starts out Pending.
func (s *RequestService) CreateAsk(ctx context.Context, params CreateAskParams) (result CounselingRequest, err error) {
	if s == nil {
		return CounselingRequest{}, fmt.Errorf("RequestService is nil")
	}

	logger := s.loggerWith(ctx, "CreateAsk", "requester_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "ask submission failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("request_id", result.ID).InfoContext(ctx, "ask submitted")
	}()

	input := params.Input
	vErr := &ValidationError{}
	if strings.TrimSpace(input.Topic) == "" {
		vErr.add("topic", "topic is required")
	}
	if strings.TrimSpace(input.Message) == "" {
		vErr.add("message", "message is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	record := persistence.Request{
		ID:          s.idGenerator(),
		RequesterID: params.Principal.UserID,
		Kind:        counseling.KindAsk,
		Status:      counseling.StatusPending,
		Topic:       strings.TrimSpace(input.Topic),
		Message:     strings.TrimSpace(input.Message),
		Anonymous:   input.Anonymous,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err = s.requests.CreateRequest(ctx, record); err != nil {
		err = mapRequestRepoError(err)
		return
	}

	s.publish(ctx, EventRequestCreated, record)
	result = toCounselingRequest(record)
	return
}

// CreateMeet books an appointment slot. Validation runs in a fixed order:
// field checks, staff checks, calendar policy, then the conditional insert
// that settles slot contention.
func (s *RequestService) CreateMeet(ctx context.Context, params CreateMeetParams) (result CounselingRequest, err error) {
	if s == nil {
		return CounselingRequest{}, fmt.Errorf("RequestService is nil")
	}

	input := params.Input
	logger := s.loggerWith(ctx, "CreateMeet",
		"requester_id", params.Principal.UserID,
		"staff_id", input.StaffID,
		"meet_date", input.MeetDate,
		"meet_time", input.MeetTime,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "meeting booking failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("request_id", result.ID).InfoContext(ctx, "meeting booked")
	}()

	vErr := &ValidationError{}
	if !input.SessionMode.Valid() {
		vErr.add("session_mode", "session mode must be online or in_person")
	}
	if strings.TrimSpace(input.Reason) == "" {
		vErr.add("reason", "reason is required")
	}
	if strings.TrimSpace(input.MeetDate) == "" {
		vErr.add("meet_date", "meeting date is required")
	}
	if strings.TrimSpace(input.MeetTime) == "" {
		vErr.add("meet_time", "meeting time is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if strings.TrimSpace(input.StaffID) == "" {
		err = ErrMissingStaff
		return
	}

	staff, lookupErr := s.users.GetUser(ctx, input.StaffID)
	if lookupErr != nil {
		if errors.Is(lookupErr, persistence.ErrNotFound) {
			vErr.add("staff_id", "unknown staff member")
			err = vErr
			return
		}
		err = lookupErr
		return
	}
	if !staff.Role.Staff() || !staff.Active {
		vErr.add("staff_id", "staff member is not bookable")
		err = vErr
		return
	}

	if decision := s.policy.Check(input.MeetDate, input.MeetTime, s.now()); !decision.OK {
		err = &PolicyError{Reason: decision.Reason}
		return
	}

	now := s.now()
	record := persistence.Request{
		ID:          s.idGenerator(),
		RequesterID: params.Principal.UserID,
		Kind:        counseling.KindMeet,
		Status:      counseling.StatusPending,
		SessionMode: input.SessionMode,
		Reason:      strings.TrimSpace(input.Reason),
		MeetDate:    input.MeetDate,
		MeetTime:    input.MeetTime,
		StaffID:     input.StaffID,
		Notes:       strings.TrimSpace(input.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err = s.requests.CreateRequest(ctx, record); err != nil {
		err = mapRequestRepoError(err)
		return
	}

	s.invalidate(record)
	s.publish(ctx, EventRequestCreated, record)
	result = toCounselingRequest(record)
	return
}

// Approve confirms a pending request of either kind. For meetings, online
// sessions require a meeting link and in-person sessions a location.
func (s *RequestService) Approve(ctx context.Context, params ApproveParams) (result CounselingRequest, err error) {
	return s.transition(ctx, "Approve", params.Principal, params.RequestID, func(record *persistence.Request) error {
		if !params.Principal.Role.Privileged() {
			return ErrUnauthorized
		}

		next, err := counseling.Transition(record.Kind, record.Status, counseling.ActionApprove)
		if err != nil {
			return err
		}

		if record.Kind == counseling.KindMeet {
			vErr := &ValidationError{}
			link := strings.TrimSpace(params.MeetingLink)
			location := strings.TrimSpace(params.Location)
			switch record.SessionMode {
			case counseling.SessionModeOnline:
				if link == "" {
					vErr.add("meeting_link", "meeting link is required for online sessions")
				}
			case counseling.SessionModeInPerson:
				if location == "" {
					vErr.add("location", "location is required for in-person sessions")
				}
			}
			if vErr.HasErrors() {
				return vErr
			}
			if link != "" {
				record.MeetingLink = &link
			}
			if location != "" {
				record.Location = &location
			}
		}

		record.Status = next
		return nil
	}, EventRequestApproved)
}

// Disapprove rejects a pending request with a reason.
func (s *RequestService) Disapprove(ctx context.Context, params DisapproveParams) (result CounselingRequest, err error) {
	return s.transition(ctx, "Disapprove", params.Principal, params.RequestID, func(record *persistence.Request) error {
		if !params.Principal.Role.Privileged() {
			return ErrUnauthorized
		}

		next, err := counseling.Transition(record.Kind, record.Status, counseling.ActionDisapprove)
		if err != nil {
			return err
		}

		reason := strings.TrimSpace(params.Reason)
		if reason == "" {
			vErr := &ValidationError{}
			vErr.add("reason", "disapproval reason is required")
			return vErr
		}

		record.Status = next
		record.DisapproveReason = &reason
		return nil
	}, EventRequestDisapproved)
}

// Cancel withdraws a pending request. Only the requester may cancel.
func (s *RequestService) Cancel(ctx context.Context, principal Principal, requestID string) (CounselingRequest, error) {
	return s.transition(ctx, "Cancel", principal, requestID, func(record *persistence.Request) error {
		if record.RequesterID != principal.UserID {
			return ErrUnauthorized
		}

		next, err := counseling.Transition(record.Kind, record.Status, counseling.ActionCancel)
		if err != nil {
			return err
		}

		record.Status = next
		return nil
	}, EventRequestCancelled)
}

// Complete marks an approved meeting as held.
func (s *RequestService) Complete(ctx context.Context, principal Principal, requestID string) (CounselingRequest, error) {
	return s.transition(ctx, "Complete", principal, requestID, func(record *persistence.Request) error {
		if !principal.Role.Privileged() {
			return ErrUnauthorized
		}

		next, err := counseling.Transition(record.Kind, record.Status, counseling.ActionComplete)
		if err != nil {
			return err
		}

		completedAt := s.now()
		record.Status = next
		record.CompletedAt = &completedAt
		return nil
	}, EventRequestCompleted)
}

// Reply answers a question thread. Replying to a pending question counts as
// approving it.
func (s *RequestService) Reply(ctx context.Context, params ReplyParams) (CounselingRequest, error) {
	return s.transition(ctx, "Reply", params.Principal, params.RequestID, func(record *persistence.Request) error {
		if !params.Principal.Role.Privileged() {
			return ErrUnauthorized
		}

		next, err := counseling.Transition(record.Kind, record.Status, counseling.ActionReply)
		if err != nil {
			return err
		}

		reply := strings.TrimSpace(params.Reply)
		if reply == "" {
			vErr := &ValidationError{}
			vErr.add("reply", "reply text is required")
			return vErr
		}

		repliedAt := s.now()
		record.Status = next
		record.Reply = &reply
		record.RepliedAt = &repliedAt
		return nil
	}, EventRequestReplied)
}

// SetThreadStatus re-tags a question thread for triage.
func (s *RequestService) SetThreadStatus(ctx context.Context, params ThreadStatusParams) (CounselingRequest, error) {
	return s.transition(ctx, "SetThreadStatus", params.Principal, params.RequestID, func(record *persistence.Request) error {
		if !params.Principal.Role.Privileged() {
			return ErrUnauthorized
		}

		if err := counseling.CanSetThreadStatus(record.Kind, params.Status); err != nil {
			return err
		}

		status := params.Status
		record.ThreadStatus = &status
		return nil
	}, "")
}

// Get returns a single request. Requesters see their own records, the
// assigned staff member and privileged roles see everything.
func (s *RequestService) Get(ctx context.Context, principal Principal, requestID string) (CounselingRequest, error) {
	if s == nil {
		return CounselingRequest{}, fmt.Errorf("RequestService is nil")
	}

	record, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return CounselingRequest{}, mapRequestRepoError(err)
	}

	if record.RequesterID != principal.UserID && !principal.Role.Privileged() {
		return CounselingRequest{}, ErrUnauthorized
	}

	return s.maskForViewer(record, principal), nil
}

// List returns requests visible to the principal, newest first. Students are
// always restricted to their own submissions.
func (s *RequestService) List(ctx context.Context, params ListRequestsParams) ([]CounselingRequest, error) {
	if s == nil {
		return nil, fmt.Errorf("RequestService is nil")
	}

	filter := persistence.RequestFilter{
		Kind:    params.Kind,
		Status:  params.Status,
		StaffID: params.StaffID,
	}
	if params.Mine || !params.Principal.Role.Privileged() {
		filter.RequesterID = params.Principal.UserID
	}
	if params.PastOnly {
		now := s.now()
		filter.Kind = counseling.KindMeet
		filter.Before = &now
		filter.BeforeLocation = s.policy.Location()
	}

	records, err := s.requests.ListRequests(ctx, filter)
	if err != nil {
		return nil, mapRequestRepoError(err)
	}

	results := make([]CounselingRequest, 0, len(records))
	for _, record := range records {
		results = append(results, s.maskForViewer(record, params.Principal))
	}
	return results, nil
}

// transition loads a request, applies the mutation and persists the result.
// The mutation runs against a copy, so a failed transition leaves the stored
// record untouched.
func (s *RequestService) transition(ctx context.Context, operation string, principal Principal, requestID string, mutate func(*persistence.Request) error, eventType string) (result CounselingRequest, err error) {
	if s == nil {
		return CounselingRequest{}, fmt.Errorf("RequestService is nil")
	}

	logger := s.loggerWith(ctx, operation,
		"principal_id", principal.UserID,
		"request_id", requestID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "request transition failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("status", string(result.Status)).InfoContext(ctx, "request transition applied")
	}()

	record, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		err = mapRequestRepoError(err)
		return
	}

	before := record.Status
	if err = mutate(&record); err != nil {
		return
	}

	if err = s.requests.UpdateRequest(ctx, record); err != nil {
		err = mapRequestRepoError(err)
		return
	}

	// A slot is freed when a live meeting request leaves the active set.
	if record.Kind == counseling.KindMeet && before.Active() != record.Status.Active() {
		s.invalidate(record)
	}
	if eventType != "" {
		s.publish(ctx, eventType, record)
	}

	result = toCounselingRequest(record)
	return
}

func (s *RequestService) invalidate(record persistence.Request) {
	if s.invalidator == nil || record.Kind != counseling.KindMeet {
		return
	}
	s.invalidator.InvalidateDay(record.MeetDate, record.StaffID)
}

func (s *RequestService) publish(ctx context.Context, eventType string, record persistence.Request) {
	if s.events == nil {
		return
	}

	event := RequestEvent{
		Type:        eventType,
		RequestID:   record.ID,
		Kind:        record.Kind,
		Status:      record.Status,
		RequesterID: record.RequesterID,
		StaffID:     record.StaffID,
		MeetDate:    record.MeetDate,
		MeetTime:    record.MeetTime,
		OccurredAt:  s.now(),
	}
	if err := s.events.PublishRequestEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish request event",
			"event_type", eventType,
			"request_id", record.ID,
			"error", err,
		)
	}
}

// maskForViewer hides the requester of anonymous questions. The requester
// still sees their own submissions, and staff roles always see the requester
// so they can respond.
func (s *RequestService) maskForViewer(record persistence.Request, viewer Principal) CounselingRequest {
	result := toCounselingRequest(record)
	if record.Kind == counseling.KindAsk && record.Anonymous &&
		record.RequesterID != viewer.UserID && !viewer.Role.Privileged() {
		result.RequesterID = ""
	}
	return result
}

func toCounselingRequest(record persistence.Request) CounselingRequest {
	return CounselingRequest{
		ID:               record.ID,
		RequesterID:      record.RequesterID,
		Kind:             record.Kind,
		Status:           record.Status,
		Topic:            record.Topic,
		Message:          record.Message,
		Anonymous:        record.Anonymous,
		Reply:            record.Reply,
		RepliedAt:        record.RepliedAt,
		ThreadStatus:     record.ThreadStatus,
		SessionMode:      record.SessionMode,
		Reason:           record.Reason,
		MeetDate:         record.MeetDate,
		MeetTime:         record.MeetTime,
		StaffID:          record.StaffID,
		Notes:            record.Notes,
		MeetingLink:      record.MeetingLink,
		Location:         record.Location,
		DisapproveReason: record.DisapproveReason,
		CompletedAt:      record.CompletedAt,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
	}
}

// mapRequestRepoError translates persistence sentinels into application errors.
func mapRequestRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrSlotTaken
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("staff_id", "unknown staff member")
		return vErr
	default:
		return err
	}
}
