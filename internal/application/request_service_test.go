package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/counseling-intake/internal/calendar"
	"github.com/example/counseling-intake/internal/counseling"
	"github.com/example/counseling-intake/internal/persistence"
)

// requestStoreStub keeps requests in memory and enforces the slot uniqueness
// rule the way the real stores do.
type requestStoreStub struct {
	requests  map[string]persistence.Request
	createErr error
	listCalls int
}

func newRequestStoreStub() *requestStoreStub {
	return &requestStoreStub{requests: make(map[string]persistence.Request)}
}

func (s *requestStoreStub) CreateRequest(_ context.Context, request persistence.Request) error {
	if s.createErr != nil {
		return s.createErr
	}
	for _, existing := range s.requests {
		if existing.Kind == counseling.KindMeet && existing.Status.Active() &&
			request.Kind == counseling.KindMeet &&
			existing.StaffID == request.StaffID &&
			existing.MeetDate == request.MeetDate &&
			existing.MeetTime == request.MeetTime {
			return persistence.ErrDuplicate
		}
	}
	s.requests[request.ID] = request
	return nil
}

func (s *requestStoreStub) GetRequest(_ context.Context, id string) (persistence.Request, error) {
	request, ok := s.requests[id]
	if !ok {
		return persistence.Request{}, persistence.ErrNotFound
	}
	return request, nil
}

func (s *requestStoreStub) UpdateRequest(_ context.Context, request persistence.Request) error {
	if _, ok := s.requests[request.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.requests[request.ID] = request
	return nil
}

func (s *requestStoreStub) ListRequests(_ context.Context, filter persistence.RequestFilter) ([]persistence.Request, error) {
	s.listCalls++
	var out []persistence.Request
	for _, request := range s.requests {
		if filter.RequesterID != "" && request.RequesterID != filter.RequesterID {
			continue
		}
		if filter.StaffID != "" && request.StaffID != filter.StaffID {
			continue
		}
		if filter.Kind != "" && request.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && request.Status != filter.Status {
			continue
		}
		if filter.MeetDate != "" && request.MeetDate != filter.MeetDate {
			continue
		}
		if filter.ActiveOnly && !request.Status.Active() {
			continue
		}
		out = append(out, request)
	}
	return out, nil
}

type userDirectoryStub struct {
	users map[string]persistence.User
}

func newUserDirectoryStub() *userDirectoryStub {
	campus := map[string]persistence.User{
		"student-1":   {ID: "student-1", Role: counseling.RoleStudent, Active: true},
		"student-2":   {ID: "student-2", Role: counseling.RoleStudent, Active: true},
		"counselor-1": {ID: "counselor-1", Role: counseling.RoleCounselor, Active: true},
		"consultant-1": {ID: "consultant-1", Role: counseling.RoleConsultant, Active: true},
		"retired-1":   {ID: "retired-1", Role: counseling.RoleCounselor, Active: false},
	}
	return &userDirectoryStub{users: campus}
}

func (s *userDirectoryStub) GetUser(_ context.Context, id string) (persistence.User, error) {
	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (s *userDirectoryStub) ListStaff(_ context.Context) ([]persistence.User, error) {
	var out []persistence.User
	for _, id := range []string{"consultant-1", "counselor-1"} {
		out = append(out, s.users[id])
	}
	return out, nil
}

type invalidatorStub struct {
	calls []string
}

func (s *invalidatorStub) InvalidateDay(date, staffID string) {
	s.calls = append(s.calls, date+"|"+staffID)
}

type publisherStub struct {
	events []RequestEvent
	err    error
}

func (s *publisherStub) PublishRequestEvent(_ context.Context, event RequestEvent) error {
	s.events = append(s.events, event)
	return s.err
}

// testClock is a Monday morning inside business hours: 2026-01-05 09:00 local.
var testLocation = time.FixedZone("PST", 8*60*60)

func testClock() time.Time {
	return time.Date(2026, 1, 5, 9, 0, 0, 0, testLocation)
}

func testPolicy() *calendar.Policy {
	return calendar.NewPolicy(calendar.Config{
		Location: testLocation,
		Holidays: []string{"2026-01-14"},
	})
}

func newTestRequestService(store *requestStoreStub) *RequestService {
	counter := 0
	return NewRequestService(store, newUserDirectoryStub(), testPolicy(), func() string {
		counter++
		return fmt.Sprintf("req-%d", counter)
	}, testClock)
}

func validMeetInput() MeetInput {
	return MeetInput{
		SessionMode: counseling.SessionModeOnline,
		Reason:      "exam anxiety",
		MeetDate:    "2026-01-12",
		MeetTime:    "10:00",
		StaffID:     "counselor-1",
	}
}

func TestRequestService_CreateAsk(t *testing.T) {
	t.Parallel()

	t.Run("persists a pending question", func(t *testing.T) {
		t.Parallel()

		store := newRequestStoreStub()
		svc := newTestRequestService(store)

		result, err := svc.CreateAsk(context.Background(), CreateAskParams{
			Principal: Principal{UserID: "student-1", Role: counseling.RoleStudent},
			Input:     AskInput{Topic: "grades", Message: "  I need advice.  ", Anonymous: true},
		})
		if err != nil {
			t.Fatalf("CreateAsk failed: %v", err)
		}
		if result.Status != counseling.StatusPending {
			t.Fatalf("expected pending status, got %s", result.Status)
		}
		if result.Message != "I need advice." {
			t.Fatalf("expected trimmed message, got %q", result.Message)
		}
		if !result.Anonymous {
			t.Fatal("expected anonymous flag to persist")
		}
	})

	t.Run("rejects empty fields", func(t *testing.T) {
		t.Parallel()

		svc := newTestRequestService(newRequestStoreStub())
		_, err := svc.CreateAsk(context.Background(), CreateAskParams{
			Principal: Principal{UserID: "student-1", Role: counseling.RoleStudent},
			Input:     AskInput{Topic: " ", Message: ""},
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["topic"]; !ok {
			t.Fatal("expected topic field error")
		}
		if _, ok := vErr.FieldErrors["message"]; !ok {
			t.Fatal("expected message field error")
		}
	})
}

func TestRequestService_CreateMeet(t *testing.T) {
	t.Parallel()

	student := Principal{UserID: "student-1", Role: counseling.RoleStudent}

	t.Run("books an open slot", func(t *testing.T) {
		t.Parallel()

		store := newRequestStoreStub()
		svc := newTestRequestService(store)
		invalidator := &invalidatorStub{}
		svc.SetAvailabilityInvalidator(invalidator)
		publisher := &publisherStub{}
		svc.SetEventPublisher(publisher)

		result, err := svc.CreateMeet(context.Background(), CreateMeetParams{Principal: student, Input: validMeetInput()})
		if err != nil {
			t.Fatalf("CreateMeet failed: %v", err)
		}
		if result.Status != counseling.StatusPending {
			t.Fatalf("expected pending status, got %s", result.Status)
		}
		if len(invalidator.calls) != 1 || invalidator.calls[0] != "2026-01-12|counselor-1" {
			t.Fatalf("expected availability invalidation, got %v", invalidator.calls)
		}
		if len(publisher.events) != 1 || publisher.events[0].Type != EventRequestCreated {
			t.Fatalf("expected created event, got %v", publisher.events)
		}
	})

	t.Run("second booking of the same slot loses", func(t *testing.T) {
		t.Parallel()

		store := newRequestStoreStub()
		svc := newTestRequestService(store)

		if _, err := svc.CreateMeet(context.Background(), CreateMeetParams{Principal: student, Input: validMeetInput()}); err != nil {
			t.Fatalf("first booking failed: %v", err)
		}

		other := Principal{UserID: "student-2", Role: counseling.RoleStudent}
		_, err := svc.CreateMeet(context.Background(), CreateMeetParams{Principal: other, Input: validMeetInput()})
		if !errors.Is(err, ErrSlotTaken) {
			t.Fatalf("expected ErrSlotTaken, got %v", err)
		}
	})

	t.Run("requires a staff member before policy checks", func(t *testing.T) {
		t.Parallel()

		svc := newTestRequestService(newRequestStoreStub())
		input := validMeetInput()
		input.StaffID = ""
		input.MeetDate = "2026-01-17" // also a weekend; missing staff wins

		_, err := svc.CreateMeet(context.Background(), CreateMeetParams{Principal: student, Input: input})
		if !errors.Is(err, ErrMissingStaff) {
			t.Fatalf("expected ErrMissingStaff, got %v", err)
		}
	})

	t.Run("rejects non-bookable staff", func(t *testing.T) {
		t.Parallel()

		svc := newTestRequestService(newRequestStoreStub())
		for _, staffID := range []string{"student-2", "retired-1", "nobody"} {
			input := validMeetInput()
			input.StaffID = staffID

			_, err := svc.CreateMeet(context.Background(), CreateMeetParams{Principal: student, Input: input})
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("staff %s: expected ValidationError, got %v", staffID, err)
			}
			if _, ok := vErr.FieldErrors["staff_id"]; !ok {
				t.Fatalf("staff %s: expected staff_id field error", staffID)
			}
		}
	})

	t.Run("policy rejections carry the failed rule", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			name   string
			date   string
			at     string
			reason calendar.Reason
		}{
			{"weekend", "2026-01-17", "10:00", calendar.ReasonNonWorkingDay},
			{"holiday", "2026-01-14", "10:00", calendar.ReasonHoliday},
			{"past date", "2026-01-02", "10:00", calendar.ReasonPastDate},
			{"before opening", "2026-01-12", "07:30", calendar.ReasonOutsideHours},
			{"off grid", "2026-01-12", "10:15", calendar.ReasonMisalignedTime},
		}

		svc := newTestRequestService(newRequestStoreStub())
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				input := validMeetInput()
				input.MeetDate = tc.date
				input.MeetTime = tc.at

				_, err := svc.CreateMeet(context.Background(), CreateMeetParams{Principal: student, Input: input})
				var pErr *PolicyError
				if !errors.As(err, &pErr) {
					t.Fatalf("expected PolicyError, got %v", err)
				}
				if pErr.Reason != tc.reason {
					t.Fatalf("expected reason %s, got %s", tc.reason, pErr.Reason)
				}
			})
		}
	})
}

func TestRequestService_ApprovalFlow(t *testing.T) {
	t.Parallel()

	student := Principal{UserID: "student-1", Role: counseling.RoleStudent}
	counselor := Principal{UserID: "counselor-1", Role: counseling.RoleCounselor}

	bookMeet := func(t *testing.T, svc *RequestService) CounselingRequest {
		t.Helper()
		result, err := svc.CreateMeet(context.Background(), CreateMeetParams{Principal: student, Input: validMeetInput()})
		if err != nil {
			t.Fatalf("CreateMeet failed: %v", err)
		}
		return result
	}

	t.Run("approve online session requires meeting link", func(t *testing.T) {
		t.Parallel()

		svc := newTestRequestService(newRequestStoreStub())
		booked := bookMeet(t, svc)

		_, err := svc.Approve(context.Background(), ApproveParams{Principal: counselor, RequestID: booked.ID})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}

		approved, err := svc.Approve(context.Background(), ApproveParams{
			Principal:   counselor,
			RequestID:   booked.ID,
			MeetingLink: "https://meet.campus.edu/abc",
		})
		if err != nil {
			t.Fatalf("Approve failed: %v", err)
		}
		if approved.Status != counseling.StatusApproved {
			t.Fatalf("expected approved, got %s", approved.Status)
		}
		if approved.MeetingLink == nil {
			t.Fatal("expected meeting link to be stored")
		}
	})

	t.Run("approve twice is rejected", func(t *testing.T) {
		t.Parallel()

		svc := newTestRequestService(newRequestStoreStub())
		booked := bookMeet(t, svc)

		if _, err := svc.Approve(context.Background(), ApproveParams{Principal: counselor, RequestID: booked.ID, MeetingLink: "https://meet"}); err != nil {
			t.Fatalf("Approve failed: %v", err)
		}
		_, err := svc.Approve(context.Background(), ApproveParams{Principal: counselor, RequestID: booked.ID, MeetingLink: "https://meet"})
		if !errors.Is(err, counseling.ErrInvalidStatus) {
			t.Fatalf("expected ErrInvalidStatus, got %v", err)
		}
	})

	t.Run("approve accepts a pending question", func(t *testing.T) {
		t.Parallel()

		svc := newTestRequestService(newRequestStoreStub())
		asked, err := svc.CreateAsk(context.Background(), CreateAskParams{
			Principal: student,
			Input:     AskInput{Topic: "grades", Message: "How do I appeal?"},
		})
		if err != nil {
			t.Fatalf("CreateAsk failed: %v", err)
		}

		approved, err := svc.Approve(context.Background(), ApproveParams{Principal: counselor, RequestID: asked.ID})
		if err != nil {
			t.Fatalf("Approve on question failed: %v", err)
		}
		if approved.Status != counseling.StatusApproved {
			t.Fatalf("expected approved, got %s", approved.Status)
		}
		if approved.MeetingLink != nil || approved.Location != nil {
			t.Fatal("expected questions to carry no meeting details")
		}
	})

	t.Run("approving an answered question reports the status conflict", func(t *testing.T) {
		t.Parallel()

		svc := newTestRequestService(newRequestStoreStub())
		asked, err := svc.CreateAsk(context.Background(), CreateAskParams{
			Principal: student,
			Input:     AskInput{Topic: "housing", Message: "Can I switch dorms?"},
		})
		if err != nil {
			t.Fatalf("CreateAsk failed: %v", err)
		}

		// Answering a pending question moves it to approved.
		if _, err := svc.Reply(context.Background(), ReplyParams{
			Principal: counselor,
			RequestID: asked.ID,
			Reply:     "Yes, file the transfer form.",
		}); err != nil {
			t.Fatalf("Reply failed: %v", err)
		}

		_, err = svc.Approve(context.Background(), ApproveParams{Principal: counselor, RequestID: asked.ID})
		if !errors.Is(err, counseling.ErrInvalidStatus) {
			t.Fatalf("expected ErrInvalidStatus, got %v", err)
		}
	})

	t.Run("students cannot approve", func(t *testing.T) {
		t.Parallel()

		svc := newTestRequestService(newRequestStoreStub())
		booked := bookMeet(t, svc)

		_, err := svc.Approve(context.Background(), ApproveParams{Principal: student, RequestID: booked.ID, MeetingLink: "https://meet"})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("disapprove frees the slot and records the reason", func(t *testing.T) {
		t.Parallel()

		store := newRequestStoreStub()
		svc := newTestRequestService(store)
		invalidator := &invalidatorStub{}
		svc.SetAvailabilityInvalidator(invalidator)
		booked := bookMeet(t, svc)

		result, err := svc.Disapprove(context.Background(), DisapproveParams{
			Principal: counselor,
			RequestID: booked.ID,
			Reason:    "schedule conflict",
		})
		if err != nil {
			t.Fatalf("Disapprove failed: %v", err)
		}
		if result.Status != counseling.StatusDisapproved {
			t.Fatalf("expected disapproved, got %s", result.Status)
		}
		if result.DisapproveReason == nil || *result.DisapproveReason != "schedule conflict" {
			t.Fatalf("expected reason to be stored, got %v", result.DisapproveReason)
		}

		// The freed slot can be booked again.
		other := Principal{UserID: "student-2", Role: counseling.RoleStudent}
		if _, err := svc.CreateMeet(context.Background(), CreateMeetParams{Principal: other, Input: validMeetInput()}); err != nil {
			t.Fatalf("rebooking freed slot failed: %v", err)
		}
	})

	t.Run("complete stamps the completion time", func(t *testing.T) {
		t.Parallel()

		svc := newTestRequestService(newRequestStoreStub())
		booked := bookMeet(t, svc)

		if _, err := svc.Approve(context.Background(), ApproveParams{Principal: counselor, RequestID: booked.ID, MeetingLink: "https://meet"}); err != nil {
			t.Fatalf("Approve failed: %v", err)
		}

		result, err := svc.Complete(context.Background(), counselor, booked.ID)
		if err != nil {
			t.Fatalf("Complete failed: %v", err)
		}
		if result.Status != counseling.StatusCompleted {
			t.Fatalf("expected completed, got %s", result.Status)
		}
		if result.CompletedAt == nil || !result.CompletedAt.Equal(testClock()) {
			t.Fatalf("expected completion timestamp, got %v", result.CompletedAt)
		}
	})

	t.Run("cancel is owner-only and pending-only", func(t *testing.T) {
		t.Parallel()

		svc := newTestRequestService(newRequestStoreStub())
		booked := bookMeet(t, svc)

		other := Principal{UserID: "student-2", Role: counseling.RoleStudent}
		if _, err := svc.Cancel(context.Background(), other, booked.ID); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized for non-owner, got %v", err)
		}

		cancelled, err := svc.Cancel(context.Background(), student, booked.ID)
		if err != nil {
			t.Fatalf("Cancel failed: %v", err)
		}
		if cancelled.Status != counseling.StatusCancelled {
			t.Fatalf("expected cancelled, got %s", cancelled.Status)
		}

		if _, err := svc.Cancel(context.Background(), student, booked.ID); !errors.Is(err, counseling.ErrInvalidStatus) {
			t.Fatalf("expected ErrInvalidStatus for second cancel, got %v", err)
		}
	})
}

func TestRequestService_ReplyFlow(t *testing.T) {
	t.Parallel()

	student := Principal{UserID: "student-1", Role: counseling.RoleStudent}
	counselor := Principal{UserID: "counselor-1", Role: counseling.RoleCounselor}

	submitAsk := func(t *testing.T, svc *RequestService) CounselingRequest {
		t.Helper()
		result, err := svc.CreateAsk(context.Background(), CreateAskParams{
			Principal: student,
			Input:     AskInput{Topic: "stress", Message: "Please help."},
		})
		if err != nil {
			t.Fatalf("CreateAsk failed: %v", err)
		}
		return result
	}

	t.Run("reply approves a pending question", func(t *testing.T) {
		t.Parallel()

		svc := newTestRequestService(newRequestStoreStub())
		ask := submitAsk(t, svc)

		result, err := svc.Reply(context.Background(), ReplyParams{
			Principal: counselor,
			RequestID: ask.ID,
			Reply:     "Drop by room 12.",
		})
		if err != nil {
			t.Fatalf("Reply failed: %v", err)
		}
		if result.Status != counseling.StatusApproved {
			t.Fatalf("expected reply to approve, got %s", result.Status)
		}
		if result.Reply == nil || *result.Reply != "Drop by room 12." {
			t.Fatalf("expected reply text, got %v", result.Reply)
		}
		if result.RepliedAt == nil || !result.RepliedAt.Equal(testClock()) {
			t.Fatalf("expected reply timestamp, got %v", result.RepliedAt)
		}

		// Further replies keep the approved status.
		again, err := svc.Reply(context.Background(), ReplyParams{Principal: counselor, RequestID: ask.ID, Reply: "Any time."})
		if err != nil {
			t.Fatalf("second Reply failed: %v", err)
		}
		if again.Status != counseling.StatusApproved {
			t.Fatalf("expected approved after follow-up, got %s", again.Status)
		}
	})

	t.Run("reply on a meeting is a type error", func(t *testing.T) {
		t.Parallel()

		svc := newTestRequestService(newRequestStoreStub())
		booked, err := svc.CreateMeet(context.Background(), CreateMeetParams{Principal: student, Input: validMeetInput()})
		if err != nil {
			t.Fatalf("CreateMeet failed: %v", err)
		}

		_, err = svc.Reply(context.Background(), ReplyParams{Principal: counselor, RequestID: booked.ID, Reply: "hi"})
		if !errors.Is(err, counseling.ErrInvalidType) {
			t.Fatalf("expected ErrInvalidType, got %v", err)
		}
	})

	t.Run("thread status tags a question", func(t *testing.T) {
		t.Parallel()

		svc := newTestRequestService(newRequestStoreStub())
		ask := submitAsk(t, svc)

		result, err := svc.SetThreadStatus(context.Background(), ThreadStatusParams{
			Principal: counselor,
			RequestID: ask.ID,
			Status:    counseling.ThreadStatusUrgent,
		})
		if err != nil {
			t.Fatalf("SetThreadStatus failed: %v", err)
		}
		if result.ThreadStatus == nil || *result.ThreadStatus != counseling.ThreadStatusUrgent {
			t.Fatalf("expected urgent thread status, got %v", result.ThreadStatus)
		}
	})
}

func TestRequestService_Visibility(t *testing.T) {
	t.Parallel()

	student := Principal{UserID: "student-1", Role: counseling.RoleStudent}
	other := Principal{UserID: "student-2", Role: counseling.RoleStudent}
	counselor := Principal{UserID: "counselor-1", Role: counseling.RoleCounselor}

	store := newRequestStoreStub()
	svc := newTestRequestService(store)
	ctx := context.Background()

	anon, err := svc.CreateAsk(ctx, CreateAskParams{
		Principal: student,
		Input:     AskInput{Topic: "private", Message: "keep me hidden", Anonymous: true},
	})
	if err != nil {
		t.Fatalf("CreateAsk failed: %v", err)
	}
	if _, err := svc.CreateMeet(ctx, CreateMeetParams{Principal: other, Input: validMeetInput()}); err != nil {
		t.Fatalf("CreateMeet failed: %v", err)
	}

	t.Run("students see only their own requests", func(t *testing.T) {
		results, err := svc.List(ctx, ListRequestsParams{Principal: student})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(results) != 1 || results[0].ID != anon.ID {
			t.Fatalf("expected only own request, got %+v", results)
		}
	})

	t.Run("staff see everything including anonymous requesters", func(t *testing.T) {
		results, err := svc.List(ctx, ListRequestsParams{Principal: counselor})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 requests, got %d", len(results))
		}
		for _, result := range results {
			if result.ID == anon.ID && result.RequesterID != "student-1" {
				t.Fatalf("expected staff to see the requester, got %q", result.RequesterID)
			}
		}
	})

	t.Run("anonymous requesters stay hidden from other students", func(t *testing.T) {
		masked := svc.maskForViewer(persistence.Request{
			ID:          anon.ID,
			Kind:        counseling.KindAsk,
			Anonymous:   true,
			RequesterID: "student-1",
		}, other)
		if masked.RequesterID != "" {
			t.Fatalf("expected masked requester, got %q", masked.RequesterID)
		}
	})

	t.Run("requester sees their own identity on anonymous asks", func(t *testing.T) {
		got, err := svc.Get(ctx, student, anon.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.RequesterID != "student-1" {
			t.Fatalf("expected requester to see own id, got %q", got.RequesterID)
		}
	})

	t.Run("students cannot read other students' requests", func(t *testing.T) {
		if _, err := svc.Get(ctx, other, anon.ID); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}
