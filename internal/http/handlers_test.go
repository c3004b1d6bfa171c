package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/example/counseling-intake/internal/application"
	"github.com/example/counseling-intake/internal/calendar"
	"github.com/example/counseling-intake/internal/counseling"
)

type stubAuthService struct {
	result    application.AuthenticateResult
	authErr   error
	revoked   []string
	revokeErr error
}

func (s *stubAuthService) Authenticate(_ context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	if s.authErr != nil {
		return application.AuthenticateResult{}, s.authErr
	}
	return s.result, nil
}

func (s *stubAuthService) RevokeSession(_ context.Context, token string) error {
	if s.revokeErr != nil {
		return s.revokeErr
	}
	s.revoked = append(s.revoked, token)
	return nil
}

type stubRequestService struct {
	record     application.CounselingRequest
	records    []application.CounselingRequest
	err        error
	lastAction string
	lastParams any
}

func (s *stubRequestService) CreateAsk(_ context.Context, params application.CreateAskParams) (application.CounselingRequest, error) {
	s.lastAction, s.lastParams = "ask", params
	return s.record, s.err
}

func (s *stubRequestService) CreateMeet(_ context.Context, params application.CreateMeetParams) (application.CounselingRequest, error) {
	s.lastAction, s.lastParams = "meet", params
	return s.record, s.err
}

func (s *stubRequestService) Approve(_ context.Context, params application.ApproveParams) (application.CounselingRequest, error) {
	s.lastAction, s.lastParams = "approve", params
	return s.record, s.err
}

func (s *stubRequestService) Disapprove(_ context.Context, params application.DisapproveParams) (application.CounselingRequest, error) {
	s.lastAction, s.lastParams = "disapprove", params
	return s.record, s.err
}

func (s *stubRequestService) Cancel(_ context.Context, _ application.Principal, requestID string) (application.CounselingRequest, error) {
	s.lastAction, s.lastParams = "cancel", requestID
	return s.record, s.err
}

func (s *stubRequestService) Complete(_ context.Context, _ application.Principal, requestID string) (application.CounselingRequest, error) {
	s.lastAction, s.lastParams = "complete", requestID
	return s.record, s.err
}

func (s *stubRequestService) Reply(_ context.Context, params application.ReplyParams) (application.CounselingRequest, error) {
	s.lastAction, s.lastParams = "reply", params
	return s.record, s.err
}

func (s *stubRequestService) SetThreadStatus(_ context.Context, params application.ThreadStatusParams) (application.CounselingRequest, error) {
	s.lastAction, s.lastParams = "thread-status", params
	return s.record, s.err
}

func (s *stubRequestService) Get(_ context.Context, _ application.Principal, requestID string) (application.CounselingRequest, error) {
	s.lastAction, s.lastParams = "get", requestID
	return s.record, s.err
}

func (s *stubRequestService) List(_ context.Context, params application.ListRequestsParams) ([]application.CounselingRequest, error) {
	s.lastAction, s.lastParams = "list", params
	return s.records, s.err
}

type stubAvailabilityService struct {
	day application.DayAvailability
	err error
}

func (s *stubAvailabilityService) Resolve(_ context.Context, params application.AvailabilityParams) (application.DayAvailability, error) {
	if s.err != nil {
		return application.DayAvailability{}, s.err
	}
	return s.day, nil
}

func newTestRouter(t *testing.T, requests *stubRequestService, availability *stubAvailabilityService, auth *stubAuthService, principal application.Principal) http.Handler {
	t.Helper()

	guard := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}

	cfg := RouterConfig{SessionMiddleware: guard}
	if requests != nil {
		cfg.Requests = NewRequestHandler(requests, nil)
	}
	if availability != nil {
		cfg.Availability = NewAvailabilityHandler(availability, nil)
	}
	if auth != nil {
		cfg.Auth = NewAuthHandler(auth, nil)
	}
	return NewRouter(cfg)
}

func decodeErrorResponse(t *testing.T, recorder *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func TestAuthHandlers(t *testing.T) {
	t.Parallel()

	t.Run("login issues session token via cookie and header", func(t *testing.T) {
		t.Parallel()

		expires := time.Date(2026, time.January, 6, 9, 0, 0, 0, time.UTC)
		auth := &stubAuthService{result: application.AuthenticateResult{
			User:    application.User{ID: "student-1", DisplayName: "Student One", Role: counseling.RoleStudent},
			Session: application.Session{Token: "issued-token", ExpiresAt: expires},
		}}
		router := newTestRouter(t, nil, nil, auth, application.Principal{})

		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"Student@campus.edu","password":"secret"}`))
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body)
		}
		if got := recorder.Header().Get("X-Session-Token"); got != "issued-token" {
			t.Fatalf("expected token header, got %q", got)
		}
		cookieFound := false
		for _, cookie := range recorder.Result().Cookies() {
			if cookie.Name == "session_token" && cookie.Value == "issued-token" {
				cookieFound = true
			}
		}
		if !cookieFound {
			t.Fatal("expected session cookie to be set")
		}

		var resp loginResponse
		if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode login response: %v", err)
		}
		if resp.Token != "issued-token" || resp.User.Role != "student" {
			t.Fatalf("unexpected login response: %+v", resp)
		}
	})

	t.Run("login rejects bad credentials with a stable error code", func(t *testing.T) {
		t.Parallel()

		auth := &stubAuthService{authErr: application.ErrInvalidCredentials}
		router := newTestRouter(t, nil, nil, auth, application.Principal{})

		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"x@campus.edu","password":"bad"}`))
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
		if resp := decodeErrorResponse(t, recorder); resp.ErrorCode != "AUTH_INVALID_CREDENTIALS" {
			t.Fatalf("unexpected error code: %q", resp.ErrorCode)
		}
	})

	t.Run("logout revokes the presented token and clears the cookie", func(t *testing.T) {
		t.Parallel()

		auth := &stubAuthService{}
		router := newTestRouter(t, nil, nil, auth, application.Principal{})

		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/logout", nil)
		req.Header.Set("Authorization", "Bearer live-token")
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", recorder.Code)
		}
		if len(auth.revoked) != 1 || auth.revoked[0] != "live-token" {
			t.Fatalf("expected token revocation, got %v", auth.revoked)
		}
	})

	t.Run("logout without a token is unauthorized", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(t, nil, nil, &stubAuthService{}, application.Principal{})

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/logout", nil))

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
	})
}

func TestRequestHandlers(t *testing.T) {
	t.Parallel()

	student := application.Principal{UserID: "student-1", Role: counseling.RoleStudent}
	staff := application.Principal{UserID: "counselor-1", Role: counseling.RoleCounselor}

	t.Run("submitting a question returns the created record", func(t *testing.T) {
		t.Parallel()

		svc := &stubRequestService{record: application.CounselingRequest{
			ID: "req-1", RequesterID: "student-1", Kind: counseling.KindAsk, Status: counseling.StatusPending,
			Topic: "Exams", CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}}
		router := newTestRouter(t, svc, nil, nil, student)

		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/requests/ask", strings.NewReader(`{"topic":"Exams","message":"I am worried about finals.","anonymous":true}`))
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body)
		}
		params, ok := svc.lastParams.(application.CreateAskParams)
		if !ok {
			t.Fatalf("unexpected params type %T", svc.lastParams)
		}
		if !params.Input.Anonymous || params.Input.Topic != "Exams" {
			t.Fatalf("unexpected input: %+v", params.Input)
		}
		if params.Principal.UserID != "student-1" {
			t.Fatalf("expected principal from context, got %+v", params.Principal)
		}
	})

	t.Run("booking failures map to stable error codes", func(t *testing.T) {
		t.Parallel()

		vErr := &application.ValidationError{FieldErrors: map[string]string{"meet_date": "meeting date is required"}}

		cases := []struct {
			name       string
			err        error
			wantStatus int
			wantCode   string
			wantReason string
		}{
			{"slot conflict", application.ErrSlotTaken, http.StatusConflict, "SLOT_TAKEN", ""},
			{"closed day", &application.PolicyError{Reason: calendar.ReasonHoliday}, http.StatusUnprocessableEntity, "INVALID_POLICY", "HOLIDAY"},
			{"missing staff", application.ErrMissingStaff, http.StatusUnprocessableEntity, "MISSING_STAFF", ""},
			{"field errors", vErr, http.StatusUnprocessableEntity, "VALIDATION", ""},
			{"bad transition", counseling.ErrInvalidStatus, http.StatusConflict, "INVALID_STATUS", ""},
			{"wrong kind", counseling.ErrInvalidType, http.StatusConflict, "INVALID_TYPE", ""},
			{"forbidden", application.ErrUnauthorized, http.StatusForbidden, "AUTH_FORBIDDEN", ""},
			{"unknown id", application.ErrNotFound, http.StatusNotFound, "NOT_FOUND", ""},
		}

		for _, tc := range cases {
			tc := tc
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				svc := &stubRequestService{err: tc.err}
				router := newTestRouter(t, svc, nil, nil, student)

				recorder := httptest.NewRecorder()
				req := httptest.NewRequest(http.MethodPost, "/requests/meet", strings.NewReader(`{"session_mode":"online","reason":"advice","meet_date":"2026-01-12","meet_time":"10:00","staff_id":"counselor-1"}`))
				router.ServeHTTP(recorder, req)

				if recorder.Code != tc.wantStatus {
					t.Fatalf("expected %d, got %d: %s", tc.wantStatus, recorder.Code, recorder.Body)
				}
				resp := decodeErrorResponse(t, recorder)
				if resp.ErrorCode != tc.wantCode {
					t.Fatalf("expected code %q, got %q", tc.wantCode, resp.ErrorCode)
				}
				if resp.Reason != tc.wantReason {
					t.Fatalf("expected reason %q, got %q", tc.wantReason, resp.Reason)
				}
				if tc.wantCode == "VALIDATION" && resp.Errors["meet_date"] == "" {
					t.Fatalf("expected field errors, got %v", resp.Errors)
				}
			})
		}
	})

	t.Run("list maps query filters onto service params", func(t *testing.T) {
		t.Parallel()

		svc := &stubRequestService{}
		router := newTestRouter(t, svc, nil, nil, staff)

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/requests?mine=true&kind=meet&status=pending&staff_id=counselor-1&past=1", nil))

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		params, ok := svc.lastParams.(application.ListRequestsParams)
		if !ok {
			t.Fatalf("unexpected params type %T", svc.lastParams)
		}
		if !params.Mine || params.Kind != counseling.KindMeet || params.Status != counseling.StatusPending {
			t.Fatalf("unexpected params: %+v", params)
		}
		if params.StaffID != "counselor-1" || !params.PastOnly {
			t.Fatalf("unexpected params: %+v", params)
		}
	})

	t.Run("lifecycle actions route to the matching service call", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			path string
			body string
			want string
		}{
			{"/requests/req-1/approve", `{"meeting_link":"https://meet.example.com/x"}`, "approve"},
			{"/requests/req-1/disapprove", `{"reason":"slot no longer available"}`, "disapprove"},
			{"/requests/req-1/cancel", `{}`, "cancel"},
			{"/requests/req-1/complete", `{}`, "complete"},
			{"/requests/req-1/reply", `{"reply":"see attached guidance"}`, "reply"},
			{"/requests/req-1/thread-status", `{"status":"urgent"}`, "thread-status"},
		}

		for _, tc := range cases {
			tc := tc
			t.Run(tc.want, func(t *testing.T) {
				t.Parallel()

				svc := &stubRequestService{record: application.CounselingRequest{ID: "req-1"}}
				router := newTestRouter(t, svc, nil, nil, staff)

				recorder := httptest.NewRecorder()
				router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body)))

				if recorder.Code != http.StatusOK {
					t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body)
				}
				if svc.lastAction != tc.want {
					t.Fatalf("expected action %q, got %q", tc.want, svc.lastAction)
				}
			})
		}
	})

	t.Run("fetching by id uses the path segment", func(t *testing.T) {
		t.Parallel()

		svc := &stubRequestService{record: application.CounselingRequest{ID: "req-9"}}
		router := newTestRouter(t, svc, nil, nil, student)

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/requests/req-9", nil))

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if svc.lastAction != "get" || svc.lastParams != "req-9" {
			t.Fatalf("unexpected dispatch: %s %v", svc.lastAction, svc.lastParams)
		}
	})

	t.Run("unknown lifecycle action is a 404", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(t, &stubRequestService{}, nil, nil, staff)

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/requests/req-1/escalate", strings.NewReader(`{}`)))

		if recorder.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", recorder.Code)
		}
	})
}

func TestAvailabilityHandler(t *testing.T) {
	t.Parallel()

	student := application.Principal{UserID: "student-1", Role: counseling.RoleStudent}

	t.Run("requires a date parameter", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(t, nil, &stubAvailabilityService{}, nil, student)

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/availability", nil))

		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", recorder.Code)
		}
	})

	t.Run("serializes the resolved day", func(t *testing.T) {
		t.Parallel()

		svc := &stubAvailabilityService{day: application.DayAvailability{
			Date: "2026-01-12",
			Slots: []application.Slot{
				{Time: "08:00", Open: true, OpenStaffIDs: []string{"counselor-1"}},
				{Time: "08:30", Open: false, Reason: "SLOT_TAKEN"},
			},
		}}
		router := newTestRouter(t, nil, svc, nil, student)

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/availability?date=2026-01-12&staff_id=counselor-1", nil))

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		var resp availabilityResponse
		if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Date != "2026-01-12" || len(resp.Slots) != 2 {
			t.Fatalf("unexpected payload: %+v", resp)
		}
		if resp.StaffID != "counselor-1" {
			t.Fatalf("expected the staff filter to be echoed, got %q", resp.StaffID)
		}
		if resp.Slots[1].Reason != "SLOT_TAKEN" || resp.Slots[1].Open {
			t.Fatalf("unexpected closed slot: %+v", resp.Slots[1])
		}
	})
}

func TestSlotConflictCounter(t *testing.T) {
	student := application.Principal{UserID: "student-1", Role: counseling.RoleStudent}
	svc := &stubRequestService{err: application.ErrSlotTaken}
	router := newTestRouter(t, svc, nil, nil, student)

	before := testutil.ToFloat64(slotConflictsTotal)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/requests/meet", strings.NewReader(`{"session_mode":"online","reason":"advice","meet_date":"2026-01-12","meet_time":"10:00","staff_id":"counselor-1"}`))
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", recorder.Code)
	}
	if delta := testutil.ToFloat64(slotConflictsTotal) - before; delta < 1 {
		t.Fatalf("expected the conflict counter to advance, delta = %v", delta)
	}

	// The counter is part of the collectors NewMetrics attaches.
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	found := false
	for _, family := range families {
		if family.GetName() == "intake_booking_slot_conflicts_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("intake_booking_slot_conflicts_total was not registered")
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	router := NewRouter(RouterConfig{})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if body := strings.TrimSpace(recorder.Body.String()); body != `{"status":"ok"}` {
		t.Fatalf("unexpected body: %s", body)
	}
}
