package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/counseling-intake/internal/application"
	"github.com/example/counseling-intake/internal/counseling"
)

type requestService interface {
	CreateAsk(ctx context.Context, params application.CreateAskParams) (application.CounselingRequest, error)
	CreateMeet(ctx context.Context, params application.CreateMeetParams) (application.CounselingRequest, error)
	Approve(ctx context.Context, params application.ApproveParams) (application.CounselingRequest, error)
	Disapprove(ctx context.Context, params application.DisapproveParams) (application.CounselingRequest, error)
	Cancel(ctx context.Context, principal application.Principal, requestID string) (application.CounselingRequest, error)
	Complete(ctx context.Context, principal application.Principal, requestID string) (application.CounselingRequest, error)
	Reply(ctx context.Context, params application.ReplyParams) (application.CounselingRequest, error)
	SetThreadStatus(ctx context.Context, params application.ThreadStatusParams) (application.CounselingRequest, error)
	Get(ctx context.Context, principal application.Principal, requestID string) (application.CounselingRequest, error)
	List(ctx context.Context, params application.ListRequestsParams) ([]application.CounselingRequest, error)
}

type RequestHandler struct {
	service   requestService
	responder responder
}

func NewRequestHandler(service requestService, logger *slog.Logger) *RequestHandler {
	return &RequestHandler{service: service, responder: newResponder(logger)}
}

func (h *RequestHandler) CreateAsk(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	created, err := h.service.CreateAsk(r.Context(), application.CreateAskParams{
		Principal: principal,
		Input: application.AskInput{
			Topic:     strings.TrimSpace(req.Topic),
			Message:   req.Message,
			Anonymous: req.Anonymous,
		},
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, requestResponse{Request: toRequestDTO(created)})
}

func (h *RequestHandler) CreateMeet(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req meetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	created, err := h.service.CreateMeet(r.Context(), application.CreateMeetParams{
		Principal: principal,
		Input: application.MeetInput{
			SessionMode: counseling.SessionMode(strings.TrimSpace(req.SessionMode)),
			Reason:      req.Reason,
			MeetDate:    strings.TrimSpace(req.MeetDate),
			MeetTime:    strings.TrimSpace(req.MeetTime),
			StaffID:     strings.TrimSpace(req.StaffID),
			Notes:       req.Notes,
		},
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, requestResponse{Request: toRequestDTO(created)})
}

func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	requests, err := h.service.List(r.Context(), buildListRequestsParams(r.URL.Query(), principal))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRequestsResponse{Requests: toRequestDTOs(requests)})
}

func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	requestID, ok := RequestIDFromContext(r.Context())
	if !ok || strings.TrimSpace(requestID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRequestID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	record, err := h.service.Get(r.Context(), principal, requestID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, requestResponse{Request: toRequestDTO(record)})
}

// Action dispatches the lifecycle sub-resource named in the path, such as
// approve or cancel, for the request already resolved onto the context.
func (h *RequestHandler) Action(w http.ResponseWriter, r *http.Request, action string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	requestID, ok := RequestIDFromContext(r.Context())
	if !ok || strings.TrimSpace(requestID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRequestID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var (
		record application.CounselingRequest
		err    error
	)

	switch action {
	case "approve":
		var req approveRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
		record, err = h.service.Approve(r.Context(), application.ApproveParams{
			Principal:   principal,
			RequestID:   requestID,
			MeetingLink: strings.TrimSpace(req.MeetingLink),
			Location:    strings.TrimSpace(req.Location),
		})
	case "disapprove":
		var req disapproveRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
		record, err = h.service.Disapprove(r.Context(), application.DisapproveParams{
			Principal: principal,
			RequestID: requestID,
			Reason:    strings.TrimSpace(req.Reason),
		})
	case "cancel":
		record, err = h.service.Cancel(r.Context(), principal, requestID)
	case "complete":
		record, err = h.service.Complete(r.Context(), principal, requestID)
	case "reply":
		var req replyRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
		record, err = h.service.Reply(r.Context(), application.ReplyParams{
			Principal: principal,
			RequestID: requestID,
			Reply:     req.Reply,
		})
	case "thread-status":
		var req threadStatusRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
		record, err = h.service.SetThreadStatus(r.Context(), application.ThreadStatusParams{
			Principal: principal,
			RequestID: requestID,
			Status:    counseling.ThreadStatus(strings.TrimSpace(req.Status)),
		})
	default:
		http.NotFound(w, r)
		return
	}

	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, requestResponse{Request: toRequestDTO(record)})
}

func buildListRequestsParams(values url.Values, principal application.Principal) application.ListRequestsParams {
	params := application.ListRequestsParams{Principal: principal}

	if mine := strings.TrimSpace(values.Get("mine")); mine == "true" || mine == "1" {
		params.Mine = true
	}
	if kind := strings.TrimSpace(values.Get("kind")); kind != "" {
		params.Kind = counseling.Kind(strings.ToUpper(kind))
	}
	if status := strings.TrimSpace(values.Get("status")); status != "" {
		params.Status = counseling.Status(strings.ToLower(status))
	}
	if staffID := strings.TrimSpace(values.Get("staff_id")); staffID != "" {
		params.StaffID = staffID
	}
	if past := strings.TrimSpace(values.Get("past")); past == "true" || past == "1" {
		params.PastOnly = true
	}

	return params
}

type askRequest struct {
	Topic     string `json:"topic"`
	Message   string `json:"message"`
	Anonymous bool   `json:"anonymous"`
}

type meetRequest struct {
	SessionMode string `json:"session_mode"`
	Reason      string `json:"reason"`
	MeetDate    string `json:"meet_date"`
	MeetTime    string `json:"meet_time"`
	StaffID     string `json:"staff_id"`
	Notes       string `json:"notes"`
}

type approveRequest struct {
	MeetingLink string `json:"meeting_link"`
	Location    string `json:"location"`
}

type disapproveRequest struct {
	Reason string `json:"reason"`
}

type replyRequest struct {
	Reply string `json:"reply"`
}

type threadStatusRequest struct {
	Status string `json:"status"`
}

type requestResponse struct {
	Request requestDTO `json:"request"`
}

type listRequestsResponse struct {
	Requests []requestDTO `json:"requests"`
}

type requestDTO struct {
	ID          string `json:"id"`
	RequesterID string `json:"requester_id,omitempty"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`

	Topic        string  `json:"topic,omitempty"`
	Message      string  `json:"message,omitempty"`
	Anonymous    bool    `json:"anonymous,omitempty"`
	Reply        *string `json:"reply,omitempty"`
	RepliedAt    *string `json:"replied_at,omitempty"`
	ThreadStatus *string `json:"thread_status,omitempty"`

	SessionMode      string  `json:"session_mode,omitempty"`
	Reason           string  `json:"reason,omitempty"`
	MeetDate         string  `json:"meet_date,omitempty"`
	MeetTime         string  `json:"meet_time,omitempty"`
	StaffID          string  `json:"staff_id,omitempty"`
	Notes            string  `json:"notes,omitempty"`
	MeetingLink      *string `json:"meeting_link,omitempty"`
	Location         *string `json:"location,omitempty"`
	DisapproveReason *string `json:"disapprove_reason,omitempty"`
	CompletedAt      *string `json:"completed_at,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toRequestDTO(record application.CounselingRequest) requestDTO {
	dto := requestDTO{
		ID:               record.ID,
		RequesterID:      record.RequesterID,
		Kind:             string(record.Kind),
		Status:           string(record.Status),
		Topic:            record.Topic,
		Message:          record.Message,
		Anonymous:        record.Anonymous,
		Reply:            record.Reply,
		RepliedAt:        formatTimePtr(record.RepliedAt),
		SessionMode:      string(record.SessionMode),
		Reason:           record.Reason,
		MeetDate:         record.MeetDate,
		MeetTime:         record.MeetTime,
		StaffID:          record.StaffID,
		Notes:            record.Notes,
		MeetingLink:      record.MeetingLink,
		Location:         record.Location,
		DisapproveReason: record.DisapproveReason,
		CompletedAt:      formatTimePtr(record.CompletedAt),
		CreatedAt:        record.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:        record.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if record.ThreadStatus != nil {
		status := string(*record.ThreadStatus)
		dto.ThreadStatus = &status
	}
	return dto
}

func toRequestDTOs(records []application.CounselingRequest) []requestDTO {
	if len(records) == 0 {
		return nil
	}
	out := make([]requestDTO, 0, len(records))
	for _, record := range records {
		out = append(out, toRequestDTO(record))
	}
	return out
}

func formatTimePtr(ts *time.Time) *string {
	if ts == nil {
		return nil
	}
	formatted := ts.UTC().Format(time.RFC3339Nano)
	return &formatted
}
