package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/counseling-intake/internal/application"
)

type availabilityService interface {
	Resolve(ctx context.Context, params application.AvailabilityParams) (application.DayAvailability, error)
}

type AvailabilityHandler struct {
	service   availabilityService
	responder responder
}

func NewAvailabilityHandler(service availabilityService, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{service: service, responder: newResponder(logger)}
}

// Resolve answers a day availability query. The date parameter is required;
// an empty staff_id resolves the whole roster.
func (h *AvailabilityHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingDate)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	staffID := strings.TrimSpace(r.URL.Query().Get("staff_id"))

	day, err := h.service.Resolve(r.Context(), application.AvailabilityParams{
		Principal: principal,
		Date:      date,
		StaffID:   staffID,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toAvailabilityResponse(day, staffID))
}

type availabilityResponse struct {
	Date    string    `json:"date"`
	StaffID string    `json:"staff_id,omitempty"`
	Slots   []slotDTO `json:"slots"`
}

type slotDTO struct {
	Time         string   `json:"time"`
	Open         bool     `json:"open"`
	Reason       string   `json:"reason,omitempty"`
	OpenStaffIDs []string `json:"open_staff_ids,omitempty"`
}

func toAvailabilityResponse(day application.DayAvailability, staffID string) availabilityResponse {
	slots := make([]slotDTO, 0, len(day.Slots))
	for _, slot := range day.Slots {
		slots = append(slots, slotDTO{
			Time:         slot.Time,
			Open:         slot.Open,
			Reason:       slot.Reason,
			OpenStaffIDs: append([]string(nil), slot.OpenStaffIDs...),
		})
	}
	return availabilityResponse{Date: day.Date, StaffID: staffID, Slots: slots}
}
