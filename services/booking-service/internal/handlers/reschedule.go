package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/handybook/handybook/services/booking-service/internal/model"
	"github.com/handybook/handybook/services/booking-service/internal/schedule"
)

// publicAppointmentView is the customer-facing shape: no internal id, no
// contact or address details beyond what the customer needs to recognise
// their own booking.
type publicAppointmentView struct {
	FirstName   string          `json:"first_name"`
	Date        string          `json:"date"`
	Time        string          `json:"time"`
	TimeLabel   string          `json:"time_label"`
	Status      string          `json:"status"`
	Description string          `json:"description,omitempty"`
	Slots       []schedule.Slot `json:"available_slots"`
}

// PublicView serves the reschedule page data for a customer following their
// emailed link. Declined appointments report not found, so a stale link
// cannot resurrect a rejected request.
func (h *AppointmentHandler) PublicView(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.GetByToken(r.Context(), r.PathValue("token"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	slots, err := h.svc.AvailableSlots(r.Context(), appt.RequestedDate, appt.ID)
	if err != nil {
		h.logger.Error("slot lookup failed", "appointment_id", appt.ID, "err", err)
		writeServiceError(w, err)
		return
	}
	if slots == nil {
		slots = []schedule.Slot{}
	}

	writeJSON(w, http.StatusOK, publicAppointmentView{
		FirstName:   appt.CustomerFirstName,
		Date:        appt.RequestedDate.Format(model.DateLayout),
		Time:        appt.RequestedTime.String(),
		TimeLabel:   appt.RequestedTime.Label(),
		Status:      string(appt.Status),
		Description: appt.Description,
		Slots:       slots,
	})
}

// PublicReschedule moves the appointment identified by its token to a new
// slot and puts it back into pending for re-approval.
func (h *AppointmentHandler) PublicReschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	date, at, msg := parseSlotFields(req.Date, req.Time)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	appt, err := h.svc.RescheduleByToken(r.Context(), r.PathValue("token"), date, at)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, publicAppointmentView{
		FirstName: appt.CustomerFirstName,
		Date:      appt.RequestedDate.Format(model.DateLayout),
		Time:      appt.RequestedTime.String(),
		TimeLabel: appt.RequestedTime.Label(),
		Status:    string(appt.Status),
	})
}
