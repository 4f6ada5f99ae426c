package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/handybook/handybook/services/booking-service/internal/model"
	"github.com/handybook/handybook/services/booking-service/internal/schedule"
)

// Slots serves open slots for one day. The optional exclude parameter names
// an appointment whose own accepted slot should still be offered, so a
// customer rescheduling can keep their current time.
func (h *AppointmentHandler) Slots(w http.ResponseWriter, r *http.Request) {
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := time.ParseInLocation(model.DateLayout, dateStr, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	excludeID := strings.TrimSpace(r.URL.Query().Get("exclude"))

	slots, err := h.svc.AvailableSlots(r.Context(), date, excludeID)
	if err != nil {
		h.logger.Error("slot lookup failed", "date", dateStr, "err", err)
		writeServiceError(w, err)
		return
	}
	if slots == nil {
		slots = []schedule.Slot{}
	}
	writeJSON(w, http.StatusOK, slots)
}
