package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/handybook/handybook/services/booking-service/internal/model"
)

type blackoutItem struct {
	Date   string `json:"date"`
	Reason string `json:"reason,omitempty"`
}

func (h *AppointmentHandler) ListBlackouts(w http.ResponseWriter, r *http.Request) {
	dates, err := h.svc.ListBlackoutDates(r.Context())
	if err != nil {
		h.logger.Error("list blackout dates failed", "err", err)
		writeServiceError(w, err)
		return
	}
	items := make([]blackoutItem, 0, len(dates))
	for _, b := range dates {
		items = append(items, blackoutItem{
			Date:   b.Date.Format(model.DateLayout),
			Reason: b.Reason,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AppointmentHandler) CreateBlackout(w http.ResponseWriter, r *http.Request) {
	var req blackoutItem
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	dateStr := strings.TrimSpace(req.Date)
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := time.ParseInLocation(model.DateLayout, dateStr, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	if err := h.svc.AddBlackoutDate(r.Context(), date, strings.TrimSpace(req.Reason)); err != nil {
		writeServiceError(w, err)
		return
	}
	h.logger.Info("blackout date added", "date", dateStr)
	writeJSON(w, http.StatusCreated, blackoutItem{Date: dateStr, Reason: strings.TrimSpace(req.Reason)})
}

func (h *AppointmentHandler) DeleteBlackout(w http.ResponseWriter, r *http.Request) {
	dateStr := r.PathValue("date")
	date, err := time.ParseInLocation(model.DateLayout, dateStr, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	if err := h.svc.RemoveBlackoutDate(r.Context(), date); err != nil {
		writeServiceError(w, err)
		return
	}
	h.logger.Info("blackout date removed", "date", dateStr)
	w.WriteHeader(http.StatusNoContent)
}
