// Package handlers exposes the booking API over HTTP. Admin routes manage
// the appointment lifecycle and blackout calendar; public routes cover slot
// discovery, booking requests, and token-gated customer reschedules.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/handybook/handybook/services/booking-service/internal/booking"
	"github.com/handybook/handybook/services/booking-service/internal/model"
	"github.com/handybook/handybook/services/booking-service/internal/storage"
)

type AppointmentHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewAppointmentHandler(svc *booking.Service, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, logger: logger}
}

type createAppointmentRequest struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	StreetAddress string `json:"street_address"`
	AptSuite      string `json:"apt_suite"`
	City          string `json:"city"`
	State         string `json:"state"`
	ZipCode       string `json:"zip_code"`
	Description   string `json:"description"`
	Date          string `json:"date"`
	Time          string `json:"time"`
}

type rescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type appointmentItem struct {
	AppointmentID   string `json:"appointment_id"`
	RescheduleToken string `json:"reschedule_token,omitempty"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Phone           string `json:"phone,omitempty"`
	StreetAddress   string `json:"street_address"`
	AptSuite        string `json:"apt_suite,omitempty"`
	City            string `json:"city"`
	State           string `json:"state,omitempty"`
	ZipCode         string `json:"zip_code,omitempty"`
	Description     string `json:"description,omitempty"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	TimeLabel       string `json:"time_label"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
}

func toAppointmentItem(appt model.Appointment) appointmentItem {
	return appointmentItem{
		AppointmentID:   appt.ID,
		RescheduleToken: appt.RescheduleToken,
		FirstName:       appt.CustomerFirstName,
		LastName:        appt.CustomerLastName,
		Email:           appt.CustomerEmail,
		Phone:           appt.CustomerPhone,
		StreetAddress:   appt.StreetAddress,
		AptSuite:        appt.AptSuite,
		City:            appt.City,
		State:           appt.State,
		ZipCode:         appt.ZipCode,
		Description:     appt.Description,
		Date:            appt.RequestedDate.Format(model.DateLayout),
		Time:            appt.RequestedTime.String(),
		TimeLabel:       appt.RequestedTime.Label(),
		Status:          string(appt.Status),
		CreatedAt:       appt.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func parseSlotFields(dateStr, timeStr string) (time.Time, model.TimeOfDay, string) {
	dateStr = strings.TrimSpace(dateStr)
	timeStr = strings.TrimSpace(timeStr)
	if dateStr == "" || timeStr == "" {
		return time.Time{}, 0, "date and time are required"
	}
	date, err := time.ParseInLocation(model.DateLayout, dateStr, time.UTC)
	if err != nil {
		return time.Time{}, 0, "invalid date, expected YYYY-MM-DD"
	}
	at, err := model.ParseTimeOfDay(timeStr)
	if err != nil {
		return time.Time{}, 0, "invalid time, expected HH:MM"
	}
	return date, at, ""
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	date, at, msg := parseSlotFields(req.Date, req.Time)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	appt, err := h.svc.Create(r.Context(), booking.CreateParams{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		Phone:         req.Phone,
		StreetAddress: req.StreetAddress,
		AptSuite:      req.AptSuite,
		City:          req.City,
		State:         req.State,
		ZipCode:       req.ZipCode,
		Description:   req.Description,
		Date:          date,
		Time:          at,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentItem(appt))
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter storage.AppointmentFilter

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := model.Status(raw)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		date, err := time.ParseInLocation(model.DateLayout, raw, time.UTC)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date filter, expected YYYY-MM-DD")
			return
		}
		filter.Date = &date
	}
	filter.Limit = 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			filter.Limit = n
		}
	}

	appts, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list appointments failed", "err", err)
		writeServiceError(w, err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, appt := range appts {
		items = append(items, toAppointmentItem(appt))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(appt))
}

func (h *AppointmentHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	appt, err := h.svc.Accept(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.logger.Info("appointment accepted", "appointment_id", id)
	writeJSON(w, http.StatusOK, toAppointmentItem(appt))
}

func (h *AppointmentHandler) Decline(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	appt, err := h.svc.Decline(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.logger.Info("appointment declined", "appointment_id", id)
	writeJSON(w, http.StatusOK, toAppointmentItem(appt))
}

func (h *AppointmentHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
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

	appt, err := h.svc.Reschedule(r.Context(), r.PathValue("id"), date, at)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(appt))
}
