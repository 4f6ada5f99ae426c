package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/handybook/handybook/services/booking-service/internal/booking"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps booking package errors onto HTTP status codes:
// validation 400, slot conflict and unavailable 409, not found 404.
// Anything else is a 500 with a generic body.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, booking.ErrSlotConflict):
		writeError(w, http.StatusConflict, "time slot is already accepted for another appointment")
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "requested slot is not available")
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, booking.ErrConcurrentUpdate):
		writeError(w, http.StatusConflict, "appointment was modified concurrently, retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
