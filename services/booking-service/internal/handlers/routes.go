package handlers

import (
	"net/http"

	"github.com/handybook/handybook/libs/httpx"
)

// Register wires all booking routes onto the mux. The public middleware is
// applied only to customer-facing routes (slot discovery, booking requests,
// token reschedules); admin routes skip it.
func (h *AppointmentHandler) Register(mux *http.ServeMux, public httpx.Middleware) {
	if public == nil {
		public = func(next http.Handler) http.Handler { return next }
	}

	mux.Handle("GET /api/v1/slots", public(http.HandlerFunc(h.Slots)))
	mux.Handle("POST /api/v1/appointments", public(http.HandlerFunc(h.Create)))

	mux.HandleFunc("GET /api/v1/appointments", h.List)
	mux.HandleFunc("GET /api/v1/appointments/{id}", h.Get)
	mux.HandleFunc("POST /api/v1/appointments/{id}/accept", h.Accept)
	mux.HandleFunc("POST /api/v1/appointments/{id}/decline", h.Decline)
	mux.HandleFunc("POST /api/v1/appointments/{id}/reschedule", h.Reschedule)

	mux.Handle("GET /reschedule/{token}", public(http.HandlerFunc(h.PublicView)))
	mux.Handle("POST /reschedule/{token}", public(http.HandlerFunc(h.PublicReschedule)))

	mux.HandleFunc("GET /api/v1/blackouts", h.ListBlackouts)
	mux.HandleFunc("POST /api/v1/blackouts", h.CreateBlackout)
	mux.HandleFunc("DELETE /api/v1/blackouts/{date}", h.DeleteBlackout)
}
