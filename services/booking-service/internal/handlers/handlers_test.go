package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/handybook/handybook/services/booking-service/internal/booking"
	"github.com/handybook/handybook/services/booking-service/internal/model"
	"github.com/handybook/handybook/services/booking-service/internal/schedule"
	"github.com/handybook/handybook/services/booking-service/internal/storage/storagetest"
)

// 2026-03-02 is a Monday.
const testDate = "2026-03-02"

func newTestMux(t *testing.T) (*http.ServeMux, *storagetest.MemoryStore) {
	t.Helper()
	store := storagetest.NewMemoryStore()
	settings := schedule.Settings{
		Hours:        schedule.DefaultWeekHours(),
		SlotDuration: time.Hour,
		Location:     time.UTC,
	}
	logger := slog.New(slog.DiscardHandler)
	svc := booking.NewService(store, booking.OutboxNotifier{}, settings, logger)

	mux := http.NewServeMux()
	NewAppointmentHandler(svc, logger).Register(mux, nil)
	return mux, store
}

func seedAppointment(store *storagetest.MemoryStore, id, timeStr string, status model.Status) {
	at, err := model.ParseTimeOfDay(timeStr)
	if err != nil {
		panic(err)
	}
	date, _ := time.ParseInLocation(model.DateLayout, testDate, time.UTC)
	store.Seed(model.Appointment{
		ID:                id,
		RescheduleToken:   "token-" + id,
		CustomerFirstName: "Jordan",
		CustomerLastName:  "Reyes",
		CustomerEmail:     id + "@example.com",
		StreetAddress:     "1 Main St",
		City:              "Springfield",
		RequestedDate:     date,
		RequestedTime:     at,
		Status:            status,
		CreatedAt:         time.Now().UTC(),
	})
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeItem(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return out
}

func TestCreateAppointmentEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/appointments", `{
		"first_name": "Jordan", "last_name": "Reyes",
		"email": "jordan@example.com", "phone": "555-0100",
		"street_address": "1 Main St", "city": "Springfield",
		"date": "`+testDate+`", "time": "10:00"
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	item := decodeItem(t, rec)
	if item["status"] != "pending" {
		t.Errorf("status = %v, want pending", item["status"])
	}
	if item["time_label"] != "10:00 AM" {
		t.Errorf("time_label = %v", item["time_label"])
	}
	if item["appointment_id"] == "" || item["reschedule_token"] == "" {
		t.Error("id and token must be present in the response")
	}
}

func TestCreateAppointmentValidation(t *testing.T) {
	mux, _ := newTestMux(t)

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"missing date", `{"first_name":"A","last_name":"B","email":"a@b.com","street_address":"1 Main","city":"X","time":"10:00"}`},
		{"bad time", `{"first_name":"A","last_name":"B","email":"a@b.com","street_address":"1 Main","city":"X","date":"` + testDate + `","time":"25:99"}`},
		{"missing email", `{"first_name":"A","last_name":"B","street_address":"1 Main","city":"X","date":"` + testDate + `","time":"10:00"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, mux, http.MethodPost, "/api/v1/appointments", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			if msg, ok := decodeItem(t, rec)["error"].(string); !ok || msg == "" {
				t.Error("error body must carry a message")
			}
		})
	}
}

func TestAcceptEndpointConflict(t *testing.T) {
	mux, store := newTestMux(t)
	seedAppointment(store, "winner", "13:00", model.StatusAccepted)
	seedAppointment(store, "late", "13:00", model.StatusPending)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/appointments/late/accept", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 (body %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/appointments/missing/accept", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: status = %d, want 404", rec.Code)
	}
}

func TestAcceptEndpointAutoDecline(t *testing.T) {
	mux, store := newTestMux(t)
	seedAppointment(store, "a", "13:00", model.StatusPending)
	seedAppointment(store, "b", "13:00", model.StatusPending)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/appointments/a/accept", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if item := decodeItem(t, rec); item["status"] != "accepted" {
		t.Errorf("status = %v, want accepted", item["status"])
	}
	if b, _ := store.Appointment("b"); b.Status != model.StatusDeclined {
		t.Errorf("competing pending should be auto-declined, got %q", b.Status)
	}
}

func TestDeclineEndpoint(t *testing.T) {
	mux, store := newTestMux(t)
	seedAppointment(store, "a", "13:00", model.StatusPending)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/appointments/a/decline", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if item := decodeItem(t, rec); item["status"] != "declined" {
		t.Errorf("status = %v, want declined", item["status"])
	}
}

func TestRescheduleEndpoint(t *testing.T) {
	mux, store := newTestMux(t)
	seedAppointment(store, "a", "10:00", model.StatusAccepted)
	seedAppointment(store, "holder", "13:00", model.StatusAccepted)

	// Target held by another accepted appointment.
	rec := doJSON(t, mux, http.MethodPost, "/api/v1/appointments/a/reschedule",
		`{"date": "`+testDate+`", "time": "13:00"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("booked target: status = %d, want 409 (body %s)", rec.Code, rec.Body.String())
	}

	// Malformed slot.
	rec = doJSON(t, mux, http.MethodPost, "/api/v1/appointments/a/reschedule",
		`{"date": "not-a-date", "time": "13:00"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date: status = %d, want 400", rec.Code)
	}

	// Open slot: moves and drops back to pending.
	rec = doJSON(t, mux, http.MethodPost, "/api/v1/appointments/a/reschedule",
		`{"date": "`+testDate+`", "time": "15:00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if item := decodeItem(t, rec); item["status"] != "pending" || item["time"] != "15:00" {
		t.Errorf("got status=%v time=%v, want pending 15:00", item["status"], item["time"])
	}
}

func TestSlotsEndpoint(t *testing.T) {
	mux, store := newTestMux(t)
	seedAppointment(store, "a", "13:00", model.StatusAccepted)

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/slots?date="+testDate, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var slots []schedule.Slot
	if err := json.Unmarshal(rec.Body.Bytes(), &slots); err != nil {
		t.Fatalf("decode slots: %v", err)
	}
	// Monday 09:00-19:00 yields ten hourly slots, minus the accepted 13:00.
	if len(slots) != 9 {
		t.Fatalf("len(slots) = %d, want 9", len(slots))
	}
	for _, s := range slots {
		if s.Time == "13:00" {
			t.Error("accepted 13:00 slot must be omitted")
		}
	}

	// Excluding the holder returns its slot to the pool.
	rec = doJSON(t, mux, http.MethodGet, "/api/v1/slots?date="+testDate+"&exclude=a", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &slots); err != nil {
		t.Fatalf("decode slots: %v", err)
	}
	if len(slots) != 10 {
		t.Fatalf("with exclude: len(slots) = %d, want 10", len(slots))
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/slots", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing date: status = %d, want 400", rec.Code)
	}
}

func TestPublicRescheduleFlow(t *testing.T) {
	mux, store := newTestMux(t)
	seedAppointment(store, "a", "10:00", model.StatusAccepted)

	rec := doJSON(t, mux, http.MethodGet, "/reschedule/token-a", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("view: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	view := decodeItem(t, rec)
	if view["first_name"] != "Jordan" || view["time"] != "10:00" {
		t.Errorf("view = %v", view)
	}
	if _, leaked := view["appointment_id"]; leaked {
		t.Error("public view must not expose the internal id")
	}
	if _, leaked := view["email"]; leaked {
		t.Error("public view must not expose contact details")
	}
	slots, ok := view["available_slots"].([]any)
	if !ok || len(slots) == 0 {
		t.Error("public view must offer available slots")
	}

	rec = doJSON(t, mux, http.MethodPost, "/reschedule/token-a",
		`{"date": "`+testDate+`", "time": "15:00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("reschedule: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if item := decodeItem(t, rec); item["status"] != "pending" {
		t.Errorf("status = %v, want pending (re-approval)", item["status"])
	}
}

func TestPublicRescheduleDeclinedTokenInert(t *testing.T) {
	mux, store := newTestMux(t)
	seedAppointment(store, "d", "10:00", model.StatusDeclined)

	if rec := doJSON(t, mux, http.MethodGet, "/reschedule/token-d", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("view: status = %d, want 404", rec.Code)
	}
	rec := doJSON(t, mux, http.MethodPost, "/reschedule/token-d",
		`{"date": "`+testDate+`", "time": "15:00"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("reschedule: status = %d, want 404", rec.Code)
	}
	if rec := doJSON(t, mux, http.MethodGet, "/reschedule/unknown-token", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown token: status = %d, want 404", rec.Code)
	}
}

func TestListEndpointFilters(t *testing.T) {
	mux, store := newTestMux(t)
	seedAppointment(store, "p", "10:00", model.StatusPending)
	seedAppointment(store, "acc", "11:00", model.StatusAccepted)

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/appointments?status=pending", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var items []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(items) != 1 || items[0]["appointment_id"] != "p" {
		t.Errorf("filtered list = %v", items)
	}

	if rec := doJSON(t, mux, http.MethodGet, "/api/v1/appointments?status=bogus", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status filter: status = %d, want 400", rec.Code)
	}
}

func TestBlackoutEndpoints(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/blackouts",
		`{"date": "`+testDate+`", "reason": "holiday"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// A blacked-out day offers no slots.
	rec = doJSON(t, mux, http.MethodGet, "/api/v1/slots?date="+testDate, "")
	var slots []schedule.Slot
	if err := json.Unmarshal(rec.Body.Bytes(), &slots); err != nil {
		t.Fatalf("decode slots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("blacked-out day returned %d slots", len(slots))
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/blackouts", "")
	var blackouts []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &blackouts); err != nil {
		t.Fatalf("decode blackouts: %v", err)
	}
	if len(blackouts) != 1 || blackouts[0]["reason"] != "holiday" {
		t.Errorf("blackouts = %v", blackouts)
	}

	if rec := doJSON(t, mux, http.MethodDelete, "/api/v1/blackouts/"+testDate, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d", rec.Code)
	}
	if rec := doJSON(t, mux, http.MethodDelete, "/api/v1/blackouts/"+testDate, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("delete again: status = %d, want 404", rec.Code)
	}
}
