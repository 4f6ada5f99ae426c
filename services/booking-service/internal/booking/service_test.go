package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/handybook/handybook/services/booking-service/internal/model"
	"github.com/handybook/handybook/services/booking-service/internal/schedule"
	"github.com/handybook/handybook/services/booking-service/internal/storage/storagetest"
)

// 2026-03-02 is a Monday (09:00-19:00 under default hours).
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func newTestService(store *storagetest.MemoryStore) *Service {
	settings := schedule.Settings{
		Hours:        schedule.DefaultWeekHours(),
		SlotDuration: time.Hour,
		Location:     time.UTC,
	}
	logger := slog.New(slog.DiscardHandler)
	return NewService(store, OutboxNotifier{}, settings, logger)
}

func validParams(at model.TimeOfDay) CreateParams {
	return CreateParams{
		FirstName:     "Avery",
		LastName:      "Miller",
		Email:         "avery@example.com",
		Phone:         "555-0101",
		StreetAddress: "12 Oak Lane",
		City:          "Springfield",
		State:         "IL",
		ZipCode:       "62704",
		Date:          monday,
		Time:          at,
	}
}

func seeded(id string, at model.TimeOfDay, status model.Status) model.Appointment {
	return model.Appointment{
		ID:                id,
		RescheduleToken:   "token-" + id,
		CustomerFirstName: "Seed",
		CustomerLastName:  strings.ToUpper(id),
		CustomerEmail:     id + "@example.com",
		StreetAddress:     "1 Main St",
		City:              "Springfield",
		RequestedDate:     monday,
		RequestedTime:     at,
		Status:            status,
		CreatedAt:         time.Now().UTC(),
	}
}

func TestCreate(t *testing.T) {
	store := storagetest.NewMemoryStore()
	svc := newTestService(store)

	appt, err := svc.Create(context.Background(), validParams(model.NewTimeOfDay(10, 0)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if appt.Status != model.StatusPending {
		t.Errorf("new appointment status = %q, want pending", appt.Status)
	}
	if appt.ID == "" || appt.RescheduleToken == "" {
		t.Error("id and reschedule token must be set")
	}
	if appt.ID == appt.RescheduleToken {
		t.Error("reschedule token must differ from the id")
	}

	events := store.Events()
	if len(events) != 1 || events[0].EventType != TopicCreated {
		t.Fatalf("expected one created event, got %+v", events)
	}
}

func TestCreate_TokensUnique(t *testing.T) {
	store := storagetest.NewMemoryStore()
	svc := newTestService(store)

	a, err := svc.Create(context.Background(), validParams(model.NewTimeOfDay(10, 0)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, err := svc.Create(context.Background(), validParams(model.NewTimeOfDay(11, 0)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.RescheduleToken == b.RescheduleToken {
		t.Error("tokens must not repeat across appointments")
	}
}

func TestCreate_Validation(t *testing.T) {
	store := storagetest.NewMemoryStore()
	svc := newTestService(store)

	tests := []struct {
		name   string
		mutate func(*CreateParams)
	}{
		{"missing first name", func(p *CreateParams) { p.FirstName = " " }},
		{"missing email", func(p *CreateParams) { p.Email = "" }},
		{"malformed email", func(p *CreateParams) { p.Email = "not-an-email" }},
		{"missing street address", func(p *CreateParams) { p.StreetAddress = "" }},
		{"missing city", func(p *CreateParams) { p.City = "" }},
		{"missing date", func(p *CreateParams) { p.Date = time.Time{} }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := validParams(model.NewTimeOfDay(10, 0))
			tc.mutate(&p)
			if _, err := svc.Create(context.Background(), p); !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
	if events := store.Events(); len(events) != 0 {
		t.Errorf("validation failures must not record events, got %d", len(events))
	}
}

func TestCreate_PendingDuplicatesAllowed(t *testing.T) {
	store := storagetest.NewMemoryStore()
	svc := newTestService(store)
	at := model.NewTimeOfDay(10, 0)

	if _, err := svc.Create(context.Background(), validParams(at)); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	// Same slot again: pending requests do not conflict.
	if _, err := svc.Create(context.Background(), validParams(at)); err != nil {
		t.Fatalf("second Create for same slot: %v", err)
	}
}

func TestAccept_AutoDeclinesCompetingPending(t *testing.T) {
	store := storagetest.NewMemoryStore()
	svc := newTestService(store)
	at := model.NewTimeOfDay(13, 0)
	store.Seed(
		seeded("a", at, model.StatusPending),
		seeded("b", at, model.StatusPending),
		seeded("c", model.NewTimeOfDay(14, 0), model.StatusPending),
	)

	got, err := svc.Accept(context.Background(), "a")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if got.Status != model.StatusAccepted {
		t.Errorf("a status = %q, want accepted", got.Status)
	}
	if b, _ := store.Appointment("b"); b.Status != model.StatusDeclined {
		t.Errorf("b status = %q, want declined (auto)", b.Status)
	}
	if c, _ := store.Appointment("c"); c.Status != model.StatusPending {
		t.Errorf("c (different slot) status = %q, want pending", c.Status)
	}

	var accepted, declined int
	for _, evt := range store.Events() {
		switch evt.EventType {
		case TopicAccepted:
			accepted++
		case TopicDeclined:
			declined++
		}
	}
	if accepted != 1 || declined != 1 {
		t.Errorf("events: accepted=%d declined=%d, want 1/1", accepted, declined)
	}
}

func TestAccept_ConflictWithExistingAccepted(t *testing.T) {
	store := storagetest.NewMemoryStore()
	svc := newTestService(store)
	at := model.NewTimeOfDay(13, 0)
	store.Seed(
		seeded("winner", at, model.StatusAccepted),
		seeded("late", at, model.StatusPending),
	)

	if _, err := svc.Accept(context.Background(), "late"); !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("expected ErrSlotConflict, got %v", err)
	}
	if late, _ := store.Appointment("late"); late.Status != model.StatusPending {
		t.Errorf("late status = %q, want pending (nothing mutated)", late.Status)
	}
	if events := store.Events(); len(events) != 0 {
		t.Errorf("failed accept must not record events, got %d", len(events))
	}
}

func TestAccept_Idempotent(t *testing.T) {
	store := storagetest.NewMemoryStore()
	svc := newTestService(store)
	store.Seed(seeded("a", model.NewTimeOfDay(13, 0), model.StatusAccepted))

	got, err := svc.Accept(context.Background(), "a")
	if err != nil {
		t.Fatalf("re-Accept: %v", err)
	}
	if got.Status != model.StatusAccepted {
		t.Errorf("status = %q", got.Status)
	}
	if events := store.Events(); len(events) != 0 {
		t.Errorf("re-accept must not re-notify, got %d events", len(events))
	}
}

func TestAccept_NotFound(t *testing.T) {
	svc := newTestService(storagetest.NewMemoryStore())
	if _, err := svc.Accept(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccept_ConcurrentRace(t *testing.T) {
	store := storagetest.NewMemoryStore()
	svc := newTestService(store)
	at := model.NewTimeOfDay(13, 0)
	store.Seed(
		seeded("a", at, model.StatusPending),
		seeded("b", at, model.StatusPending),
	)

	errs := make(map[string]error, 2)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, id := range []string{"a", "b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.Accept(context.Background(), id)
			mu.Lock()
			errs[id] = err
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	var winners, conflicts int
	for id, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrSlotConflict):
			conflicts++
		default:
			t.Fatalf("Accept(%s): unexpected error %v", id, err)
		}
	}
	if winners != 1 || conflicts != 1 {
		t.Fatalf("winners=%d conflicts=%d, want exactly one of each", winners, conflicts)
	}

	var acceptedCount int
	for _, id := range []string{"a", "b"} {
		if appt, _ := store.Appointment(id); appt.Status == model.StatusAccepted {
			acceptedCount++
		}
	}
	if acceptedCount != 1 {
		t.Fatalf("accepted rows = %d, want 1 (uniqueness invariant)", acceptedCount)
	}
}

func TestDecline(t *testing.T) {
	store := storagetest.NewMemoryStore()
	svc := newTestService(store)
	at := model.NewTimeOfDay(13, 0)
	store.Seed(
		seeded("a", at, model.StatusPending),
		seeded("already-accepted", at, model.StatusAccepted),
	)

	got, err := svc.Decline(context.Background(), "a")
	if err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if got.Status != model.StatusDeclined {
		t.Errorf("status = %q, want declined", got.Status)
	}

	// Declining never conflict-checks, even against an accepted holder.
	if _, err := svc.Decline(context.Background(), "already-accepted"); err != nil {
		t.Fatalf("Decline accepted appointment: %v", err)
	}
}

func TestReschedule_ForcesPending(t *testing.T) {
	store := storagetest.NewMemoryStore()
	svc := newTestService(store)
	store.Seed(seeded("a", model.NewTimeOfDay(13, 0), model.StatusAccepted))

	tuesday := monday.AddDate(0, 0, 1)
	got, err := svc.Reschedule(context.Background(), "a", tuesday, model.NewTimeOfDay(10, 0))
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if got.Status != model.StatusPending {
		t.Errorf("status after reschedule = %q, want pending (re-approval required)", got.Status)
	}
	if got.RequestedDate.Format(model.DateLayout) != "2026-03-03" || got.RequestedTime != model.NewTimeOfDay(10, 0) {
		t.Errorf("slot = %s %s", got.RequestedDate.Format(model.DateLayout), got.RequestedTime)
	}

	events := store.Events()
	if len(events) != 1 || events[0].EventType != TopicRescheduled {
		t.Fatalf("expected one rescheduled event, got %+v", events)
	}
}

func TestReschedule_OwnSlotStaysAvailable(t *testing.T) {
	store := storagetest.NewMemoryStore()
	svc := newTestService(store)
	at := model.NewTimeOfDay(13, 0)
	store.Seed(seeded("a", at, model.StatusAccepted))

	// The appointment's own accepted slot must not block it: rescheduling to
	// the very same slot succeeds (and still forces re-approval).
	got, err := svc.Reschedule(context.Background(), "a", monday, at)
	if err != nil {
		t.Fatalf("Reschedule to own slot: %v", err)
	}
	if got.Status != model.StatusPending {
		t.Errorf("status = %q, want pending", got.Status)
	}
}

func TestReschedule_TargetBooked(t *testing.T) {
	store := storagetest.NewMemoryStore()
	svc := newTestService(store)
	store.Seed(
		seeded("a", model.NewTimeOfDay(10, 0), model.StatusPending),
		seeded("holder", model.NewTimeOfDay(13, 0), model.StatusAccepted),
	)

	_, err := svc.Reschedule(context.Background(), "a", monday, model.NewTimeOfDay(13, 0))
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
	if a, _ := store.Appointment("a"); a.RequestedTime != model.NewTimeOfDay(10, 0) {
		t.Errorf("failed reschedule must not move the appointment")
	}
}

func TestReschedule_BlackoutAndClosedDay(t *testing.T) {
	store := storagetest.NewMemoryStore()
	svc := newTestService(store)
	store.Seed(seeded("a", model.NewTimeOfDay(10, 0), model.StatusPending))

	blackout := monday.AddDate(0, 0, 7)
	store.SeedBlackout(blackout, "maintenance")
	if _, err := svc.Reschedule(context.Background(), "a", blackout, model.NewTimeOfDay(10, 0)); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("blackout target: expected ErrSlotUnavailable, got %v", err)
	}

	// Outside business hours on an open day.
	if _, err := svc.Reschedule(context.Background(), "a", monday, model.NewTimeOfDay(6, 0)); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("off-hours target: expected ErrSlotUnavailable, got %v", err)
	}
}

func TestRescheduleByToken(t *testing.T) {
	store := storagetest.NewMemoryStore()
	svc := newTestService(store)
	store.Seed(
		seeded("a", model.NewTimeOfDay(10, 0), model.StatusAccepted),
		seeded("d", model.NewTimeOfDay(11, 0), model.StatusDeclined),
	)

	got, err := svc.RescheduleByToken(context.Background(), "token-a", monday, model.NewTimeOfDay(15, 0))
	if err != nil {
		t.Fatalf("RescheduleByToken: %v", err)
	}
	if got.Status != model.StatusPending {
		t.Errorf("status = %q, want pending", got.Status)
	}

	// A declined appointment's token is inert.
	if _, err := svc.RescheduleByToken(context.Background(), "token-d", monday, model.NewTimeOfDay(15, 0)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("declined token: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.RescheduleByToken(context.Background(), "no-such-token", monday, model.NewTimeOfDay(15, 0)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown token: expected ErrNotFound, got %v", err)
	}
}

func TestAvailableSlots_ExcludeForReschedule(t *testing.T) {
	store := storagetest.NewMemoryStore()
	svc := newTestService(store)
	at := model.NewTimeOfDay(13, 0)
	store.Seed(seeded("a", at, model.StatusAccepted))

	withExclude, err := svc.AvailableSlots(context.Background(), monday, "a")
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if !schedule.HasTime(withExclude, at) {
		t.Error("excluded appointment's own slot should be offered")
	}

	without, err := svc.AvailableSlots(context.Background(), monday, "")
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if schedule.HasTime(without, at) {
		t.Error("accepted slot should be hidden without exclusion")
	}
}
