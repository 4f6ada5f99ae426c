// Package storagetest provides an in-memory Store for exercising the booking
// state machine without Postgres. WithTx serializes on a mutex and restores a
// snapshot on error, which is enough to model the transactional guarantees
// the real store provides.
package storagetest

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/handybook/handybook/services/booking-service/internal/model"
	"github.com/handybook/handybook/services/booking-service/internal/outbox"
	"github.com/handybook/handybook/services/booking-service/internal/storage"
)

type MemoryStore struct {
	mu           sync.Mutex
	appointments map[string]model.Appointment
	blackouts    map[string]string
	events       []outbox.Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		appointments: map[string]model.Appointment{},
		blackouts:    map[string]string{},
	}
}

func dateKey(t time.Time) string { return t.Format(model.DateLayout) }

// Seed inserts appointments directly, bypassing the state machine.
func (s *MemoryStore) Seed(appts ...model.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range appts {
		s.appointments[a.ID] = a
	}
}

func (s *MemoryStore) SeedBlackout(date time.Time, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blackouts[dateKey(date)] = reason
}

// Appointment returns a stored appointment for assertions.
func (s *MemoryStore) Appointment(id string) (model.Appointment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	return a, ok
}

// Events returns the outbox events recorded by committed transactions.
func (s *MemoryStore) Events() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	apptSnap := maps.Clone(s.appointments)
	blackoutSnap := maps.Clone(s.blackouts)
	eventSnap := slices.Clone(s.events)

	if err := fn(ctx, &memTx{s: s}); err != nil {
		s.appointments = apptSnap
		s.blackouts = blackoutSnap
		s.events = eventSnap
		return err
	}
	return nil
}

func (s *MemoryStore) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{s: s}).GetAppointment(ctx, id)
}

func (s *MemoryStore) GetAppointmentByToken(_ context.Context, token string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.appointments {
		if a.RescheduleToken == token {
			return a, nil
		}
	}
	return model.Appointment{}, storage.ErrNotFound
}

func (s *MemoryStore) ListAppointments(_ context.Context, f storage.AppointmentFilter) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Appointment
	for _, a := range s.appointments {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Date != nil && dateKey(a.RequestedDate) != dateKey(*f.Date) {
			continue
		}
		if f.ID != "" && a.ID != f.ID {
			continue
		}
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b model.Appointment) int {
		if c := strings.Compare(dateKey(b.RequestedDate), dateKey(a.RequestedDate)); c != 0 {
			return c
		}
		return int(b.RequestedTime) - int(a.RequestedTime)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) AcceptedTimes(ctx context.Context, date time.Time, excludeID string) ([]model.TimeOfDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{s: s}).AcceptedTimes(ctx, date, excludeID)
}

func (s *MemoryStore) IsBlackout(_ context.Context, date time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blackouts[dateKey(date)]
	return ok, nil
}

func (s *MemoryStore) ListBlackoutDates(_ context.Context) ([]model.BlackoutDate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.BlackoutDate
	for key, reason := range s.blackouts {
		date, err := time.Parse(model.DateLayout, key)
		if err != nil {
			return nil, err
		}
		out = append(out, model.BlackoutDate{Date: date, Reason: reason})
	}
	slices.SortFunc(out, func(a, b model.BlackoutDate) int {
		return a.Date.Compare(b.Date)
	})
	return out, nil
}

func (s *MemoryStore) CreateBlackoutDate(_ context.Context, b model.BlackoutDate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blackouts[dateKey(b.Date)] = b.Reason
	return nil
}

func (s *MemoryStore) DeleteBlackoutDate(_ context.Context, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := dateKey(date)
	if _, ok := s.blackouts[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.blackouts, key)
	return nil
}

var _ storage.Store = (*MemoryStore)(nil)

// memTx operates on the store maps directly; the store mutex is already held
// for the duration of WithTx.
type memTx struct {
	s *MemoryStore
}

var _ storage.Tx = (*memTx)(nil)

func (t *memTx) CreateAppointment(_ context.Context, appt *model.Appointment) error {
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = time.Now().UTC()
	}
	t.s.appointments[appt.ID] = *appt
	return nil
}

func (t *memTx) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	a, ok := t.s.appointments[id]
	if !ok {
		return model.Appointment{}, storage.ErrNotFound
	}
	return a, nil
}

func (t *memTx) GetAppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error) {
	return t.GetAppointment(ctx, id)
}

func (t *memTx) GetAppointmentByTokenForUpdate(_ context.Context, token string) (model.Appointment, error) {
	for _, a := range t.s.appointments {
		if a.RescheduleToken == token {
			return a, nil
		}
	}
	return model.Appointment{}, storage.ErrNotFound
}

func (t *memTx) LockSlot(_ context.Context, date time.Time, at model.TimeOfDay) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range t.s.appointments {
		if dateKey(a.RequestedDate) == dateKey(date) && a.RequestedTime == at {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b model.Appointment) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (t *memTx) SetStatus(_ context.Context, id string, status model.Status) (model.Appointment, error) {
	a, ok := t.s.appointments[id]
	if !ok {
		return model.Appointment{}, storage.ErrNotFound
	}
	if status == model.StatusAccepted {
		if err := t.checkAcceptedUnique(a); err != nil {
			return model.Appointment{}, err
		}
	}
	a.Status = status
	t.s.appointments[id] = a
	return a, nil
}

func (t *memTx) MoveAppointment(_ context.Context, id string, date time.Time, at model.TimeOfDay, status model.Status) (model.Appointment, error) {
	a, ok := t.s.appointments[id]
	if !ok {
		return model.Appointment{}, storage.ErrNotFound
	}
	a.RequestedDate = date
	a.RequestedTime = at
	a.Status = status
	if status == model.StatusAccepted {
		if err := t.checkAcceptedUnique(a); err != nil {
			return model.Appointment{}, err
		}
	}
	t.s.appointments[id] = a
	return a, nil
}

// checkAcceptedUnique mimics the partial unique index on accepted slots.
func (t *memTx) checkAcceptedUnique(appt model.Appointment) error {
	for _, other := range t.s.appointments {
		if other.ID == appt.ID {
			continue
		}
		if other.Status == model.StatusAccepted && other.SameSlot(appt) {
			return storage.ErrConflict
		}
	}
	return nil
}

func (t *memTx) DeclineOtherPending(_ context.Context, date time.Time, at model.TimeOfDay, excludeID string) ([]model.Appointment, error) {
	var out []model.Appointment
	for id, a := range t.s.appointments {
		if id == excludeID || a.Status != model.StatusPending {
			continue
		}
		if dateKey(a.RequestedDate) != dateKey(date) || a.RequestedTime != at {
			continue
		}
		a.Status = model.StatusDeclined
		t.s.appointments[id] = a
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b model.Appointment) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (t *memTx) AcceptedTimes(_ context.Context, date time.Time, excludeID string) ([]model.TimeOfDay, error) {
	var out []model.TimeOfDay
	for id, a := range t.s.appointments {
		if id == excludeID || a.Status != model.StatusAccepted {
			continue
		}
		if dateKey(a.RequestedDate) != dateKey(date) {
			continue
		}
		out = append(out, a.RequestedTime)
	}
	slices.Sort(out)
	return out, nil
}

func (t *memTx) IsBlackout(_ context.Context, date time.Time) (bool, error) {
	_, ok := t.s.blackouts[dateKey(date)]
	return ok, nil
}

func (t *memTx) InsertEvent(_ context.Context, evt outbox.Event) error {
	t.s.events = append(t.s.events, evt)
	return nil
}
