// Package booking owns the appointment lifecycle: pending on creation,
// accepted or declined by the business, back to pending on reschedule.
// At most one accepted appointment may hold a (date, time) slot; the
// invariant is enforced at accept time, inside one transaction.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/handybook/handybook/services/booking-service/internal/model"
	"github.com/handybook/handybook/services/booking-service/internal/schedule"
	"github.com/handybook/handybook/services/booking-service/internal/storage"
)

type Service struct {
	store    storage.Store
	notifier Notifier
	settings schedule.Settings
	logger   *slog.Logger
}

func NewService(store storage.Store, notifier Notifier, settings schedule.Settings, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		settings: settings,
		logger:   logger,
	}
}

// CreateParams carries a booking request. Customer fields are persisted
// as-is; only presence and email shape are validated.
type CreateParams struct {
	FirstName     string
	LastName      string
	Email         string
	Phone         string
	StreetAddress string
	AptSuite      string
	City          string
	State         string
	ZipCode       string
	Description   string

	Date time.Time
	Time model.TimeOfDay
}

func (p *CreateParams) validate() error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Email = strings.TrimSpace(p.Email)
	p.StreetAddress = strings.TrimSpace(p.StreetAddress)
	p.City = strings.TrimSpace(p.City)

	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("%w: first and last name are required", ErrValidation)
	}
	if p.Email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return fmt.Errorf("%w: email is not valid", ErrValidation)
	}
	if p.StreetAddress == "" || p.City == "" {
		return fmt.Errorf("%w: street address and city are required", ErrValidation)
	}
	if p.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrValidation)
	}
	return nil
}

// Create stores a new pending appointment. Slot availability is not a
// precondition here: two customers may legitimately hold pending requests
// for the same slot, and the uniqueness invariant is enforced at accept time.
func (s *Service) Create(ctx context.Context, p CreateParams) (model.Appointment, error) {
	if err := p.validate(); err != nil {
		return model.Appointment{}, err
	}

	token := uuid.NewString()
	id := uuid.NewString()
	for token == id {
		token = uuid.NewString()
	}
	appt := model.Appointment{
		ID:                id,
		RescheduleToken:   token,
		CustomerFirstName: p.FirstName,
		CustomerLastName:  p.LastName,
		CustomerEmail:     p.Email,
		CustomerPhone:     strings.TrimSpace(p.Phone),
		StreetAddress:     p.StreetAddress,
		AptSuite:          strings.TrimSpace(p.AptSuite),
		City:              p.City,
		State:             strings.TrimSpace(p.State),
		ZipCode:           strings.TrimSpace(p.ZipCode),
		Description:       strings.TrimSpace(p.Description),
		RequestedDate:     p.Date,
		RequestedTime:     p.Time,
		Status:            model.StatusPending,
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.CreateAppointment(ctx, &appt); err != nil {
			return err
		}
		return s.notifier.Notify(ctx, tx, appt, model.EventCreated)
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// Accept transitions an appointment to accepted, failing with
// ErrSlotConflict if any other appointment already holds accepted for the
// same slot. Every other pending appointment for the slot is declined in the
// same transaction: once the slot is claimed they are provably unbookable,
// and auto-declining avoids stale pending state.
func (s *Service) Accept(ctx context.Context, id string) (model.Appointment, error) {
	var out model.Appointment
	err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		appt, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return mapStoreErr(err)
		}

		rows, err := tx.LockSlot(ctx, appt.RequestedDate, appt.RequestedTime)
		if err != nil {
			return err
		}
		var self *model.Appointment
		for i := range rows {
			if rows[i].ID == id {
				self = &rows[i]
				break
			}
		}
		if self == nil {
			// The appointment was rescheduled away between the read and the
			// slot lock.
			return ErrConcurrentUpdate
		}
		for _, other := range rows {
			if other.ID != id && other.Status == model.StatusAccepted {
				return ErrSlotConflict
			}
		}
		if self.Status == model.StatusAccepted {
			out = *self
			return nil
		}

		updated, err := tx.SetStatus(ctx, id, model.StatusAccepted)
		if err != nil {
			return mapStoreErr(err)
		}

		losers, err := tx.DeclineOtherPending(ctx, updated.RequestedDate, updated.RequestedTime, id)
		if err != nil {
			return err
		}
		if len(losers) > 0 {
			s.logger.Info("auto-declined competing pending appointments",
				"appointment_id", id,
				"date", updated.RequestedDate.Format(model.DateLayout),
				"time", updated.RequestedTime.String(),
				"declined", len(losers),
			)
		}

		if err := s.notifier.Notify(ctx, tx, updated, model.EventAccepted); err != nil {
			return err
		}
		for _, loser := range losers {
			if err := s.notifier.Notify(ctx, tx, loser, model.EventDeclined); err != nil {
				return err
			}
		}
		out = updated
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return out, nil
}

// Decline unconditionally declines an appointment. Declining can never
// violate the uniqueness invariant, so there is no conflict check.
func (s *Service) Decline(ctx context.Context, id string) (model.Appointment, error) {
	var out model.Appointment
	err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		appt, err := tx.GetAppointmentForUpdate(ctx, id)
		if err != nil {
			return mapStoreErr(err)
		}
		if appt.Status == model.StatusDeclined {
			out = appt
			return nil
		}
		updated, err := tx.SetStatus(ctx, id, model.StatusDeclined)
		if err != nil {
			return mapStoreErr(err)
		}
		if err := s.notifier.Notify(ctx, tx, updated, model.EventDeclined); err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return out, nil
}

// Reschedule moves an appointment to a new slot and forces re-approval:
// status is reset to pending even when the appointment was accepted. The
// target slot is re-validated inside the transaction; client-supplied slots
// are never trusted.
func (s *Service) Reschedule(ctx context.Context, id string, date time.Time, at model.TimeOfDay) (model.Appointment, error) {
	return s.reschedule(ctx, date, at, func(ctx context.Context, tx storage.Tx) (model.Appointment, error) {
		appt, err := tx.GetAppointmentForUpdate(ctx, id)
		if err != nil {
			return model.Appointment{}, mapStoreErr(err)
		}
		return appt, nil
	})
}

// RescheduleByToken is the public self-service variant. It follows the same
// contract as Reschedule but is gated on the unguessable token and refuses
// declined appointments: their tokens are inert.
func (s *Service) RescheduleByToken(ctx context.Context, token string, date time.Time, at model.TimeOfDay) (model.Appointment, error) {
	return s.reschedule(ctx, date, at, func(ctx context.Context, tx storage.Tx) (model.Appointment, error) {
		appt, err := tx.GetAppointmentByTokenForUpdate(ctx, token)
		if err != nil {
			return model.Appointment{}, mapStoreErr(err)
		}
		if appt.Status == model.StatusDeclined {
			return model.Appointment{}, ErrNotFound
		}
		return appt, nil
	})
}

func (s *Service) reschedule(ctx context.Context, date time.Time, at model.TimeOfDay, lookup func(ctx context.Context, tx storage.Tx) (model.Appointment, error)) (model.Appointment, error) {
	var out model.Appointment
	err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		appt, err := lookup(ctx, tx)
		if err != nil {
			return err
		}

		// Recompute availability with this appointment excluded, so its own
		// current slot does not block it.
		blackout, err := tx.IsBlackout(ctx, date)
		if err != nil {
			return err
		}
		booked, err := tx.AcceptedTimes(ctx, date, appt.ID)
		if err != nil {
			return err
		}
		slots := schedule.GenerateSlots(date, s.settings.Hours, s.settings.SlotDuration, blackout, booked)
		if !schedule.HasTime(slots, at) {
			return ErrSlotUnavailable
		}

		updated, err := tx.MoveAppointment(ctx, appt.ID, date, at, model.StatusPending)
		if err != nil {
			return mapStoreErr(err)
		}
		if err := s.notifier.Notify(ctx, tx, updated, model.EventRescheduled); err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return out, nil
}

// AvailableSlots is the read path behind the slots endpoints. excludeID, when
// set, removes that appointment's own accepted slot from the booked set.
func (s *Service) AvailableSlots(ctx context.Context, date time.Time, excludeID string) ([]schedule.Slot, error) {
	blackout, err := s.store.IsBlackout(ctx, date)
	if err != nil {
		return nil, err
	}
	booked, err := s.store.AcceptedTimes(ctx, date, excludeID)
	if err != nil {
		return nil, err
	}
	return schedule.GenerateSlots(date, s.settings.Hours, s.settings.SlotDuration, blackout, booked), nil
}

// Get returns an appointment by id.
func (s *Service) Get(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, mapStoreErr(err)
	}
	return appt, nil
}

// GetByToken returns a non-declined appointment by its reschedule token.
func (s *Service) GetByToken(ctx context.Context, token string) (model.Appointment, error) {
	appt, err := s.store.GetAppointmentByToken(ctx, token)
	if err != nil {
		return model.Appointment{}, mapStoreErr(err)
	}
	if appt.Status == model.StatusDeclined {
		return model.Appointment{}, ErrNotFound
	}
	return appt, nil
}

// List returns appointments matching the filter, newest slot first.
func (s *Service) List(ctx context.Context, f storage.AppointmentFilter) ([]model.Appointment, error) {
	return s.store.ListAppointments(ctx, f)
}

// ListBlackoutDates returns all closed calendar days.
func (s *Service) ListBlackoutDates(ctx context.Context) ([]model.BlackoutDate, error) {
	return s.store.ListBlackoutDates(ctx)
}

// AddBlackoutDate closes a calendar day for booking. Re-adding a day that is
// already closed updates its reason.
func (s *Service) AddBlackoutDate(ctx context.Context, date time.Time, reason string) error {
	if date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrValidation)
	}
	return s.store.CreateBlackoutDate(ctx, model.BlackoutDate{Date: date, Reason: reason})
}

// RemoveBlackoutDate reopens a previously closed day.
func (s *Service) RemoveBlackoutDate(ctx context.Context, date time.Time) error {
	return mapStoreErr(s.store.DeleteBlackoutDate(ctx, date))
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrConflict):
		return ErrSlotConflict
	}
	return err
}
