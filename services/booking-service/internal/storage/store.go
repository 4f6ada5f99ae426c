package storage

import (
	"context"
	"errors"
	"time"

	"github.com/handybook/handybook/services/booking-service/internal/model"
	"github.com/handybook/handybook/services/booking-service/internal/outbox"
)

// ErrNotFound is returned for unknown appointment ids, tokens, and blackout
// dates.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write loses to the accepted-slot uniqueness
// constraint.
var ErrConflict = errors.New("slot already accepted")

// AppointmentFilter narrows ListAppointments. Zero values mean "any".
type AppointmentFilter struct {
	Status model.Status
	Date   *time.Time
	ID     string
	Limit  int
}

// Tx is the set of operations available inside one transaction. Accept and
// reschedule transitions run entirely through a Tx so their conflict checks
// and mutations are indivisible.
type Tx interface {
	CreateAppointment(ctx context.Context, appt *model.Appointment) error
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	GetAppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error)
	GetAppointmentByTokenForUpdate(ctx context.Context, token string) (model.Appointment, error)

	// LockSlot row-locks every appointment sharing (date, time), in id order
	// so concurrent accepts for the same slot serialize instead of
	// deadlocking, and returns them.
	LockSlot(ctx context.Context, date time.Time, t model.TimeOfDay) ([]model.Appointment, error)

	SetStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error)
	MoveAppointment(ctx context.Context, id string, date time.Time, t model.TimeOfDay, status model.Status) (model.Appointment, error)

	// DeclineOtherPending declines every pending appointment for the slot
	// except excludeID and returns the ones it changed.
	DeclineOtherPending(ctx context.Context, date time.Time, t model.TimeOfDay, excludeID string) ([]model.Appointment, error)

	AcceptedTimes(ctx context.Context, date time.Time, excludeID string) ([]model.TimeOfDay, error)
	IsBlackout(ctx context.Context, date time.Time) (bool, error)

	InsertEvent(ctx context.Context, evt outbox.Event) error
}

// Store is the appointment store consumed by the booking service and the
// HTTP read paths.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	GetAppointmentByToken(ctx context.Context, token string) (model.Appointment, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]model.Appointment, error)
	AcceptedTimes(ctx context.Context, date time.Time, excludeID string) ([]model.TimeOfDay, error)

	IsBlackout(ctx context.Context, date time.Time) (bool, error)
	ListBlackoutDates(ctx context.Context) ([]model.BlackoutDate, error)
	CreateBlackoutDate(ctx context.Context, b model.BlackoutDate) error
	DeleteBlackoutDate(ctx context.Context, date time.Time) error
}
