package booking

import "errors"

var (
	// ErrValidation wraps user-correctable input problems; nothing was
	// written to the store.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound covers unknown ids and tokens, including a declined
	// appointment's reschedule token, which is inert.
	ErrNotFound = errors.New("appointment not found")

	// ErrSlotConflict means an accept lost the race: another appointment
	// already holds accepted for the same (date, time).
	ErrSlotConflict = errors.New("time slot is already booked")

	// ErrSlotUnavailable means a reschedule target is no longer offered
	// (blackout, closed hours, or booked in the meantime).
	ErrSlotUnavailable = errors.New("selected time is no longer available")

	// ErrConcurrentUpdate means the appointment moved while the operation
	// was locking its slot. The whole call re-derives state from scratch,
	// so it is safe for the caller to retry.
	ErrConcurrentUpdate = errors.New("appointment changed concurrently")
)
