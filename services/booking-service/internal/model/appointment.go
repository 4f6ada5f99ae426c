package model

import "time"

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined:
		return true
	}
	return false
}

// EventKind identifies the notification-worthy lifecycle transitions.
type EventKind string

const (
	EventCreated     EventKind = "created"
	EventAccepted    EventKind = "accepted"
	EventDeclined    EventKind = "declined"
	EventRescheduled EventKind = "rescheduled"
)

// Appointment is a customer's request for a single fixed-duration slot.
// RescheduleToken is an unguessable credential for the public self-service
// reschedule link; it is never equal to ID and never reused.
type Appointment struct {
	ID              string
	RescheduleToken string

	CustomerFirstName string
	CustomerLastName  string
	CustomerEmail     string
	CustomerPhone     string
	StreetAddress     string
	AptSuite          string
	City              string
	State             string
	ZipCode           string
	Description       string

	RequestedDate time.Time // date only, midnight in the business timezone
	RequestedTime TimeOfDay
	Status        Status
	CreatedAt     time.Time
}

func (a Appointment) CustomerFullName() string {
	return a.CustomerFirstName + " " + a.CustomerLastName
}

// SameSlot reports whether two appointments compete for one (date, time) pair.
func (a Appointment) SameSlot(other Appointment) bool {
	return a.RequestedDate.Equal(other.RequestedDate) && a.RequestedTime == other.RequestedTime
}

// BlackoutDate marks a calendar day as fully closed, overriding weekday
// business hours.
type BlackoutDate struct {
	Date   time.Time
	Reason string
}
