// Package email builds and sends the customer-facing messages for each
// appointment lifecycle event.
package email

import (
	"fmt"
	"strings"
)

// Templates renders one message per lifecycle event. FrontendURL feeds the
// customer reschedule link; CompanyName signs the messages.
type Templates struct {
	FrontendURL string
	CompanyName string
}

// EventData is the slice of the event payload the templates need.
type EventData struct {
	FirstName       string
	Date            string
	TimeLabel       string
	RescheduleToken string
}

func (t Templates) rescheduleURL(token string) string {
	return strings.TrimRight(t.FrontendURL, "/") + "/reschedule/" + token
}

func (t Templates) signature() string {
	if t.CompanyName == "" {
		return "Thank you"
	}
	return "Thank you,\n" + t.CompanyName
}

// Received confirms a new booking request is in and awaiting review.
func (t Templates) Received(d EventData) (subject, body string) {
	subject = "Appointment received"
	body = fmt.Sprintf(`Hello %s,

Your appointment request has been received.

Date: %s
Time: %s

We will notify you once it is accepted.

%s
`, d.FirstName, d.Date, d.TimeLabel, t.signature())
	return subject, body
}

// Accepted confirms the slot and offers a reschedule link.
func (t Templates) Accepted(d EventData) (subject, body string) {
	subject = "Appointment accepted"
	body = fmt.Sprintf(`Hello %s,

Your appointment request for %s at %s has been accepted.

Need to reschedule?

%s

%s
`, d.FirstName, d.Date, d.TimeLabel, t.rescheduleURL(d.RescheduleToken), t.signature())
	return subject, body
}

// Declined tells the customer their request did not go through.
func (t Templates) Declined(d EventData) (subject, body string) {
	subject = "Appointment declined"
	body = fmt.Sprintf(`Hello %s,

Your appointment request for %s at %s has been declined.

%s
`, d.FirstName, d.Date, d.TimeLabel, t.signature())
	return subject, body
}

// Rescheduled confirms the move and that the new slot awaits approval again.
func (t Templates) Rescheduled(d EventData) (subject, body string) {
	subject = "Appointment rescheduled"
	body = fmt.Sprintf(`Hello %s,

Your appointment has been moved to %s at %s.

The new time is awaiting confirmation; we will notify you once it is accepted.

%s
`, d.FirstName, d.Date, d.TimeLabel, t.signature())
	return subject, body
}
