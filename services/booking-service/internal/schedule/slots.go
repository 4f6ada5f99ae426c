package schedule

import (
	"time"

	"github.com/handybook/handybook/services/booking-service/internal/model"
)

// Slot is one bookable interval, rendered for API responses. Slots are
// derived values: never stored, recomputed on every query.
type Slot struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Label string `json:"label"`
}

// GenerateSlots returns the open slots for a date, in ascending time order.
//
// A blacked-out date yields nothing regardless of hours. A weekday without
// configured hours yields nothing. Candidate slots step from open by the slot
// duration while a full slot still fits before close; a trailing window
// shorter than the duration is dropped. Candidates matching a booked time are
// skipped.
//
// The function only reads its inputs, so concurrent calls need no
// coordination. Callers pass the accepted times for the date as booked,
// already excluding the appointment being rescheduled, if any.
func GenerateSlots(date time.Time, hours WeekHours, duration time.Duration, blackedOut bool, booked []model.TimeOfDay) []Slot {
	if blackedOut {
		return nil
	}
	window, open := hours[date.Weekday()]
	if !open {
		return nil
	}
	step := model.TimeOfDay(duration / time.Minute)
	if step <= 0 {
		return nil
	}

	taken := make(map[model.TimeOfDay]struct{}, len(booked))
	for _, t := range booked {
		taken[t] = struct{}{}
	}

	var slots []Slot
	dateStr := date.Format(model.DateLayout)
	for current := window.Open; current+step <= window.Close; current += step {
		if _, ok := taken[current]; ok {
			continue
		}
		slots = append(slots, Slot{
			Date:  dateStr,
			Time:  current.String(),
			Label: current.Label(),
		})
	}
	return slots
}

// HasTime reports whether a generated slot list offers the given time.
func HasTime(slots []Slot, t model.TimeOfDay) bool {
	want := t.String()
	for _, s := range slots {
		if s.Time == want {
			return true
		}
	}
	return false
}
