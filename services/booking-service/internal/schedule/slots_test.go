package schedule

import (
	"testing"
	"time"

	"github.com/handybook/handybook/services/booking-service/internal/model"
)

// 2026-03-02 is a Monday.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func TestGenerateSlots_FullMonday(t *testing.T) {
	slots := GenerateSlots(monday, DefaultWeekHours(), time.Hour, false, nil)

	if len(slots) != 10 {
		t.Fatalf("expected 10 slots for Monday 09:00-19:00, got %d", len(slots))
	}
	if slots[0].Time != "09:00" || slots[0].Label != "09:00 AM" {
		t.Errorf("first slot = %q/%q, want 09:00/09:00 AM", slots[0].Time, slots[0].Label)
	}
	last := slots[len(slots)-1]
	if last.Time != "18:00" || last.Label != "06:00 PM" {
		t.Errorf("last slot = %q/%q, want 18:00/06:00 PM", last.Time, last.Label)
	}
	for _, s := range slots {
		if s.Date != "2026-03-02" {
			t.Errorf("slot date = %q, want 2026-03-02", s.Date)
		}
	}
	for i := 1; i < len(slots); i++ {
		if slots[i].Time <= slots[i-1].Time {
			t.Errorf("slots out of order: %q after %q", slots[i].Time, slots[i-1].Time)
		}
	}
}

func TestGenerateSlots_BookedTimeOmitted(t *testing.T) {
	booked := []model.TimeOfDay{model.NewTimeOfDay(13, 0)}
	slots := GenerateSlots(monday, DefaultWeekHours(), time.Hour, false, booked)

	if len(slots) != 9 {
		t.Fatalf("expected 9 slots with one booking, got %d", len(slots))
	}
	if HasTime(slots, model.NewTimeOfDay(13, 0)) {
		t.Error("13:00 should be omitted")
	}
	if !HasTime(slots, model.NewTimeOfDay(12, 0)) || !HasTime(slots, model.NewTimeOfDay(14, 0)) {
		t.Error("neighbouring slots should remain available")
	}
}

func TestGenerateSlots_BlackoutPrecedence(t *testing.T) {
	if slots := GenerateSlots(monday, DefaultWeekHours(), time.Hour, true, nil); len(slots) != 0 {
		t.Fatalf("blacked-out date should have no slots, got %d", len(slots))
	}
}

func TestGenerateSlots_ClosedWeekday(t *testing.T) {
	hours := WeekHours{
		time.Monday: {Open: model.NewTimeOfDay(9, 0), Close: model.NewTimeOfDay(17, 0)},
	}
	sunday := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if slots := GenerateSlots(sunday, hours, time.Hour, false, nil); len(slots) != 0 {
		t.Fatalf("closed weekday should have no slots, got %d", len(slots))
	}
}

func TestGenerateSlots_TrailingPartialWindowDropped(t *testing.T) {
	hours := WeekHours{
		time.Monday: {Open: model.NewTimeOfDay(9, 0), Close: model.NewTimeOfDay(10, 30)},
	}
	slots := GenerateSlots(monday, hours, time.Hour, false, nil)
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot (09:00 only; 10:00-10:30 too short), got %d", len(slots))
	}
	if slots[0].Time != "09:00" {
		t.Errorf("slot = %q, want 09:00", slots[0].Time)
	}
}

func TestGenerateSlots_WeekendHours(t *testing.T) {
	saturday := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	slots := GenerateSlots(saturday, DefaultWeekHours(), time.Hour, false, nil)
	if len(slots) != 5 {
		t.Fatalf("expected 5 slots for Saturday 12:00-17:00, got %d", len(slots))
	}
	if slots[0].Time != "12:00" || slots[len(slots)-1].Time != "16:00" {
		t.Errorf("got range %q..%q, want 12:00..16:00", slots[0].Time, slots[len(slots)-1].Time)
	}
}

func TestParseWeekHours(t *testing.T) {
	hours, err := ParseWeekHours("mon=09:00-19:00, sat=12:00-17:00")
	if err != nil {
		t.Fatalf("ParseWeekHours: %v", err)
	}
	if len(hours) != 2 {
		t.Fatalf("expected 2 configured days, got %d", len(hours))
	}
	mon := hours[time.Monday]
	if mon.Open != model.NewTimeOfDay(9, 0) || mon.Close != model.NewTimeOfDay(19, 0) {
		t.Errorf("monday hours = %v-%v", mon.Open, mon.Close)
	}
	if _, ok := hours[time.Tuesday]; ok {
		t.Error("tuesday should be closed when not listed")
	}

	if _, err := ParseWeekHours("mon=19:00-09:00"); err == nil {
		t.Error("expected error for inverted window")
	}
	if _, err := ParseWeekHours("blursday=09:00-17:00"); err == nil {
		t.Error("expected error for unknown weekday")
	}
	if _, err := ParseWeekHours("mon=09:00"); err == nil {
		t.Error("expected error for missing close time")
	}

	def, err := ParseWeekHours("")
	if err != nil {
		t.Fatalf("ParseWeekHours(\"\"): %v", err)
	}
	if len(def) != 7 {
		t.Errorf("default hours should cover all 7 days, got %d", len(def))
	}
}
