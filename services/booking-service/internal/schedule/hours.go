package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/handybook/handybook/services/booking-service/internal/model"
)

// HoursRange is one weekday's open window. Close is exclusive: the last slot
// starts at or before Close minus the slot duration.
type HoursRange struct {
	Open  model.TimeOfDay
	Close model.TimeOfDay
}

// WeekHours maps weekdays to business hours. A missing weekday means closed.
type WeekHours map[time.Weekday]HoursRange

// Settings is the injected scheduling configuration. It is read-only after
// startup, so it is safe to share across request handlers.
type Settings struct {
	Hours        WeekHours
	SlotDuration time.Duration
	Location     *time.Location
}

// DefaultWeekHours mirrors the shop's posted hours: weekdays 09:00-19:00,
// weekends 12:00-17:00.
func DefaultWeekHours() WeekHours {
	weekday := HoursRange{Open: model.NewTimeOfDay(9, 0), Close: model.NewTimeOfDay(19, 0)}
	weekend := HoursRange{Open: model.NewTimeOfDay(12, 0), Close: model.NewTimeOfDay(17, 0)}
	return WeekHours{
		time.Monday:    weekday,
		time.Tuesday:   weekday,
		time.Wednesday: weekday,
		time.Thursday:  weekday,
		time.Friday:    weekday,
		time.Saturday:  weekend,
		time.Sunday:    weekend,
	}
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// ParseWeekHours parses a settings string of the form
// "mon=09:00-19:00,tue=09:00-19:00,sat=12:00-17:00". Days not listed are
// closed. An empty string yields the defaults.
func ParseWeekHours(raw string) (WeekHours, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultWeekHours(), nil
	}

	hours := WeekHours{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		day, window, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid business hours entry %q", part)
		}
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(day))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", day)
		}
		openStr, closeStr, ok := strings.Cut(window, "-")
		if !ok {
			return nil, fmt.Errorf("invalid hours window %q: want HH:MM-HH:MM", window)
		}
		open, err := model.ParseTimeOfDay(openStr)
		if err != nil {
			return nil, err
		}
		closeAt, err := model.ParseTimeOfDay(closeStr)
		if err != nil {
			return nil, err
		}
		if closeAt <= open {
			return nil, fmt.Errorf("hours window %q closes before it opens", window)
		}
		hours[wd] = HoursRange{Open: open, Close: closeAt}
	}
	if len(hours) == 0 {
		return DefaultWeekHours(), nil
	}
	return hours, nil
}
