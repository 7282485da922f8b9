package timeslot

import (
	"time"

	"tablebook/internal/apperr"
)

// Rules carries the booking-window configuration. It is built once at startup
// and passed in explicitly; the validator never reads ambient settings.
type Rules struct {
	Location     *time.Location
	Open         TimeOfDay
	Close        TimeOfDay
	SlotMinutes  int
	Duration     time.Duration
	MaxDaysAhead int
}

// DefaultRules mirrors the stock restaurant configuration: 12:00-22:00 local,
// 2-hour bookings on a 15-minute grid, up to 30 days ahead.
func DefaultRules() Rules {
	return Rules{
		Location:     time.UTC,
		Open:         TimeOfDay{Hour: 12},
		Close:        TimeOfDay{Hour: 22},
		SlotMinutes:  15,
		Duration:     120 * time.Minute,
		MaxDaysAhead: 30,
	}
}

// BuildSlot combines a calendar date and a time-of-day into a concrete
// fixed-duration interval in the configured timezone. The time-of-day is
// normalized first, so any client-supplied offset is ignored.
func (r Rules) BuildSlot(d Date, t TimeOfDay) Slot {
	t = t.Normalize()
	start := time.Date(d.Year, d.Month, d.Day, t.Hour, t.Minute, t.Second, 0, r.Location)
	return Slot{Start: start, End: start.Add(r.Duration)}
}

// Validate runs the window checks in a fixed order and returns the first
// violation as a business-rule error:
//
//  1. within working hours (local time-of-day comparison)
//  2. start and end on the same calendar day
//  3. start not in the past
//  4. start within the booking horizon
//  5. start aligned to the slot grid, with zero seconds
func (r Rules) Validate(s Slot, now time.Time) error {
	startLocal := s.Start.In(r.Location)
	endLocal := s.End.In(r.Location)

	if clockSeconds(startLocal) < r.Open.secondsOfDay() || clockSeconds(endLocal) > r.Close.secondsOfDay() {
		return apperr.BusinessRule("Requested time is outside of working hours")
	}
	sy, sm, sd := startLocal.Date()
	ey, em, ed := endLocal.Date()
	if sy != ey || sm != em || sd != ed {
		return apperr.BusinessRule("Requested time is outside of working hours")
	}
	if s.Start.Before(now) {
		return apperr.BusinessRule("Booking time cannot be in the past")
	}
	if s.Start.After(now.AddDate(0, 0, r.MaxDaysAhead)) {
		return apperr.BusinessRule("Booking date is too far in the future")
	}
	if startLocal.Minute()%r.SlotMinutes != 0 || startLocal.Second() != 0 || startLocal.Nanosecond() != 0 {
		return apperr.BusinessRule("Booking time must align to the slot minutes")
	}
	return nil
}

func clockSeconds(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}
