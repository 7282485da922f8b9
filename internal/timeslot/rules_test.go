package timeslot

import (
	"testing"
	"time"

	"tablebook/internal/apperr"
)

var ruleNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func buildAt(t *testing.T, r Rules, date, clock string) Slot {
	t.Helper()
	d, err := ParseDate(date)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	tod, err := ParseTimeOfDay(clock)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return r.BuildSlot(d, tod)
}

func TestBuildSlotFixedDuration(t *testing.T) {
	r := DefaultRules()
	s := buildAt(t, r, "2026-03-05", "18:00")

	if !s.End.Equal(s.Start.Add(r.Duration)) {
		t.Fatalf("end = %v, want start + %v", s.End, r.Duration)
	}
	start, end := s.UTC()
	if !start.Equal(time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", start)
	}
	if !end.Equal(time.Date(2026, 3, 5, 20, 0, 0, 0, time.UTC)) {
		t.Fatalf("end = %v", end)
	}
}

func TestBuildSlotIgnoresClientOffset(t *testing.T) {
	r := DefaultRules()
	withOffset := buildAt(t, r, "2026-03-05", "18:00+05:30")
	plain := buildAt(t, r, "2026-03-05", "18:00")

	if !withOffset.Start.Equal(plain.Start) {
		t.Fatalf("offset changed the slot: %v vs %v", withOffset.Start, plain.Start)
	}
}

func TestBuildSlotUsesConfiguredZone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	r := DefaultRules()
	r.Location = loc

	s := buildAt(t, r, "2026-03-05", "18:00")
	start, _ := s.UTC()
	// 18:00 EST is 23:00 UTC.
	if !start.Equal(time.Date(2026, 3, 5, 23, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v, want 23:00 UTC", start)
	}
}

func TestValidateAcceptsWellFormedSlot(t *testing.T) {
	r := DefaultRules()
	if err := r.Validate(buildAt(t, r, "2026-03-05", "18:15"), ruleNow); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	r := DefaultRules()
	cases := []struct {
		name  string
		date  string
		clock string
		msg   string
	}{
		{"before opening", "2026-03-05", "11:00", "Requested time is outside of working hours"},
		{"ends after closing", "2026-03-05", "20:30", "Requested time is outside of working hours"},
		{"in the past", "2026-02-27", "18:00", "Booking time cannot be in the past"},
		{"beyond horizon", "2026-04-15", "18:00", "Booking date is too far in the future"},
		{"off the slot grid", "2026-03-05", "18:07", "Booking time must align to the slot minutes"},
		{"seconds set", "2026-03-05", "18:00:30", "Booking time must align to the slot minutes"},
	}
	for _, c := range cases {
		err := r.Validate(buildAt(t, r, c.date, c.clock), ruleNow)
		if apperr.KindOf(err) != apperr.KindBusinessRule {
			t.Fatalf("%s: err = %v, want business rule", c.name, err)
		}
		if err.Error() != c.msg {
			t.Fatalf("%s: message = %q, want %q", c.name, err.Error(), c.msg)
		}
	}
}

func TestValidateBoundaryTimes(t *testing.T) {
	r := DefaultRules()

	// Opening time with the slot ending exactly at close is fine.
	r.Duration = 10 * time.Hour
	if err := r.Validate(buildAt(t, r, "2026-03-05", "12:00"), ruleNow); err != nil {
		t.Fatalf("open-to-close slot rejected: %v", err)
	}

	// A slot spilling past midnight reads as outside working hours.
	r.Duration = 13 * time.Hour
	err := r.Validate(buildAt(t, r, "2026-03-05", "12:00"), ruleNow)
	if err == nil || err.Error() != "Requested time is outside of working hours" {
		t.Fatalf("midnight-crossing slot: err = %v", err)
	}
}

func TestValidateHorizonEdge(t *testing.T) {
	r := DefaultRules()

	// The horizon is measured from the current instant, not the calendar day.
	if err := r.Validate(buildAt(t, r, "2026-03-31", "18:00"), ruleNow); err != nil {
		t.Fatalf("in-horizon slot rejected: %v", err)
	}
	err := r.Validate(buildAt(t, r, "2026-04-01", "18:00"), ruleNow)
	if err == nil || err.Error() != "Booking date is too far in the future" {
		t.Fatalf("past-horizon slot: err = %v", err)
	}
}
