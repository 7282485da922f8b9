// Package timeslot holds the pure time arithmetic behind table bookings:
// wall-clock normalization, slot construction and the booking-window rules.
// Nothing in here touches the database or the clock; callers pass "now" in.
package timeslot

import (
	"fmt"
	"time"
)

// Date is a calendar date with no time-of-day or zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// TimeOfDay is a wall-clock time. It may carry a UTC offset when the client
// sent one; Normalize discards it, because booking requests are always
// interpreted in the restaurant's configured timezone regardless of what
// offset the client attached.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int

	hasOffset bool
	offset    int // seconds east of UTC, meaningful only when hasOffset
}

var clockLayouts = []struct {
	layout  string
	hasZone bool
}{
	{"15:04:05Z07:00", true},
	{"15:04Z07:00", true},
	{"15:04:05", false},
	{"15:04", false},
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, c := range clockLayouts {
		t, err := time.Parse(c.layout, s)
		if err != nil {
			continue
		}
		tod := TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
		if c.hasZone {
			_, off := t.Zone()
			tod.hasOffset = true
			tod.offset = off
		}
		return tod, nil
	}
	return TimeOfDay{}, fmt.Errorf("invalid time %q (want HH:MM, HH:MM:SS or with offset)", s)
}

// Normalize strips any timezone offset, keeping the clock digits as-is.
// Idempotent: Normalize(Normalize(t)) == Normalize(t).
func (t TimeOfDay) Normalize() TimeOfDay {
	t.hasOffset = false
	t.offset = 0
	return t
}

// HasOffset reports whether the parsed value carried an explicit UTC offset.
func (t TimeOfDay) HasOffset() bool { return t.hasOffset }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// secondsOfDay orders times-of-day within a single day.
func (t TimeOfDay) secondsOfDay() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

// Slot is a half-open [Start, End) interval for one table, held in the
// restaurant's local timezone until UTC() converts it for storage.
type Slot struct {
	Start time.Time
	End   time.Time
}

// UTC returns the slot endpoints as absolute instants for storage and
// comparison.
func (s Slot) UTC() (start, end time.Time) {
	return s.Start.UTC(), s.End.UTC()
}

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect.
// Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
