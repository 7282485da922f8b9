package model

import (
	"fmt"
	"time"
)

// BookingStatus is a closed set: a booking is either Active or Canceled and
// Canceled is terminal.
type BookingStatus int

const (
	StatusActive BookingStatus = iota + 1
	StatusCanceled
)

func (s BookingStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("BookingStatus(%d)", int(s))
	}
}

// ParseBookingStatus maps the stored column value back to the closed type.
func ParseBookingStatus(s string) (BookingStatus, error) {
	switch s {
	case "active":
		return StatusActive, nil
	case "canceled":
		return StatusCanceled, nil
	default:
		return 0, fmt.Errorf("unknown booking status %q", s)
	}
}

type Booking struct {
	ID        string
	TableID   string
	UserID    string
	StartTime time.Time
	EndTime   time.Time
	Status    BookingStatus
	CreatedAt time.Time
}
