package model

import "time"

type Table struct {
	ID        string
	Name      string
	Seats     int
	CreatedAt time.Time
}
