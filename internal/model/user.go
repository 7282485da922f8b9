package model

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string
	FullName     string
	PhoneNumber  string
	IsAdmin      bool
	CreatedAt    time.Time
}
