package domain

import "time"

// User represents an account that can sign in and manage events.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
