package domain

import (
	"errors"
	"time"
)

// User is the account that owns devices. Authentication of the user itself is handled by the
// primary login system; this service only needs identity and status.
type User struct {
	ID           string
	Email        string
	Name         string
	Status       UserStatus
	PasswordHash string // optional; bcrypt hash written by the seed tool for the primary login system
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// Active reports whether the user may approve challenges.
func (u *User) Active() bool { return u != nil && u.Status == UserStatusActive }

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("id is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}
