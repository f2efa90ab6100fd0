package domain

import (
	"encoding/hex"
	"time"

	"pushauth/backend/internal/platform/apperr"
)

// Status is the lifecycle state of a challenge. Pending is the only non-terminal state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusExpired  Status = "expired"
)

// DefaultAction is used when a challenge is created without an action tag.
const DefaultAction = "login"

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool { return s != StatusPending }

// ParseStatus converts a stored status. An unknown value means the record is corrupt and panics
// with an invariant violation.
func ParseStatus(s string) Status {
	switch st := Status(s); st {
	case StatusPending, StatusApproved, StatusDenied, StatusExpired:
		return st
	}
	apperr.Invariant("unknown challenge status %q", s)
	return ""
}

// Challenge is a single-use request for a device to sign Nonce. ExpiresAt is fixed at creation.
type Challenge struct {
	ID         string
	UserID     string
	DeviceID   string
	Nonce      []byte
	Action     string
	Status     Status
	CreatedAt  time.Time
	ExpiresAt  time.Time
	VerifiedAt *time.Time // set only on the terminal transition
}

// ExpiredAt reports whether the challenge has passed its expiry at now.
func (c *Challenge) ExpiredAt(now time.Time) bool { return now.After(c.ExpiresAt) }

// NonceHex is the nonce as sent to the device.
func (c *Challenge) NonceHex() string { return hex.EncodeToString(c.Nonce) }
