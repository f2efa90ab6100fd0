package domain

import (
	"time"

	"pushauth/backend/internal/signature"
)

// PublicKey is a device verification key tagged with its algorithm. Immutable once linked.
type PublicKey struct {
	Algorithm signature.Algorithm
	Key       []byte
}

// Device is a secondary device linked to a user. It holds the key used to verify challenge
// signatures and the address notifications are pushed to.
type Device struct {
	ID          string
	UserID      string
	PublicKey   PublicKey
	PushAddress string // empty until the device completes push registration
	Metadata    map[string]string
	LastSeenAt  *time.Time
	CreatedAt   time.Time
}

// HasPushAddress reports whether the device can receive notifications.
func (d *Device) HasPushAddress() bool { return d.PushAddress != "" }

// OwnedBy reports whether the device belongs to userID.
func (d *Device) OwnedBy(userID string) bool { return d != nil && userID != "" && d.UserID == userID }
