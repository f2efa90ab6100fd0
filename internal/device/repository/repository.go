package repository

import (
	"context"
	"errors"
	"time"

	"pushauth/backend/internal/device/domain"
)

var (
	// ErrNotFound is returned by updates addressed to a device that does not exist.
	ErrNotFound = errors.New("device: not found")
	// ErrDuplicate is returned by Create when the id is already taken.
	ErrDuplicate = errors.New("device: duplicate id")
)

// Repository defines persistence for devices. The public key is written once by Create and
// has no update path.
type Repository interface {
	// GetByID returns the device for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Device, error)
	Create(ctx context.Context, d *domain.Device) error
	// ListByUser returns the user's devices ordered by creation time.
	ListByUser(ctx context.Context, userID string) ([]*domain.Device, error)
	UpdatePushAddress(ctx context.Context, id, address string) error
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
}
