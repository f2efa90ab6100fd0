package repository

import (
	"context"
	"errors"
	"time"

	"pushauth/backend/internal/challenge/domain"
)

// ErrDuplicate is returned by Create when the id or nonce already exists.
var ErrDuplicate = errors.New("challenge: duplicate id or nonce")

// Repository defines persistence for challenges. Transition is the only mutation and must be an
// atomic compare-and-set on status.
type Repository interface {
	// GetByID returns the challenge for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Challenge, error)
	Create(ctx context.Context, c *domain.Challenge) error
	// ListPendingByDevice returns pending challenges for deviceID, oldest first.
	ListPendingByDevice(ctx context.Context, deviceID string) ([]*domain.Challenge, error)
	// ListExpiredPending returns up to limit pending challenges whose expiry is before now.
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Challenge, error)
	// Transition sets status to `to` and verified_at to at only if the stored status is still `from`.
	// It reports whether the update was applied; a missing challenge reports false.
	Transition(ctx context.Context, id string, from, to domain.Status, at time.Time) (bool, error)
}
