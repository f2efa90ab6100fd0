package repository

import (
	"context"
	"errors"

	"pushauth/backend/internal/user/domain"
)

// ErrDuplicate is returned by Create when the id or email is already taken.
var ErrDuplicate = errors.New("user: duplicate id or email")

// Repository defines persistence for users.
type Repository interface {
	// GetByID returns the user for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByEmail returns the user for email, or nil if not found.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}
