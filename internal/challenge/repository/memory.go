package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"pushauth/backend/internal/challenge/domain"
)

// MemoryRepository is an in-process Repository for development and tests.
type MemoryRepository struct {
	mu         sync.Mutex
	challenges map[string]*domain.Challenge
	nonces     map[string]string
}

// NewMemoryRepository returns an empty in-memory challenge repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		challenges: make(map[string]*domain.Challenge),
		nonces:     make(map[string]string),
	}
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*domain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[id]
	if !ok {
		return nil, nil
	}
	return clone(c), nil
}

func (r *MemoryRepository) Create(_ context.Context, c *domain.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.challenges[c.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := r.nonces[string(c.Nonce)]; ok {
		return ErrDuplicate
	}
	r.challenges[c.ID] = clone(c)
	r.nonces[string(c.Nonce)] = c.ID
	return nil
}

func (r *MemoryRepository) ListPendingByDevice(_ context.Context, deviceID string) ([]*domain.Challenge, error) {
	return r.collect(func(c *domain.Challenge) bool {
		return c.DeviceID == deviceID && c.Status == domain.StatusPending
	}, 0, func(a, b *domain.Challenge) bool { return a.CreatedAt.Before(b.CreatedAt) }), nil
}

func (r *MemoryRepository) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]*domain.Challenge, error) {
	return r.collect(func(c *domain.Challenge) bool {
		return c.Status == domain.StatusPending && c.ExpiresAt.Before(now)
	}, limit, func(a, b *domain.Challenge) bool { return a.ExpiresAt.Before(b.ExpiresAt) }), nil
}

func (r *MemoryRepository) Transition(_ context.Context, id string, from, to domain.Status, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	c.VerifiedAt = &at
	return true, nil
}

func (r *MemoryRepository) collect(keep func(*domain.Challenge) bool, limit int, less func(a, b *domain.Challenge) bool) []*domain.Challenge {
	r.mu.Lock()
	var out []*domain.Challenge
	for _, c := range r.challenges {
		if keep(c) {
			out = append(out, clone(c))
		}
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func clone(c *domain.Challenge) *domain.Challenge {
	cp := *c
	cp.Nonce = append([]byte(nil), c.Nonce...)
	if c.VerifiedAt != nil {
		t := *c.VerifiedAt
		cp.VerifiedAt = &t
	}
	return &cp
}
