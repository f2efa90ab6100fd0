package repository

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"pushauth/backend/internal/device/domain"
)

// MemoryRepository is an in-process Repository for development and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	devices map[string]*domain.Device
}

// NewMemoryRepository returns an empty in-memory device repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{devices: make(map[string]*domain.Device)}
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	if !ok {
		return nil, nil
	}
	return clone(d), nil
}

func (r *MemoryRepository) Create(_ context.Context, d *domain.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[d.ID]; ok {
		return ErrDuplicate
	}
	r.devices[d.ID] = clone(d)
	return nil
}

func (r *MemoryRepository) ListByUser(_ context.Context, userID string) ([]*domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Device
	for _, d := range r.devices {
		if d.UserID == userID {
			out = append(out, clone(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) UpdatePushAddress(_ context.Context, id, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return ErrNotFound
	}
	d.PushAddress = address
	return nil
}

func (r *MemoryRepository) UpdateLastSeen(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return ErrNotFound
	}
	d.LastSeenAt = &at
	return nil
}

func clone(d *domain.Device) *domain.Device {
	cp := *d
	cp.PublicKey.Key = append([]byte(nil), d.PublicKey.Key...)
	cp.Metadata = maps.Clone(d.Metadata)
	if d.LastSeenAt != nil {
		t := *d.LastSeenAt
		cp.LastSeenAt = &t
	}
	return &cp
}
