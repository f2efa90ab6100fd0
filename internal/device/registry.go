// Package device links secondary devices to users and holds their verification keys and push addresses.
package device

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"pushauth/backend/internal/device/domain"
	devicerepo "pushauth/backend/internal/device/repository"
	"pushauth/backend/internal/platform/apperr"
	"pushauth/backend/internal/signature"
	"pushauth/backend/internal/telemetry"
	userrepo "pushauth/backend/internal/user/repository"
)

// KeyValidator checks that a public key is well formed for its algorithm.
type KeyValidator interface {
	ValidatePublicKey(key []byte, alg signature.Algorithm) error
}

// AddressValidator checks the shape of a push address before it is stored.
type AddressValidator func(address string) error

// Registry binds devices to users.
type Registry struct {
	devices      devicerepo.Repository
	users        userrepo.Repository
	keys         KeyValidator
	validateAddr AddressValidator
	events       telemetry.EventEmitter
	now          func() time.Time
}

// NewRegistry returns a Registry. validateAddr may be nil, in which case any non-empty address is accepted.
func NewRegistry(devices devicerepo.Repository, users userrepo.Repository, keys KeyValidator, validateAddr AddressValidator) *Registry {
	return &Registry{
		devices:      devices,
		users:        users,
		keys:         keys,
		validateAddr: validateAddr,
		now:          time.Now,
	}
}

// WithEmitter makes the registry publish device.linked and device.push_registered events to e.
func (r *Registry) WithEmitter(e telemetry.EventEmitter) *Registry {
	r.events = e
	return r
}

func (r *Registry) emit(ctx context.Context, eventType string, d *domain.Device, metadata any) {
	if r.events == nil {
		return
	}
	ev := telemetry.NewEvent(eventType, "device_registry", metadata)
	ev.UserID = d.UserID
	ev.DeviceID = d.ID
	telemetry.EmitAsync(r.events, ctx, ev)
}

// Link creates a device for userID holding key and returns the new device ID.
func (r *Registry) Link(ctx context.Context, userID string, key domain.PublicKey, metadata map[string]string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", apperr.ErrUserNotFound
	}
	u, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrStoreUnavailable, err)
	}
	if u == nil {
		return "", apperr.ErrUserNotFound
	}
	if err := r.keys.ValidatePublicKey(key.Key, key.Algorithm); err != nil {
		return "", apperr.Wrap(apperr.ErrInvalidKey, err)
	}
	d := &domain.Device{
		ID:     uuid.New().String(),
		UserID: userID,
		PublicKey: domain.PublicKey{
			Algorithm: key.Algorithm,
			Key:       append([]byte(nil), key.Key...),
		},
		Metadata:  metadata,
		CreatedAt: r.now().UTC(),
	}
	if err := r.devices.Create(ctx, d); err != nil {
		if errors.Is(err, devicerepo.ErrDuplicate) {
			apperr.Invariant("device id %s already exists", d.ID)
		}
		return "", apperr.Wrap(apperr.ErrStoreUnavailable, err)
	}
	log.Printf("device: linked %s to user %s (%s)", d.ID, userID, key.Algorithm)
	r.emit(ctx, telemetry.EventDeviceLinked, d, map[string]any{"algorithm": key.Algorithm})
	return d.ID, nil
}

// RegisterPushAddress sets the address notifications for deviceID are delivered to.
func (r *Registry) RegisterPushAddress(ctx context.Context, deviceID, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return apperr.ErrInvalidPushAddress
	}
	if r.validateAddr != nil {
		if err := r.validateAddr(address); err != nil {
			return apperr.Wrap(apperr.ErrInvalidPushAddress, err)
		}
	}
	if err := r.devices.UpdatePushAddress(ctx, deviceID, address); err != nil {
		if errors.Is(err, devicerepo.ErrNotFound) {
			return apperr.ErrDeviceNotFound
		}
		return apperr.Wrap(apperr.ErrStoreUnavailable, err)
	}
	r.emit(ctx, telemetry.EventDevicePushRegistered, &domain.Device{ID: deviceID}, nil)
	return nil
}

// Get returns the device for deviceID.
func (r *Registry) Get(ctx context.Context, deviceID string) (*domain.Device, error) {
	if strings.TrimSpace(deviceID) == "" {
		return nil, apperr.ErrDeviceNotFound
	}
	d, err := r.devices.GetByID(ctx, deviceID)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStoreUnavailable, err)
	}
	if d == nil {
		return nil, apperr.ErrDeviceNotFound
	}
	return d, nil
}

// ListByUser returns the devices linked to userID.
func (r *Registry) ListByUser(ctx context.Context, userID string) ([]*domain.Device, error) {
	list, err := r.devices.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStoreUnavailable, err)
	}
	return list, nil
}

// Touch records that deviceID was just heard from.
func (r *Registry) Touch(ctx context.Context, deviceID string) error {
	if err := r.devices.UpdateLastSeen(ctx, deviceID, r.now().UTC()); err != nil {
		if errors.Is(err, devicerepo.ErrNotFound) {
			return apperr.ErrDeviceNotFound
		}
		return apperr.Wrap(apperr.ErrStoreUnavailable, err)
	}
	return nil
}
