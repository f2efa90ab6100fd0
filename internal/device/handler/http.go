// Package handler serves device linking and push registration over HTTP.
package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pushauth/backend/internal/authz"
	"pushauth/backend/internal/device/domain"
	"pushauth/backend/internal/platform/apperr"
	"pushauth/backend/internal/platform/respond"
	"pushauth/backend/internal/signature"
)

// Registry is the device registry used by the handler.
type Registry interface {
	Link(ctx context.Context, userID string, key domain.PublicKey, metadata map[string]string) (string, error)
	RegisterPushAddress(ctx context.Context, deviceID, address string) error
	Get(ctx context.Context, deviceID string) (*domain.Device, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Device, error)
}

// Handler serves the device endpoints.
type Handler struct {
	registry Registry
	checker  authz.Checker
}

// NewHandler returns a Handler.
func NewHandler(registry Registry, checker authz.Checker) *Handler {
	return &Handler{registry: registry, checker: checker}
}

type linkRequest struct {
	UserID    string            `json:"userId"`
	Algorithm string            `json:"algorithm"`
	PublicKey string            `json:"publicKey"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type pushAddressRequest struct {
	Address string `json:"address"`
}

type deviceView struct {
	DeviceID       string            `json:"deviceId"`
	UserID         string            `json:"userId"`
	Algorithm      string            `json:"algorithm"`
	PushRegistered bool              `json:"pushRegistered"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	LastSeenAt     *time.Time        `json:"lastSeenAt,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

func toView(d *domain.Device) deviceView {
	return deviceView{
		DeviceID:       d.ID,
		UserID:         d.UserID,
		Algorithm:      string(d.PublicKey.Algorithm),
		PushRegistered: d.HasPushAddress(),
		Metadata:       d.Metadata,
		LastSeenAt:     d.LastSeenAt,
		CreatedAt:      d.CreatedAt,
	}
}

// Link handles POST /devices.
func (h *Handler) Link(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	subject, _ := authz.SubjectFrom(r.Context())
	if req.UserID == "" {
		req.UserID = subject.UserID
	}
	if err := authz.Enforce(r.Context(), h.checker, authz.Request{
		Subject:  subject,
		Action:   authz.ActionDeviceLink,
		Resource: authz.Resource{Type: "user", ID: req.UserID, OwnerID: req.UserID},
	}); err != nil {
		respond.Error(w, r, err)
		return
	}
	alg, err := signature.ParseAlgorithm(req.Algorithm)
	if err != nil {
		respond.Error(w, r, apperr.Wrap(apperr.ErrInvalidKey, err))
		return
	}
	key, err := decodeKey(req.PublicKey)
	if err != nil {
		respond.Error(w, r, apperr.Wrap(apperr.ErrInvalidKey, err))
		return
	}
	id, err := h.registry.Link(r.Context(), req.UserID, domain.PublicKey{Algorithm: alg, Key: key}, req.Metadata)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]string{"deviceId": id})
}

// RegisterPushAddress handles PUT /devices/{id}/push-address.
func (h *Handler) RegisterPushAddress(w http.ResponseWriter, r *http.Request) {
	var req pushAddressRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	d, ok := h.authorized(w, r, authz.ActionDeviceUpdate)
	if !ok {
		return
	}
	if err := h.registry.RegisterPushAddress(r.Context(), d.ID, req.Address); err != nil {
		respond.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Get handles GET /devices/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorized(w, r, authz.ActionDeviceRead)
	if !ok {
		return
	}
	respond.JSON(w, http.StatusOK, toView(d))
}

// List handles GET /devices and returns the caller's devices.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	subject, ok := authz.SubjectFrom(r.Context())
	if !ok {
		respond.Error(w, r, authz.ErrUnauthenticated)
		return
	}
	list, err := h.registry.ListByUser(r.Context(), subject.UserID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	views := make([]deviceView, 0, len(list))
	for _, d := range list {
		views = append(views, toView(d))
	}
	respond.JSON(w, http.StatusOK, map[string]any{"devices": views})
}

// authorized loads the device named in the path and checks the caller may perform action on it.
// It writes the error response and returns false otherwise.
func (h *Handler) authorized(w http.ResponseWriter, r *http.Request, action string) (*domain.Device, bool) {
	d, err := h.registry.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return nil, false
	}
	subject, _ := authz.SubjectFrom(r.Context())
	if err := authz.Enforce(r.Context(), h.checker, authz.Request{
		Subject:  subject,
		Action:   action,
		Resource: authz.Resource{Type: "device", ID: d.ID, OwnerID: d.UserID},
	}); err != nil {
		respond.Error(w, r, err)
		return nil, false
	}
	return d, true
}

var encodings = []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding}

// decodeKey reads a base64 public key in any of the common alphabets.
func decodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("publicKey is required")
	}
	for _, enc := range encodings {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, errors.New("publicKey must be base64")
}
