// Package handler exposes the challenge manager over HTTP.
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
	"pushauth/backend/internal/challenge/domain"
	devicedomain "pushauth/backend/internal/device/domain"
	"pushauth/backend/internal/platform/apperr"
	"pushauth/backend/internal/platform/respond"
	"pushauth/backend/internal/session"
)

// Manager is the challenge lifecycle used by the handler.
type Manager interface {
	Create(ctx context.Context, userID, deviceID, action string) (*domain.Challenge, error)
	Verify(ctx context.Context, challengeID string, sig, claimedPublicKey []byte) (*session.Credential, error)
	Get(ctx context.Context, id string) (*domain.Challenge, error)
	ListPending(ctx context.Context, deviceID string) ([]*domain.Challenge, error)
}

// DeviceLookup resolves a device so the handler can check who owns it.
type DeviceLookup interface {
	Get(ctx context.Context, deviceID string) (*devicedomain.Device, error)
}

// Handler serves the challenge endpoints.
type Handler struct {
	manager Manager
	devices DeviceLookup
	checker authz.Checker
}

// NewHandler returns a Handler. checker decides who may create and read challenges.
func NewHandler(manager Manager, devices DeviceLookup, checker authz.Checker) *Handler {
	return &Handler{manager: manager, devices: devices, checker: checker}
}

type createRequest struct {
	UserID   string `json:"userId"`
	DeviceID string `json:"deviceId"`
	Action   string `json:"action"`
}

type createResponse struct {
	ChallengeID string    `json:"challengeId"`
	Nonce       string    `json:"nonce"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Status      string    `json:"status"`
}

type dispatchFailedResponse struct {
	respond.ErrorBody
	ChallengeID string `json:"challengeId"`
}

type verifyRequest struct {
	Signature string `json:"signature"`
	PublicKey string `json:"publicKey,omitempty"`
}

type verifyResponse struct {
	SessionCredential string    `json:"sessionCredential"`
	ExpiresAt         time.Time `json:"expiresAt"`
	Status            string    `json:"status"`
}

type challengeView struct {
	ChallengeID string     `json:"challengeId"`
	UserID      string     `json:"userId"`
	DeviceID    string     `json:"deviceId"`
	Action      string     `json:"action"`
	Status      string     `json:"status"`
	Nonce       string     `json:"nonce"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	VerifiedAt  *time.Time `json:"verifiedAt,omitempty"`
}

func toView(c *domain.Challenge) challengeView {
	return challengeView{
		ChallengeID: c.ID,
		UserID:      c.UserID,
		DeviceID:    c.DeviceID,
		Action:      c.Action,
		Status:      string(c.Status),
		Nonce:       c.NonceHex(),
		CreatedAt:   c.CreatedAt,
		ExpiresAt:   c.ExpiresAt,
		VerifiedAt:  c.VerifiedAt,
	}
}

// Create handles POST /challenges. userId defaults to the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	subject, _ := authz.SubjectFrom(r.Context())
	if req.UserID == "" {
		req.UserID = subject.UserID
	}
	if strings.TrimSpace(req.DeviceID) == "" {
		respond.Error(w, r, apperr.Wrap(apperr.ErrInvalidRequest, errors.New("deviceId is required")))
		return
	}
	if err := authz.Enforce(r.Context(), h.checker, authz.Request{
		Subject:  subject,
		Action:   authz.ActionChallengeCreate,
		Resource: authz.Resource{Type: "user", ID: req.UserID, OwnerID: req.UserID},
	}); err != nil {
		respond.Error(w, r, err)
		return
	}

	c, err := h.manager.Create(r.Context(), req.UserID, req.DeviceID, req.Action)
	if err != nil {
		if c != nil && errors.Is(err, apperr.ErrDispatchFailure) {
			status, body := respond.Describe(err)
			respond.JSON(w, status, dispatchFailedResponse{ErrorBody: body, ChallengeID: c.ID})
			return
		}
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, createResponse{
		ChallengeID: c.ID,
		Nonce:       c.NonceHex(),
		ExpiresAt:   c.ExpiresAt,
		Status:      string(c.Status),
	})
}

// Verify handles POST /challenges/{id}/verify. It is called by the device and carries no bearer token;
// the signature is the credential.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	// A signature that is empty or not base64 cannot verify; it still resolves the challenge as denied.
	sig, err := decodeBase64(req.Signature)
	if err != nil {
		sig = []byte(req.Signature)
	}
	var claimed []byte
	if req.PublicKey != "" {
		if claimed, err = decodeBase64(req.PublicKey); err != nil {
			respond.Error(w, r, apperr.Wrap(apperr.ErrInvalidRequest, errors.New("publicKey must be base64")))
			return
		}
	}
	cred, err := h.manager.Verify(r.Context(), chi.URLParam(r, "id"), sig, claimed)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, verifyResponse{
		SessionCredential: cred.Token,
		ExpiresAt:         cred.ExpiresAt,
		Status:            string(domain.StatusApproved),
	})
}

// Get handles GET /challenges/{id} for the challenge's owner.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.manager.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	subject, _ := authz.SubjectFrom(r.Context())
	if err := authz.Enforce(r.Context(), h.checker, authz.Request{
		Subject:  subject,
		Action:   authz.ActionChallengeRead,
		Resource: authz.Resource{Type: "challenge", ID: c.ID, OwnerID: c.UserID},
	}); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toView(c))
}

// ListPending handles GET /devices/{id}/challenges: the poll channel for devices that missed a push.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	d, err := h.devices.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	subject, _ := authz.SubjectFrom(r.Context())
	if err := authz.Enforce(r.Context(), h.checker, authz.Request{
		Subject:  subject,
		Action:   authz.ActionChallengeRead,
		Resource: authz.Resource{Type: "device", ID: d.ID, OwnerID: d.UserID},
	}); err != nil {
		respond.Error(w, r, err)
		return
	}
	list, err := h.manager.ListPending(r.Context(), d.ID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	views := make([]challengeView, 0, len(list))
	for _, c := range list {
		views = append(views, toView(c))
	}
	respond.JSON(w, http.StatusOK, map[string]any{"challenges": views})
}

// decodeBase64 accepts standard or URL-safe base64, padded or not.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, errors.New("invalid base64")
}
