// Package session mints the short-lived step-up credential handed out once a challenge is approved.
package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pushauth/backend/internal/security"
)

// DefaultTTL is the credential lifetime when none is configured.
const DefaultTTL = 24 * time.Hour

// ErrInvalidCredential is returned by Validate for a token that is not a valid step-up credential.
var ErrInvalidCredential = errors.New("session: invalid credential")

// Claims are the JWT claims of a step-up credential. jti carries the challenge id.
type Claims struct {
	jwt.RegisteredClaims
	DeviceID    string `json:"device_id"`
	ChallengeID string `json:"challenge_id"`
	TokenUse    string `json:"token_use"`
}

// Credential is a minted step-up credential. It is never persisted.
type Credential struct {
	Token       string
	UserID      string
	DeviceID    string
	ChallengeID string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Issuer mints and validates step-up credentials.
type Issuer struct {
	tokens *security.TokenProvider
	ttl    time.Duration
}

// NewIssuer returns an Issuer signing with tokens. ttl <= 0 uses DefaultTTL.
func NewIssuer(tokens *security.TokenProvider, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{tokens: tokens, ttl: ttl}
}

// TTL returns the credential lifetime.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Mint signs a credential binding userID, deviceID and challengeID.
func (i *Issuer) Mint(userID, deviceID, challengeID string) (*Credential, error) {
	if userID == "" || deviceID == "" || challengeID == "" {
		return nil, errors.New("session: user, device and challenge ids are required")
	}
	now := i.tokens.Now().UTC().Truncate(time.Second)
	exp := now.Add(i.ttl)
	token, err := i.tokens.Sign(Claims{
		RegisteredClaims: i.tokens.Registered(userID, challengeID, now, exp),
		DeviceID:         deviceID,
		ChallengeID:      challengeID,
		TokenUse:         security.TokenUseStepUp,
	})
	if err != nil {
		return nil, err
	}
	return &Credential{
		Token:       token,
		UserID:      userID,
		DeviceID:    deviceID,
		ChallengeID: challengeID,
		IssuedAt:    now,
		ExpiresAt:   exp,
	}, nil
}

// Validate checks signature, expiry, issuer, audience and token_use, and returns the claims.
func (i *Issuer) Validate(token string) (*Claims, error) {
	var claims Claims
	if err := i.tokens.Parse(token, &claims); err != nil {
		return nil, ErrInvalidCredential
	}
	if claims.TokenUse != security.TokenUseStepUp || claims.ID != claims.ChallengeID {
		return nil, ErrInvalidCredential
	}
	return &claims, nil
}
