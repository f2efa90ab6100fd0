package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed or invalid.
	ErrInvalidToken = errors.New("invalid token")
)

// Token use values distinguish the primary session's access token from step-up session credentials,
// so one can never be presented as the other.
const (
	TokenUseAccess = "access"
	TokenUseStepUp = "step_up"
)

// AccessClaims holds JWT claims for the access token issued by the primary login system.
type AccessClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id,omitempty"`
	TokenUse  string `json:"token_use"`
}

// TokenProvider signs and validates JWTs using RS256 or ES256 (private/public key).
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	now        func() time.Time
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
// issuer and audience are set on every token and checked on validation. privateKey may be nil for
// a validate-only provider.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		now:        time.Now,
	}
}

// WithClock returns a copy of p that reads the current time from now.
func (p *TokenProvider) WithClock(now func() time.Time) *TokenProvider {
	cp := *p
	cp.now = now
	return &cp
}

// Now returns the provider's current time.
func (p *TokenProvider) Now() time.Time { return p.now() }

// Issuer returns the iss claim value.
func (p *TokenProvider) Issuer() string { return p.issuer }

// Audience returns the aud claim value.
func (p *TokenProvider) Audience() string { return p.audience }

// IssueAccess issues an access JWT for userID. Used by the seed tool and tests; in production the
// primary login system issues these with the same key pair.
func (p *TokenProvider) IssueAccess(userID, sessionID string) (token string, expiresAt time.Time, err error) {
	now := p.now().UTC()
	expiresAt = now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: p.Registered(userID, "", now, expiresAt),
		SessionID:        sessionID,
		TokenUse:         TokenUseAccess,
	}
	token, err = p.Sign(claims)
	return token, expiresAt, err
}

// ValidateAccess parses and validates an access token (signature, exp, iss, aud, token_use).
func (p *TokenProvider) ValidateAccess(tokenString string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := p.Parse(tokenString, &claims); err != nil {
		return nil, err
	}
	if claims.TokenUse != TokenUseAccess || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// Registered builds the standard claims for a token issued now and expiring at exp.
func (p *TokenProvider) Registered(subject, id string, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        id,
		Subject:   subject,
		Issuer:    p.issuer,
		Audience:  jwt.ClaimStrings{p.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

// Sign signs claims with the provider's private key, choosing RS256 or ES256 from the key type.
func (p *TokenProvider) Sign(claims jwt.Claims) (string, error) {
	if p.privateKey == nil {
		return "", ErrInvalidKey
	}
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidKey
	}
	return jwt.NewWithClaims(method, claims).SignedString(p.privateKey)
}

// Parse validates tokenString's signature, expiry, issuer and audience and decodes it into claims.
// Any failure is reported as ErrInvalidToken.
func (p *TokenProvider) Parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
			return p.publicKey, nil
		}
		return nil, ErrInvalidToken
	},
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
