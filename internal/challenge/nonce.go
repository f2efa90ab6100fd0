package challenge

import (
	"crypto/rand"

	"pushauth/backend/internal/platform/apperr"
)

// NonceSize is the challenge nonce length in bytes (256 bits).
const NonceSize = 32

// NewNonce returns NonceSize bytes from crypto/rand. A failing entropy source is an invariant violation.
func NewNonce() []byte {
	b := make([]byte, NonceSize)
	if _, err := rand.Read(b); err != nil {
		apperr.Invariant("entropy source failed: %v", err)
	}
	return b
}
