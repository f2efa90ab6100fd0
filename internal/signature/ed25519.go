package signature

import (
	"crypto/ed25519"
	"fmt"
)

type ed25519Scheme struct{}

// NewEd25519 returns the Ed25519 scheme. Keys are the 32-byte raw public key.
func NewEd25519() Scheme { return ed25519Scheme{} }

func (ed25519Scheme) Algorithm() Algorithm { return Ed25519 }

func (ed25519Scheme) ValidatePublicKey(key []byte) error {
	if len(key) != ed25519.PublicKeySize {
		return fmt.Errorf("ed25519: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(key))
	}
	return nil
}

func (ed25519Scheme) Verify(message, sig, key []byte) bool {
	if len(key) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(key), message, sig)
}
