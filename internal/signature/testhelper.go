package signature

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// TestSigner holds a freshly generated key pair and signs like a device would.
// For unit tests only. Callers must not use in production.
type TestSigner struct {
	Alg       Algorithm
	PublicKey []byte
	sign      func(msg []byte) []byte
}

// Sign returns a signature of msg under the signer's private key.
func (s *TestSigner) Sign(msg []byte) []byte { return s.sign(msg) }

// NewTestSigner generates a key pair for alg (Ed25519 or MLDSA65).
// For unit tests only. Callers must not use in production.
func NewTestSigner(alg Algorithm) (*TestSigner, error) {
	switch alg {
	case Ed25519:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		return &TestSigner{Alg: alg, PublicKey: pub, sign: func(msg []byte) []byte {
			return ed25519.Sign(priv, msg)
		}}, nil
	case MLDSA65:
		scheme := mldsa65.Scheme()
		pk, sk, err := scheme.GenerateKey()
		if err != nil {
			return nil, err
		}
		raw, err := pk.MarshalBinary()
		if err != nil {
			return nil, err
		}
		return &TestSigner{Alg: alg, PublicKey: raw, sign: func(msg []byte) []byte {
			return scheme.Sign(sk, msg, nil)
		}}, nil
	default:
		return nil, fmt.Errorf("signature: no test signer for %q", alg)
	}
}
