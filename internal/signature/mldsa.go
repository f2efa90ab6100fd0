package signature

import (
	"fmt"

	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
)

type mldsaScheme struct {
	alg    Algorithm
	scheme sign.Scheme
}

// NewMLDSA returns the FIPS 204 ML-DSA scheme for alg (MLDSA44, MLDSA65 or MLDSA87).
// Keys are the packed public key encoding; signatures use an empty context string.
// It panics for any other algorithm.
func NewMLDSA(alg Algorithm) Scheme {
	var s sign.Scheme
	switch alg {
	case MLDSA44:
		s = mldsa44.Scheme()
	case MLDSA65:
		s = mldsa65.Scheme()
	case MLDSA87:
		s = mldsa87.Scheme()
	default:
		panic(fmt.Sprintf("signature: %q is not an ML-DSA parameter set", alg))
	}
	return &mldsaScheme{alg: alg, scheme: s}
}

func (m *mldsaScheme) Algorithm() Algorithm { return m.alg }

func (m *mldsaScheme) ValidatePublicKey(key []byte) error {
	if len(key) != m.scheme.PublicKeySize() {
		return fmt.Errorf("%s: public key must be %d bytes, got %d", m.alg, m.scheme.PublicKeySize(), len(key))
	}
	if _, err := m.scheme.UnmarshalBinaryPublicKey(key); err != nil {
		return fmt.Errorf("%s: %w", m.alg, err)
	}
	return nil
}

func (m *mldsaScheme) Verify(message, sig, key []byte) bool {
	if len(key) != m.scheme.PublicKeySize() || len(sig) != m.scheme.SignatureSize() {
		return false
	}
	pk, err := m.scheme.UnmarshalBinaryPublicKey(key)
	if err != nil {
		return false
	}
	return m.scheme.Verify(pk, message, sig, nil)
}
