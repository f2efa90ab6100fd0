// Package signature verifies device signatures over challenge nonces.
//
// Verification is pluggable by Algorithm: classical (Ed25519, ECDSA P-256) and post-quantum (ML-DSA)
// schemes share one Verifier interface so the challenge manager never knows which family a device uses.
// Signing is not implemented here; private keys never leave the device.
package signature

import (
	"errors"
	"fmt"
	"log"
	"sort"
)

// ErrUnsupportedAlgorithm is returned by ValidatePublicKey for algorithms with no registered scheme.
var ErrUnsupportedAlgorithm = errors.New("unsupported signature algorithm")

// Verifier checks a signature over message against publicKey for the named algorithm.
// Implementations must return false, never panic, for malformed signatures or keys.
type Verifier interface {
	Verify(message, signature, publicKey []byte, alg Algorithm) bool
}

// VerifierFunc adapts a function to Verifier. Tests use it to inject deterministic outcomes.
type VerifierFunc func(message, signature, publicKey []byte, alg Algorithm) bool

func (f VerifierFunc) Verify(message, signature, publicKey []byte, alg Algorithm) bool {
	return f(message, signature, publicKey, alg)
}

// Scheme is one concrete signature algorithm.
type Scheme interface {
	Algorithm() Algorithm
	// ValidatePublicKey returns an error if key is not a well-formed public key for this scheme.
	ValidatePublicKey(key []byte) error
	// Verify reports whether sig is a valid signature of message under key.
	Verify(message, sig, key []byte) bool
}

// Registry dispatches verification to the Scheme registered for each Algorithm.
type Registry struct {
	schemes map[Algorithm]Scheme
}

// NewRegistry returns a Registry holding the given schemes. Later schemes replace earlier ones with the same Algorithm.
func NewRegistry(schemes ...Scheme) *Registry {
	r := &Registry{schemes: make(map[Algorithm]Scheme, len(schemes))}
	for _, s := range schemes {
		r.schemes[s.Algorithm()] = s
	}
	return r
}

// DefaultRegistry returns a Registry with every built-in scheme.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewEd25519(),
		NewECDSAP256(),
		NewMLDSA(MLDSA44),
		NewMLDSA(MLDSA65),
		NewMLDSA(MLDSA87),
	)
}

// RegistryFor returns a Registry restricted to the named algorithms. Empty names means all built-in schemes.
func RegistryFor(names []string) (*Registry, error) {
	all := DefaultRegistry()
	if len(names) == 0 {
		return all, nil
	}
	var picked []Scheme
	for _, n := range names {
		alg, err := ParseAlgorithm(n)
		if err != nil {
			return nil, err
		}
		picked = append(picked, all.schemes[alg])
	}
	return NewRegistry(picked...), nil
}

// Algorithms returns the registered algorithms in sorted order.
func (r *Registry) Algorithms() []Algorithm {
	out := make([]Algorithm, 0, len(r.schemes))
	for a := range r.schemes {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ValidatePublicKey checks key against the scheme for alg.
func (r *Registry) ValidatePublicKey(key []byte, alg Algorithm) (err error) {
	s, ok := r.schemes[alg]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("signature: %s key validation panicked: %v", alg, p)
		}
	}()
	return s.ValidatePublicKey(key)
}

// Verify implements Verifier. Unknown algorithms, empty inputs and scheme panics all yield false.
func (r *Registry) Verify(message, sig, key []byte, alg Algorithm) (ok bool) {
	s, found := r.schemes[alg]
	if !found || len(sig) == 0 || len(key) == 0 {
		return false
	}
	defer func() {
		if p := recover(); p != nil {
			log.Printf("signature: %s verify panicked on malformed input: %v", alg, p)
			ok = false
		}
	}()
	return s.Verify(message, sig, key)
}
