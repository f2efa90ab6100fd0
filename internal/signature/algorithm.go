package signature

import (
	"fmt"
	"strings"
)

// Algorithm names a signature scheme family. It is stored alongside every device public key.
type Algorithm string

const (
	Ed25519         Algorithm = "ed25519"
	ECDSAP256SHA256 Algorithm = "ecdsa-p256-sha256"
	MLDSA44         Algorithm = "ml-dsa-44"
	MLDSA65         Algorithm = "ml-dsa-65"
	MLDSA87         Algorithm = "ml-dsa-87"
)

// ParseAlgorithm normalizes s (case-insensitive, surrounding space ignored) to a known Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case Ed25519, ECDSAP256SHA256, MLDSA44, MLDSA65, MLDSA87:
		return a, nil
	}
	return "", fmt.Errorf("unknown signature algorithm %q", s)
}

// PostQuantum reports whether a is a lattice-based scheme.
func (a Algorithm) PostQuantum() bool {
	switch a {
	case MLDSA44, MLDSA65, MLDSA87:
		return true
	}
	return false
}
