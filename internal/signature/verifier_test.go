package signature

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"testing"

	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
)

var nonce = []byte("0123456789abcdef0123456789abcdef")

func TestRegistry_Ed25519(t *testing.T) {
	s, err := NewTestSigner(Ed25519)
	if err != nil {
		t.Fatalf("NewTestSigner: %v", err)
	}
	r := DefaultRegistry()
	if err := r.ValidatePublicKey(s.PublicKey, Ed25519); err != nil {
		t.Fatalf("ValidatePublicKey: %v", err)
	}
	sig := s.Sign(nonce)
	if !r.Verify(nonce, sig, s.PublicKey, Ed25519) {
		t.Error("valid signature rejected")
	}
	if r.Verify([]byte("wrong-nonce"), sig, s.PublicKey, Ed25519) {
		t.Error("signature over a different message accepted")
	}
	tampered := append([]byte(nil), sig...)
	tampered[0] ^= 0xff
	if r.Verify(nonce, tampered, s.PublicKey, Ed25519) {
		t.Error("tampered signature accepted")
	}
}

func TestRegistry_MLDSA65(t *testing.T) {
	s, err := NewTestSigner(MLDSA65)
	if err != nil {
		t.Fatalf("NewTestSigner: %v", err)
	}
	r := DefaultRegistry()
	if err := r.ValidatePublicKey(s.PublicKey, MLDSA65); err != nil {
		t.Fatalf("ValidatePublicKey: %v", err)
	}
	sig := s.Sign(nonce)
	if !r.Verify(nonce, sig, s.PublicKey, MLDSA65) {
		t.Error("valid ML-DSA-65 signature rejected")
	}
	if r.Verify(nonce, sig, s.PublicKey, MLDSA87) {
		t.Error("ML-DSA-65 signature accepted under ML-DSA-87")
	}
	if r.Verify(nonce, sig[:len(sig)-1], s.PublicKey, MLDSA65) {
		t.Error("truncated signature accepted")
	}
}

func TestRegistry_MLDSAOtherParameterSets(t *testing.T) {
	r := DefaultRegistry()
	for _, tc := range []struct {
		alg  Algorithm
		size int
	}{
		{MLDSA44, mldsa44.PublicKeySize},
		{MLDSA87, mldsa87.PublicKeySize},
	} {
		if err := r.ValidatePublicKey(make([]byte, tc.size-1), tc.alg); err == nil {
			t.Errorf("%s: short key accepted", tc.alg)
		}
	}
}

func TestRegistry_ECDSAP256(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pkix, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	point, err := priv.PublicKey.Bytes()
	if err != nil {
		t.Fatalf("PublicKey.Bytes: %v", err)
	}
	digest := sha256.Sum256(nonce)
	der, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		t.Fatalf("SignASN1: %v", err)
	}
	rr, ss, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	raw := make([]byte, 64)
	rr.FillBytes(raw[:32])
	ss.FillBytes(raw[32:])

	r := DefaultRegistry()
	for name, key := range map[string][]byte{"pkix": pkix, "uncompressed": point} {
		if err := r.ValidatePublicKey(key, ECDSAP256SHA256); err != nil {
			t.Errorf("%s: ValidatePublicKey: %v", name, err)
		}
		if !r.Verify(nonce, der, key, ECDSAP256SHA256) {
			t.Errorf("%s: DER signature rejected", name)
		}
		if !r.Verify(nonce, raw, key, ECDSAP256SHA256) {
			t.Errorf("%s: raw signature rejected", name)
		}
		if r.Verify([]byte("wrong-nonce"), raw, key, ECDSAP256SHA256) {
			t.Errorf("%s: signature over different message accepted", name)
		}
	}
}

func TestRegistry_MalformedInputNeverPanics(t *testing.T) {
	r := DefaultRegistry()
	inputs := [][]byte{nil, {}, {0x00}, filled(31), filled(32), filled(64), filled(5000)}
	for _, alg := range r.Algorithms() {
		for _, key := range inputs {
			for _, sig := range inputs {
				if r.Verify(nonce, sig, key, alg) {
					t.Errorf("%s: accepted garbage key len=%d sig len=%d", alg, len(key), len(sig))
				}
			}
		}
	}
}

func filled(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 0xab
	}
	return b
}

type panickyScheme struct{}

func (panickyScheme) Algorithm() Algorithm           { return Ed25519 }
func (panickyScheme) ValidatePublicKey([]byte) error { panic("boom") }
func (panickyScheme) Verify(_, _, _ []byte) bool     { panic("boom") }

func TestRegistry_RecoversSchemePanics(t *testing.T) {
	r := NewRegistry(panickyScheme{})
	if r.Verify(nonce, []byte{1}, []byte{1}, Ed25519) {
		t.Error("Verify should be false when the scheme panics")
	}
	if err := r.ValidatePublicKey([]byte{1}, Ed25519); err == nil {
		t.Error("ValidatePublicKey should fail when the scheme panics")
	}
}

func TestRegistry_UnknownAlgorithm(t *testing.T) {
	r := NewRegistry(NewEd25519())
	if r.Verify(nonce, []byte{1}, []byte{1}, MLDSA65) {
		t.Error("unregistered algorithm verified")
	}
	err := r.ValidatePublicKey(make([]byte, 32), MLDSA65)
	if !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("ValidatePublicKey err = %v, want ErrUnsupportedAlgorithm", err)
	}
}

func TestRegistryFor(t *testing.T) {
	r, err := RegistryFor([]string{"ED25519", " ml-dsa-65 "})
	if err != nil {
		t.Fatalf("RegistryFor: %v", err)
	}
	got := r.Algorithms()
	if len(got) != 2 || got[0] != Ed25519 || got[1] != MLDSA65 {
		t.Errorf("Algorithms = %v", got)
	}
	if _, err := RegistryFor([]string{"rsa-pss"}); err == nil {
		t.Error("RegistryFor should reject unknown algorithms")
	}
}

func TestVerifierFunc(t *testing.T) {
	var v Verifier = VerifierFunc(func(_, sig, _ []byte, _ Algorithm) bool { return string(sig) == "ok" })
	if !v.Verify(nil, []byte("ok"), nil, Ed25519) || v.Verify(nil, []byte("no"), nil, Ed25519) {
		t.Error("VerifierFunc did not delegate")
	}
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("ML-DSA-87")
	if err != nil || a != MLDSA87 || !a.PostQuantum() {
		t.Errorf("ParseAlgorithm = %q, %v", a, err)
	}
	if Ed25519.PostQuantum() {
		t.Error("ed25519 is not post-quantum")
	}
}
