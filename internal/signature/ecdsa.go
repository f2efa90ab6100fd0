package signature

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

const p256CoordinateSize = 32

type ecdsaP256Scheme struct{}

// NewECDSAP256 returns ECDSA over P-256 with SHA-256.
// Keys are PKIX DER or an uncompressed SEC 1 point; signatures are ASN.1 DER or raw r||s (64 bytes),
// the latter being what WebCrypto and most mobile keystores emit.
func NewECDSAP256() Scheme { return ecdsaP256Scheme{} }

func (ecdsaP256Scheme) Algorithm() Algorithm { return ECDSAP256SHA256 }

func (ecdsaP256Scheme) ValidatePublicKey(key []byte) error {
	_, err := parseP256PublicKey(key)
	return err
}

func (ecdsaP256Scheme) Verify(message, sig, key []byte) bool {
	pub, err := parseP256PublicKey(key)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(message)
	// A 64-byte input is usually raw r||s, but a short DER encoding can also be 64 bytes long.
	if len(sig) == 2*p256CoordinateSize {
		if der, err := rawToDER(sig); err == nil && ecdsa.VerifyASN1(pub, digest[:], der) {
			return true
		}
	}
	return ecdsa.VerifyASN1(pub, digest[:], sig)
}

func parseP256PublicKey(key []byte) (*ecdsa.PublicKey, error) {
	if len(key) == 1+2*p256CoordinateSize && key[0] == 0x04 {
		return ecdsa.ParseUncompressedPublicKey(elliptic.P256(), key)
	}
	parsed, err := x509.ParsePKIXPublicKey(key)
	if err != nil {
		return nil, err
	}
	pub, ok := parsed.(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P256() {
		return nil, errors.New("ecdsa: public key is not a P-256 key")
	}
	return pub, nil
}

// rawToDER encodes a fixed-width r||s signature as ASN.1 SEQUENCE { INTEGER r, INTEGER s }.
func rawToDER(raw []byte) ([]byte, error) {
	r := new(big.Int).SetBytes(raw[:p256CoordinateSize])
	s := new(big.Int).SetBytes(raw[p256CoordinateSize:])
	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(r)
		b.AddASN1BigInt(s)
	})
	return b.Bytes()
}
