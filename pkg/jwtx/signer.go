package jwtx

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// Supported JWT signing algorithms.
const (
	AlgorithmEdDSA = "EdDSA"
	AlgorithmES256 = "ES256"
	AlgorithmRS256 = "RS256"
	AlgorithmHS256 = "HS256"
)

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)

	// VerificationKey is what a KeySet needs to check this signer's tokens:
	// the public key for asymmetric algorithms, the secret for HMAC.
	VerificationKey() any
}

// NewSigner creates a signer for alg from PEM bytes (asymmetric algorithms)
// or raw secret bytes (HS256).
func NewSigner(alg, kid string, key []byte) (Signer, error) {
	switch alg {
	case AlgorithmEdDSA:
		return newEdDSASigner(kid, key)
	case AlgorithmES256:
		return newES256Signer(kid, key)
	case AlgorithmRS256:
		return newRS256Signer(kid, key)
	case AlgorithmHS256:
		return newHS256Signer(kid, key)
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q (supported: EdDSA, ES256, RS256, HS256)", alg)
	}
}

// parsePKCS8 decodes a single PEM "PRIVATE KEY" block.
func parsePKCS8(pemKey []byte) (any, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM")
	}

	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("jwtx: expected PRIVATE KEY, got %q (PKCS8 required)", block.Type)
	}

	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
	}
	return priv, nil
}
