package jwtx

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// RS256Signer implements the Signer interface using RSA PKCS#1 v1.5 with SHA-256.
type RS256Signer struct {
	kid string
	key *rsa.PrivateKey
}

func newRS256Signer(kid string, pemKey []byte) (*RS256Signer, error) {
	priv, err := parsePKCS8(pemKey)
	if err != nil {
		return nil, err
	}

	key, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not RSA private key")
	}
	if bits := key.N.BitLen(); bits < 2048 {
		return nil, fmt.Errorf("jwtx: RSA key too small (%d bits)", bits)
	}

	return &RS256Signer{kid: kid, key: key}, nil
}

func (s *RS256Signer) Alg() string          { return jwt.SigningMethodRS256.Alg() }
func (s *RS256Signer) KID() string          { return s.kid }
func (s *RS256Signer) VerificationKey() any { return &s.key.PublicKey }

// Sign turns claims into a signed JWT string.
func (s *RS256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}
