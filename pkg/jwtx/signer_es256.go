package jwtx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// ES256Signer implements the Signer interface using ECDSA P-256 with SHA-256.
type ES256Signer struct {
	kid string
	key *ecdsa.PrivateKey
}

func newES256Signer(kid string, pemKey []byte) (*ES256Signer, error) {
	priv, err := parsePKCS8(pemKey)
	if err != nil {
		return nil, err
	}

	key, ok := priv.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not ECDSA private key")
	}
	if key.Curve != elliptic.P256() {
		return nil, errors.New("jwtx: ES256 requires a P-256 key")
	}

	return &ES256Signer{kid: kid, key: key}, nil
}

func (s *ES256Signer) Alg() string          { return jwt.SigningMethodES256.Alg() }
func (s *ES256Signer) KID() string          { return s.kid }
func (s *ES256Signer) VerificationKey() any { return &s.key.PublicKey }

// Sign turns claims into a signed JWT string.
func (s *ES256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}
