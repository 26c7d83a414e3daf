package jwtx

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// MinHS256SecretLength is the shortest shared secret accepted, in bytes.
const MinHS256SecretLength = 32

// HS256Signer signs with a shared secret. Anyone able to verify can also mint
// tokens, so only use it when the auth service is the sole verifier.
type HS256Signer struct {
	kid    string
	secret []byte
}

func newHS256Signer(kid string, secret []byte) (*HS256Signer, error) {
	if len(secret) < MinHS256SecretLength {
		return nil, fmt.Errorf("jwtx: HS256 secret must be at least %d bytes", MinHS256SecretLength)
	}
	return &HS256Signer{kid: kid, secret: secret}, nil
}

func (s *HS256Signer) Alg() string          { return jwt.SigningMethodHS256.Alg() }
func (s *HS256Signer) KID() string          { return s.kid }
func (s *HS256Signer) VerificationKey() any { return s.secret }

// Sign turns claims into a signed JWT string.
func (s *HS256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.secret)
}
