package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token lifetimes for the account flows.
const (
	// DefaultSessionTTL is how long a login stays valid. There is no
	// server-side revocation, so this is also the worst-case lifetime of a
	// leaked token.
	DefaultSessionTTL = 24 * time.Hour

	// DefaultResetTTL bounds a password reset link.
	DefaultResetTTL = time.Hour
)

// Token purposes. A token minted for one purpose never verifies for another,
// so a leaked reset link cannot be replayed as a session.
const (
	PurposeSession       = "session"
	PurposePasswordReset = "password_reset"
)

// Claims are the claims carried by every token we mint.
type Claims struct {
	jwt.RegisteredClaims

	// Purpose scopes the token to a single flow (see Purpose* constants).
	Purpose string `json:"purpose"`
}

// NewClaims builds minimally-correct claims for subject.
func NewClaims(subject, purpose, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Purpose: purpose,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
