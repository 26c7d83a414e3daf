package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/accounts/pkg/jwtx"
)

// Tokens mints and checks session and password-reset tokens with the
// process-wide key.
type Tokens struct {
	Keys       *jwtx.KeyManager
	Issuer     string
	SessionTTL time.Duration
	ResetTTL   time.Duration
	Now        func() time.Time
}

func (t *Tokens) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Issue signs a token for userID scoped to purpose.
func (t *Tokens) Issue(userID, purpose string, ttl time.Duration) (string, time.Time, error) {
	claims := jwtx.NewClaims(userID, purpose, t.Issuer, ttl, t.now())
	token, err := t.Keys.Signer.Sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}

func (t *Tokens) IssueSession(userID string) (string, time.Time, error) {
	ttl := t.SessionTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultSessionTTL
	}
	return t.Issue(userID, jwtx.PurposeSession, ttl)
}

func (t *Tokens) IssueReset(userID string) (string, time.Time, error) {
	ttl := t.ResetTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultResetTTL
	}
	return t.Issue(userID, jwtx.PurposePasswordReset, ttl)
}

// Verify returns the subject of a token minted for purpose. Expiry is
// ErrTokenExpired; every other failure is ErrTokenInvalid.
func (t *Tokens) Verify(token, purpose string) (string, error) {
	claims, err := t.Keys.Verifier.Verify(token, purpose)
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return "", ErrTokenExpired
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	case claims.Subject == "":
		return "", fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims.Subject, nil
}
