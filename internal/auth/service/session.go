package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/oops"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/internal/auth/store"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

type userCtxKey struct{}

// WithUser attaches the authenticated user to ctx.
func WithUser(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext returns the user attached by the session gate.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(userCtxKey{}).(domain.User)
	return u, ok
}

// SessionGate resolves a session token to its user. It implements
// httpx.Authenticator.
type SessionGate struct {
	Store  store.Store
	Tokens *Tokens
}

// Authenticate verifies raw as a session token and loads its user. The user
// attached to the returned context carries no password material.
func (g *SessionGate) Authenticate(ctx context.Context, raw string) (context.Context, error) {
	if raw == "" {
		return ctx, ErrUnauthenticated
	}

	userID, err := g.Tokens.Verify(raw, jwtx.PurposeSession)
	if err != nil {
		return ctx, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	user, err := g.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ctx, fmt.Errorf("%w: user %s no longer exists", ErrUnauthenticated, userID)
	}
	if err != nil {
		return ctx, oops.Code("ACCOUNT_STORE_FAILED").With("operation", "load session user").With("user_id", userID).Wrap(err)
	}

	user.PasswordHash = ""
	user.PendingPasswordHash = nil

	ctx = slogx.With(ctx, "user_id", user.ID)
	return WithUser(ctx, user), nil
}
