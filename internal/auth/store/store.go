package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. Repositories hang off the store so a Tx-scoped store can
// hand out the same repositories bound to the transaction.
type Store interface {
	Users() Users

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. A non-nil error from fn
	// rolls back, nil commits.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Users is the account repository. Every mutation is a single UPDATE whose
// WHERE clause carries its own preconditions, so concurrent requests for the
// same user cannot interleave a read with a write. Conditional updates report
// whether a row matched; false means a precondition failed.
type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail expects an already normalized email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user. A duplicate email is ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash overwrites the password hash and bumps updated_at.
	// A staged password change is discarded together with its OTP.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// SetOTP stores a fresh code and expiry for the user with email and
	// discards any staged password change.
	SetOTP(ctx context.Context, email, code string, expiresAt time.Time) (bool, error)

	// SetOTPIfUnverified is SetOTP restricted to unverified users.
	SetOTPIfUnverified(ctx context.Context, email, code string, expiresAt time.Time) (bool, error)

	// ConsumeVerificationOTP marks an unverified user verified and clears the
	// OTP when code matches and has not expired at now.
	ConsumeVerificationOTP(ctx context.Context, email, code string, now time.Time) (bool, error)

	// ResetPasswordWithOTP overwrites the password hash and clears the OTP
	// when code matches and has not expired at now. Codes issued for a staged
	// password change are not accepted.
	ResetPasswordWithOTP(ctx context.Context, email, code string, now time.Time, newHash string) (bool, error)

	// StagePasswordChange stores a pending hash together with a fresh OTP,
	// replacing anything staged before.
	StagePasswordChange(ctx context.Context, userID, pendingHash, code string, expiresAt time.Time) (bool, error)

	// ConfirmPasswordChange promotes the pending hash and clears the OTP when
	// code matches, has not expired at now and a change is staged.
	ConfirmPasswordChange(ctx context.Context, userID, code string, now time.Time) (bool, error)

	// ClearExpiredOTPs drops OTPs and staged hashes whose expiry is at or
	// before now, returning the number of users touched.
	ClearExpiredOTPs(ctx context.Context, now time.Time) (int64, error)
}
