package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/oops"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/internal/auth/store"
)

const selectUser = `
	SELECT id, name, email, password_hash, profile_image_ref, is_verified,
	       otp, otp_expires_at, pending_password_hash, created_at, updated_at
	FROM users`

type usersRepo struct {
	db querier
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u         domain.User
		imageRef  pgtype.Text
		otp       pgtype.Text
		otpExpiry pgtype.Timestamptz
		pending   pgtype.Text
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &imageRef, &u.IsVerified,
		&otp, &otpExpiry, &pending, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.ProfileImageRef = textPtr(imageRef)
	u.OTP = textPtr(otp)
	u.PendingPasswordHash = textPtr(pending)
	if otpExpiry.Valid {
		exp := otpExpiry.Time.UTC()
		u.OTPExpiresAt = &exp
	}
	return u, nil
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, selectUser+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(store.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, oops.Code("USER_GET_FAILED").With("id", id).Wrap(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, selectUser+` WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(store.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, oops.Code("USER_GET_FAILED").With("email", email).Wrap(err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, profile_image_ref, is_verified, otp, otp_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.ProfileImageRef, u.IsVerified, u.OTP, u.OTPExpiresAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return oops.Code("USER_EXISTS").With("email", u.Email).Wrap(store.ErrAlreadyExists)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").With("email", u.Email).Wrap(err)
	}
	return nil
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	ok, err := r.exec(ctx, "update password", `
		UPDATE users SET password_hash = $1,
		       otp = CASE WHEN pending_password_hash IS NULL THEN otp END,
		       otp_expires_at = CASE WHEN pending_password_hash IS NULL THEN otp_expires_at END,
		       pending_password_hash = NULL, updated_at = NOW()
		WHERE id = $2`, newHash, userID)
	if err != nil {
		return err
	}
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", userID).Wrap(store.ErrNotFound)
	}
	return nil
}

func (r *usersRepo) SetOTP(ctx context.Context, email, code string, expiresAt time.Time) (bool, error) {
	return r.exec(ctx, "set otp", `
		UPDATE users SET otp = $1, otp_expires_at = $2, pending_password_hash = NULL, updated_at = NOW()
		WHERE email = $3`, code, expiresAt, email)
}

func (r *usersRepo) SetOTPIfUnverified(ctx context.Context, email, code string, expiresAt time.Time) (bool, error) {
	return r.exec(ctx, "set otp if unverified", `
		UPDATE users SET otp = $1, otp_expires_at = $2, pending_password_hash = NULL, updated_at = NOW()
		WHERE email = $3 AND NOT is_verified`, code, expiresAt, email)
}

func (r *usersRepo) ConsumeVerificationOTP(ctx context.Context, email, code string, now time.Time) (bool, error) {
	return r.exec(ctx, "consume verification otp", `
		UPDATE users SET is_verified = TRUE, otp = NULL, otp_expires_at = NULL,
		       pending_password_hash = NULL, updated_at = NOW()
		WHERE email = $1 AND otp = $2 AND otp_expires_at > $3 AND NOT is_verified`, email, code, now)
}

func (r *usersRepo) ResetPasswordWithOTP(ctx context.Context, email, code string, now time.Time, newHash string) (bool, error) {
	return r.exec(ctx, "reset password with otp", `
		UPDATE users SET password_hash = $1, otp = NULL, otp_expires_at = NULL,
		       pending_password_hash = NULL, updated_at = NOW()
		WHERE email = $2 AND otp = $3 AND otp_expires_at > $4 AND pending_password_hash IS NULL`,
		newHash, email, code, now)
}

func (r *usersRepo) StagePasswordChange(ctx context.Context, userID, pendingHash, code string, expiresAt time.Time) (bool, error) {
	return r.exec(ctx, "stage password change", `
		UPDATE users SET pending_password_hash = $1, otp = $2, otp_expires_at = $3, updated_at = NOW()
		WHERE id = $4`, pendingHash, code, expiresAt, userID)
}

func (r *usersRepo) ConfirmPasswordChange(ctx context.Context, userID, code string, now time.Time) (bool, error) {
	return r.exec(ctx, "confirm password change", `
		UPDATE users SET password_hash = pending_password_hash, pending_password_hash = NULL,
		       otp = NULL, otp_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND otp = $2 AND otp_expires_at > $3 AND pending_password_hash IS NOT NULL`,
		userID, code, now)
}

func (r *usersRepo) ClearExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET otp = NULL, otp_expires_at = NULL, pending_password_hash = NULL, updated_at = NOW()
		WHERE otp_expires_at IS NOT NULL AND otp_expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("USER_UPDATE_FAILED").With("operation", "clear expired otps").Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// exec runs a single-statement update and reports whether it matched a row.
func (r *usersRepo) exec(ctx context.Context, operation, sql string, args ...any) (bool, error) {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return false, oops.Code("USER_UPDATE_FAILED").With("operation", operation).Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}
