package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/internal/auth/store"
)

const userColumns = `id, name, email, password_hash, profile_image_ref, is_verified,
	otp, otp_expires_at, pending_password_hash, created_at, updated_at`

type usersRepo struct {
	db dbtx
}

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u         domain.User
		imageRef  sql.NullString
		otp       sql.NullString
		otpExpiry sql.NullInt64
		pending   sql.NullString
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &imageRef, &u.IsVerified,
		&otp, &otpExpiry, &pending, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.ProfileImageRef = mapNullStringPtr(imageRef)
	u.OTP = mapNullStringPtr(otp)
	u.OTPExpiresAt = mapNullNanosPtr(otpExpiry)
	u.PendingPasswordHash = mapNullStringPtr(pending)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	var otpExpiry sql.NullInt64
	if u.OTPExpiresAt != nil {
		otpExpiry = sql.NullInt64{Int64: nanos(*u.OTPExpiresAt), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, profile_image_ref, is_verified, otp, otp_expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash,
		mapOptionalString(u.ProfileImageRef), u.IsVerified,
		mapOptionalString(u.OTP), otpExpiry,
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	ok, err := r.exec(ctx, `
		UPDATE users SET password_hash = ?,
			otp = CASE WHEN pending_password_hash IS NULL THEN otp END,
			otp_expires_at = CASE WHEN pending_password_hash IS NULL THEN otp_expires_at END,
			pending_password_hash = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, newHash, userID)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) SetOTP(ctx context.Context, email, code string, expiresAt time.Time) (bool, error) {
	return r.exec(ctx, `
		UPDATE users SET otp = ?, otp_expires_at = ?, pending_password_hash = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE email = ?`, code, nanos(expiresAt), email)
}

func (r *usersRepo) SetOTPIfUnverified(ctx context.Context, email, code string, expiresAt time.Time) (bool, error) {
	return r.exec(ctx, `
		UPDATE users SET otp = ?, otp_expires_at = ?, pending_password_hash = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE email = ? AND is_verified = 0`, code, nanos(expiresAt), email)
}

func (r *usersRepo) ConsumeVerificationOTP(ctx context.Context, email, code string, now time.Time) (bool, error) {
	return r.exec(ctx, `
		UPDATE users SET is_verified = 1, otp = NULL, otp_expires_at = NULL,
			pending_password_hash = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE email = ? AND otp = ? AND otp_expires_at > ? AND is_verified = 0`, email, code, nanos(now))
}

func (r *usersRepo) ResetPasswordWithOTP(ctx context.Context, email, code string, now time.Time, newHash string) (bool, error) {
	return r.exec(ctx, `
		UPDATE users SET password_hash = ?, otp = NULL, otp_expires_at = NULL,
			pending_password_hash = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE email = ? AND otp = ? AND otp_expires_at > ? AND pending_password_hash IS NULL`,
		newHash, email, code, nanos(now))
}

func (r *usersRepo) StagePasswordChange(ctx context.Context, userID, pendingHash, code string, expiresAt time.Time) (bool, error) {
	return r.exec(ctx, `
		UPDATE users SET pending_password_hash = ?, otp = ?, otp_expires_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, pendingHash, code, nanos(expiresAt), userID)
}

func (r *usersRepo) ConfirmPasswordChange(ctx context.Context, userID, code string, now time.Time) (bool, error) {
	return r.exec(ctx, `
		UPDATE users SET password_hash = pending_password_hash, pending_password_hash = NULL,
			otp = NULL, otp_expires_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND otp = ? AND otp_expires_at > ? AND pending_password_hash IS NOT NULL`,
		userID, code, nanos(now))
}

func (r *usersRepo) ClearExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET otp = NULL, otp_expires_at = NULL, pending_password_hash = NULL,
			updated_at = CURRENT_TIMESTAMP
		WHERE otp_expires_at IS NOT NULL AND otp_expires_at <= ?`, nanos(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// exec runs a single-statement update and reports whether it matched a row.
func (r *usersRepo) exec(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
