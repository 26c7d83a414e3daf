package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/internal/auth/store"
	"github.com/aussiebroadwan/accounts/pkg/errutil"
)

var (
	userCols = []string{
		"id", "name", "email", "password_hash", "profile_image_ref", "is_verified",
		"otp", "otp_expires_at", "pending_password_hash", "created_at", "updated_at",
	}
	fixedNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return mock, NewStoreWithPool(mock, "")
}

func TestGetUserByEmail(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		check     func(t *testing.T, u domain.User, err error)
	}{
		{
			name: "found with live otp",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(userCols).
					AddRow("01J", "Ann", "ann@x.com", "hash", nil, false,
						"012345", fixedNow.Add(time.Hour), nil, fixedNow, fixedNow)
				mock.ExpectQuery(`WHERE email = \$1`).
					WithArgs("ann@x.com").
					WillReturnRows(rows)
			},
			check: func(t *testing.T, u domain.User, err error) {
				require.NoError(t, err)
				assert.Equal(t, "01J", u.ID)
				assert.False(t, u.IsVerified)
				require.NotNil(t, u.OTP)
				assert.Equal(t, "012345", *u.OTP)
				require.NotNil(t, u.OTPExpiresAt)
				assert.True(t, fixedNow.Add(time.Hour).Equal(*u.OTPExpiresAt))
				assert.Nil(t, u.ProfileImageRef)
				assert.Nil(t, u.PendingPasswordHash)
			},
		},
		{
			name: "not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`WHERE email = \$1`).
					WithArgs("ann@x.com").
					WillReturnRows(pgxmock.NewRows(userCols))
			},
			check: func(t *testing.T, _ domain.User, err error) {
				require.ErrorIs(t, err, store.ErrNotFound)
				errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
			},
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`WHERE email = \$1`).
					WillReturnError(errors.New("connection refused"))
			},
			check: func(t *testing.T, _ domain.User, err error) {
				require.Error(t, err)
				assert.NotErrorIs(t, err, store.ErrNotFound)
				assert.Contains(t, err.Error(), "connection refused")
				errutil.AssertErrorCode(t, err, "USER_GET_FAILED")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, s := newMock(t)
			tt.setupMock(mock)

			u, err := s.Users().GetUserByEmail(context.Background(), "ann@x.com")
			tt.check(t, u, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreateUser_UniqueViolation(t *testing.T) {
	mock, s := newMock(t)
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	err := s.Users().CreateUser(context.Background(), domain.User{ID: "01J", Email: "ann@x.com"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_OK(t *testing.T) {
	mock, s := newMock(t)
	code := "000042"
	exp := fixedNow.Add(time.Hour)
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.Users().CreateUser(context.Background(), domain.User{
		ID: "01J", Name: "Ann", Email: "ann@x.com", PasswordHash: "hash",
		OTP: &code, OTPExpiresAt: &exp,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConditionalUpdates(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		affected int64
		run      func(u store.Users) (bool, error)
		want     bool
	}{
		{
			name:     "verification consumed",
			pattern:  `SET is_verified = TRUE`,
			affected: 1,
			run: func(u store.Users) (bool, error) {
				return u.ConsumeVerificationOTP(context.Background(), "ann@x.com", "123456", fixedNow)
			},
			want: true,
		},
		{
			name:     "verification code mismatch",
			pattern:  `otp_expires_at > \$3`,
			affected: 0,
			run: func(u store.Users) (bool, error) {
				return u.ConsumeVerificationOTP(context.Background(), "ann@x.com", "000000", fixedNow)
			},
			want: false,
		},
		{
			name:     "resend to verified user",
			pattern:  `AND NOT is_verified`,
			affected: 0,
			run: func(u store.Users) (bool, error) {
				return u.SetOTPIfUnverified(context.Background(), "ann@x.com", "123456", fixedNow)
			},
			want: false,
		},
		{
			name:     "confirm staged change",
			pattern:  `pending_password_hash IS NOT NULL`,
			affected: 1,
			run: func(u store.Users) (bool, error) {
				return u.ConfirmPasswordChange(context.Background(), "01J", "123456", fixedNow)
			},
			want: true,
		},
		{
			name:     "stage change",
			pattern:  `SET pending_password_hash = \$1`,
			affected: 1,
			run: func(u store.Users) (bool, error) {
				return u.StagePasswordChange(context.Background(), "01J", "pending", "123456", fixedNow)
			},
			want: true,
		},
		{
			name:     "direct reset with otp",
			pattern:  `SET password_hash = \$1, otp = NULL`,
			affected: 1,
			run: func(u store.Users) (bool, error) {
				return u.ResetPasswordWithOTP(context.Background(), "ann@x.com", "123456", fixedNow, "new")
			},
			want: true,
		},
		{
			name:     "verification skips verified accounts",
			pattern:  `otp_expires_at > \$3 AND NOT is_verified`,
			affected: 0,
			run: func(u store.Users) (bool, error) {
				return u.ConsumeVerificationOTP(context.Background(), "ann@x.com", "123456", fixedNow)
			},
			want: false,
		},
		{
			name:     "direct reset refuses staged change code",
			pattern:  `otp_expires_at > \$4 AND pending_password_hash IS NULL`,
			affected: 0,
			run: func(u store.Users) (bool, error) {
				return u.ResetPasswordWithOTP(context.Background(), "ann@x.com", "123456", fixedNow, "new")
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, s := newMock(t)
			mock.ExpectExec(tt.pattern).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			got, err := tt.run(s.Users())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpdatePasswordHash_NotFound(t *testing.T) {
	mock, s := newMock(t)
	mock.ExpectExec(`UPDATE users SET password_hash`).
		WithArgs("hash", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.Users().UpdatePasswordHash(context.Background(), "missing", "hash")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdatePasswordHash_DiscardsStagedChange(t *testing.T) {
	mock, s := newMock(t)
	mock.ExpectExec(`otp = CASE WHEN pending_password_hash IS NULL THEN otp END`).
		WithArgs("hash", "01J").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.Users().UpdatePasswordHash(context.Background(), "01J", "hash"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateFailureIsWrapped(t *testing.T) {
	mock, s := newMock(t)
	mock.ExpectExec(`UPDATE users SET otp`).
		WillReturnError(errors.New("deadlock detected"))

	_, err := s.Users().SetOTP(context.Background(), "ann@x.com", "1", fixedNow)
	errutil.AssertErrorCode(t, err, "USER_UPDATE_FAILED")
}

func TestClearExpiredOTPs(t *testing.T) {
	mock, s := newMock(t)
	mock.ExpectExec(`otp_expires_at <= \$1`).
		WithArgs(fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := s.Users().ClearExpiredOTPs(context.Background(), fixedNow)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestWithTx(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		mock, s := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE users SET password_hash`).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err := s.WithTx(context.Background(), func(tx store.Tx) error {
			return tx.Users().UpdatePasswordHash(context.Background(), "01J", "hash")
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback", func(t *testing.T) {
		mock, s := newMock(t)
		boom := errors.New("boom")
		mock.ExpectBegin()
		mock.ExpectRollback()

		err := s.WithTx(context.Background(), func(tx store.Tx) error { return boom })
		require.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db", MigrateURL("postgres://u:p@h:5432/db"))
	assert.Equal(t, "pgx5://u:p@h/db", MigrateURL("postgresql://u:p@h/db"))
	assert.Equal(t, "pgx5://h/db", MigrateURL("pgx5://h/db"))
}

func TestApplyMigrations_RequiresURL(t *testing.T) {
	_, s := newMock(t)
	errutil.AssertErrorCode(t, s.ApplyMigrations(), "MIGRATION_INIT_FAILED")
}
